package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	accountStore "gatekeeper/internal/accounts/store"
	csrfHandler "gatekeeper/internal/csrf/handler"
	csrfMetrics "gatekeeper/internal/csrf/metrics"
	csrfMiddleware "gatekeeper/internal/csrf/middleware"
	csrfService "gatekeeper/internal/csrf/service"
	"gatekeeper/internal/fingerprint"
	"gatekeeper/internal/globalthrottle"
	"gatekeeper/internal/ipfilter"
	ipfilterModels "gatekeeper/internal/ipfilter/models"
	ipfilterStore "gatekeeper/internal/ipfilter/store"
	lockoutMetrics "gatekeeper/internal/lockout/metrics"
	lockoutModels "gatekeeper/internal/lockout/models"
	lockoutService "gatekeeper/internal/lockout/service"
	lockoutStore "gatekeeper/internal/lockout/store"
	onetimeMetrics "gatekeeper/internal/onetime/metrics"
	"gatekeeper/internal/onetime/sender"
	onetimeService "gatekeeper/internal/onetime/service"
	"gatekeeper/internal/platform/config"
	"gatekeeper/internal/platform/health"
	"gatekeeper/internal/platform/httpserver"
	"gatekeeper/internal/platform/logger"
	ratelimitConfig "gatekeeper/internal/ratelimit/config"
	ratelimitMetrics "gatekeeper/internal/ratelimit/metrics"
	ratelimitMiddleware "gatekeeper/internal/ratelimit/middleware"
	ratelimitService "gatekeeper/internal/ratelimit/service"
	"gatekeeper/internal/ratelimit/store/window"
	httptransport "gatekeeper/internal/transport/http"
	"gatekeeper/internal/workers/cleanup"
	"gatekeeper/pkg/platform/audit"
	"gatekeeper/pkg/platform/audit/publisher"
	"gatekeeper/pkg/platform/middleware/metadata"
	"gatekeeper/pkg/platform/middleware/request"
	"gatekeeper/pkg/platform/tracer"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Gating logic lives in the internal packages.
func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	log.Info("initializing gatekeeper",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"trusted_proxies", len(cfg.TrustedProxies),
		"version", version,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tp, err := tracer.NewProvider(ctx, tracer.ProviderConfig{
		ServiceName:    "gatekeeper",
		ServiceVersion: version,
		SampleRatio:    cfg.TraceSampleRatio,
	})
	if err != nil {
		return err
	}
	otel.SetTracerProvider(tp)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("failed to shut down tracer provider", "error", err)
		}
	}()
	tr := tracer.NewOTel()

	auditPublisher := publisher.NewPublisher(publisher.NewSlogSink(log),
		publisher.WithAsyncBuffer(1024),
		publisher.WithPublisherLogger(log),
	)
	defer auditPublisher.Close()
	auditLogger := audit.NewLogger(log, auditPublisher)

	proxies, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	// Client address filter
	denied, err := ipfilterModels.ParsePrefixes(cfg.IPDenyList)
	if err != nil {
		return err
	}
	allowed, err := ipfilterModels.ParsePrefixes(cfg.IPAllowList)
	if err != nil {
		return err
	}
	ipLists := ipfilterStore.New()
	ipFilter, err := ipfilter.New(ipLists,
		ipfilter.WithLogger(log),
		ipfilter.WithAuditLogger(auditLogger),
		ipfilter.WithRegisterer(registry),
	)
	if err != nil {
		return err
	}
	if err := ipFilter.Load(ctx, ipfilterModels.ListDeny, denied); err != nil {
		return err
	}
	if err := ipFilter.Load(ctx, ipfilterModels.ListAllow, allowed); err != nil {
		return err
	}

	// Rate limiting
	policies := ratelimitConfig.DefaultConfig()
	policies.MaxKeys = cfg.RateLimitMaxKeys
	windows := window.NewInMemoryWindowStore(window.WithMaxKeys(policies.MaxKeys))
	limiter, err := ratelimitService.New(windows,
		ratelimitService.WithLogger(log),
		ratelimitService.WithAuditLogger(auditLogger),
		ratelimitService.WithMetrics(ratelimitMetrics.New(registry)),
		ratelimitService.WithTracer(tr),
	)
	if err != nil {
		return err
	}
	throttle, err := globalthrottle.New(cfg.GlobalPerSecond, cfg.GlobalBurst,
		globalthrottle.WithLogger(log),
		globalthrottle.WithRegisterer(registry),
	)
	if err != nil {
		return err
	}

	// Account lockout
	lockouts := lockoutStore.New(lockoutStore.WithIdleTTL(cfg.Lockout.IdleTTL))
	guard, err := lockoutService.New(lockouts,
		lockoutService.WithLogger(log),
		lockoutService.WithAuditLogger(auditLogger),
		lockoutService.WithMetrics(lockoutMetrics.New(registry)),
		lockoutService.WithTracer(tr),
		lockoutService.WithConfig(lockoutModels.Config{
			MaxAttempts:  cfg.Lockout.MaxAttempts,
			LockDuration: cfg.Lockout.Duration,
			IdleTTL:      cfg.Lockout.IdleTTL,
		}),
	)
	if err != nil {
		return err
	}

	// CSRF
	csrf := csrfService.New(
		csrfService.WithTTL(cfg.CSRFTokenTTL),
		csrfService.WithLogger(log),
		csrfService.WithAuditLogger(auditLogger),
		csrfService.WithMetrics(csrfMetrics.New(registry)),
		csrfService.WithTracer(tr),
	)

	// One-time credentials
	otMetrics := onetimeMetrics.New(registry)
	issuerOpts := []onetimeService.Option{
		onetimeService.WithLogger(log),
		onetimeService.WithAuditLogger(auditLogger),
		onetimeService.WithMetrics(otMetrics),
		onetimeService.WithTracer(tr),
	}
	verification := onetimeService.NewEmailVerification(issuerOpts...)
	reset := onetimeService.NewPasswordReset(issuerOpts...)
	mail := sender.NewLogSender(log)
	notifierOpts := []onetimeService.NotifierOption{
		onetimeService.WithNotifierLogger(log),
		onetimeService.WithNotifierAudit(auditLogger),
		onetimeService.WithNotifierMetrics(otMetrics),
	}

	accounts := accountStore.New()

	// Background sweep
	sweeper := cleanup.New([]cleanup.Target{
		{Name: "rate_limit_windows", Sweeper: windows},
		{Name: "lockout_records", Sweeper: lockouts},
		{Name: "csrf_tokens", Sweeper: csrf},
		{Name: "email_verification", Sweeper: verification},
		{Name: "password_reset", Sweeper: reset},
	},
		cleanup.WithLogger(log),
		cleanup.WithInterval(cfg.SweepInterval),
		cleanup.WithMetrics(cleanup.NewMetrics(registry)),
		cleanup.WithTracer(tr),
	)

	healthHandler := health.New(cfg.Environment)
	healthHandler.RegisterStore("rate_limit_windows", windows.Len)
	healthHandler.RegisterStore("lockout_records", lockouts.Len)
	healthHandler.RegisterStore("csrf_tokens", csrf.Len)
	healthHandler.RegisterStore("email_verification", verification.Len)
	healthHandler.RegisterStore("password_reset", reset.Len)
	healthHandler.RegisterStore("accounts", accounts.Len)
	healthHandler.RegisterStore("ip_filter", ipLists.Len)
	healthHandler.RegisterCheck("cleanup", sweeper.LastError)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Logger:         log,
		RequestMetrics: request.NewMetrics(registry),
		Metadata:       metadata.NewMiddleware(&metadata.Config{TrustedProxies: proxies}),
		IPFilter:       ipFilter,
		GlobalThrottle: throttle,
		RateLimits:     ratelimitMiddleware.New(limiter, log),
		Policies:       policies,
		CSRF:           csrfMiddleware.New(csrf, log),
		CSRFHandler:    csrfHandler.New(csrf, log, cfg.IsProduction(), csrfHandler.DefaultCookieMaxAge),
		Auth: httptransport.NewAuthHandler(httptransport.AuthDeps{
			Accounts:             accounts,
			Lockout:              guard,
			Verification:         verification,
			VerificationNotifier: onetimeService.NewNotifier(verification, mail, notifierOpts...),
			Reset:                reset,
			ResetNotifier:        onetimeService.NewNotifier(reset, mail, notifierOpts...),
			Fingerprints:         fingerprint.NewChecker(auditLogger),
			Logger:               log,
		}),
		Health:  healthHandler,
		Metrics: registry,
		HSTS:    cfg.IsProduction(),
	})

	srv := httpserver.New(cfg.Addr, router)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		return httpserver.Run(gctx, srv, cfg.ShutdownTimeout)
	})
	g.Go(func() error {
		return sweeper.Start(gctx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
