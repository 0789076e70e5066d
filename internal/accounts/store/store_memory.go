// Package store keeps accounts in process memory.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"gatekeeper/internal/accounts/models"
	otmodels "gatekeeper/internal/onetime/models"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/requestcontext"
	"gatekeeper/pkg/secrets"
)

// ErrNotFound is returned when no account matches.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "account not found")

// ErrExists is returned by Register for an email that is already taken.
var ErrExists = dErrors.New(dErrors.CodeConflict, "User already exists with this email")

// dummyHash is compared against when an email is unknown, so a miss costs the same bcrypt
// round as a wrong password.
var dummyHash = sync.OnceValue(func() string {
	h, _ := secrets.HashPassword("gatekeeper-unknown-account")
	return h
})

// InMemoryStore indexes accounts by normalized email. Returned accounts are copies.
type InMemoryStore struct {
	mu      sync.RWMutex
	byEmail map[string]*models.Account
	byID    map[string]*models.Account
}

func New() *InMemoryStore {
	return &InMemoryStore{
		byEmail: make(map[string]*models.Account),
		byID:    make(map[string]*models.Account),
	}
}

// Register creates an active, unverified account.
func (s *InMemoryStore) Register(ctx context.Context, name, address, password string) (*models.Account, error) {
	address = otmodels.NormalizeEmail(address)
	hash, err := secrets.HashPassword(password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[address]; ok {
		return nil, ErrExists
	}
	acct := &models.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        address,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    requestcontext.Now(ctx),
	}
	s.byEmail[address] = acct
	s.byID[acct.ID] = acct
	clone := *acct
	return &clone, nil
}

// Authenticate checks password for the account behind address. ok is false for an unknown
// email and for a wrong password alike.
func (s *InMemoryStore) Authenticate(ctx context.Context, address, password string) (*models.Account, bool, error) {
	acct, err := s.FindByEmail(ctx, address)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			_, _ = secrets.CheckPassword(password, dummyHash())
			return nil, false, nil
		}
		return nil, false, err
	}
	ok, err := secrets.CheckPassword(password, acct.PasswordHash)
	if err != nil || !ok {
		return nil, false, err
	}
	return acct, true, nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, address string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.byEmail[otmodels.NormalizeEmail(address)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *acct
	return &clone, nil
}

func (s *InMemoryStore) SetPassword(_ context.Context, id, password string) error {
	hash, err := secrets.HashPassword(password)
	if err != nil {
		return err
	}
	return s.update(id, func(a *models.Account) { a.PasswordHash = hash })
}

func (s *InMemoryStore) MarkEmailVerified(_ context.Context, id string) error {
	return s.update(id, func(a *models.Account) { a.Verified = true })
}

// SetActive enables or disables sign-in for an account.
func (s *InMemoryStore) SetActive(_ context.Context, id string, active bool) error {
	return s.update(id, func(a *models.Account) { a.Active = active })
}

func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *InMemoryStore) update(id string, fn func(*models.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(acct)
	return nil
}
