package httputil

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// MaxPeekBytes bounds how much of a request body the gates will buffer to read a field.
const MaxPeekBytes = 1 << 20

// PeekField reads a top-level string field from a JSON or urlencoded form body without
// consuming it: the buffered prefix is replayed ahead of the unread remainder, so downstream
// handlers see the whole body and any read error of the original reader.
// Missing, oversized or undecodable bodies yield "".
func PeekField(r *http.Request, field string) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	orig := r.Body
	raw, err := io.ReadAll(io.LimitReader(orig, MaxPeekBytes+1))
	r.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(raw), orig), Closer: orig}
	if err != nil || len(raw) > MaxPeekBytes {
		return ""
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return ""
		}
		return values.Get(field)
	default:
		var body map[string]json.RawMessage
		if err := json.Unmarshal(raw, &body); err != nil {
			return ""
		}
		var value string
		if err := json.Unmarshal(body[field], &value); err != nil {
			return ""
		}
		return value
	}
}

type replayBody struct {
	io.Reader
	io.Closer
}
