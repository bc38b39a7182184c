// Package audit writes the append-only operational trail of the auth domain.
// Connection events additionally persist rows through the directory; this log
// is the line-per-event record operators grep and ship.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"fintrack.org/internal/auth"
	"fintrack.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Event is one audit-trail entry. Name is required; empty fields are omitted
// from the output. UserID falls back to the authenticated subject on the
// context, so handlers only set it for flows acting before authentication.
type Event struct {
	Name         string
	Email        string
	UserID       string
	ConnectionID string
	Result       string
	IP           string
}

// Record writes the event as one JSON line, enriched with the request id and
// the authenticated subject from the context.
func Record(ctx context.Context, ev Event) error {
	name := strings.TrimSpace(ev.Name)
	if name == "" {
		return errors.New("audit: event name is required")
	}

	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": name,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	userID := ev.UserID
	if userID == "" {
		if sub, ok := auth.UserIDFromContext(ctx); ok {
			userID = sub
		}
	}
	if userID != "" {
		entry["user_id"] = userID
	}
	if ev.Email != "" {
		entry["email"] = ev.Email
	}
	if ev.ConnectionID != "" {
		entry["connection_id"] = ev.ConnectionID
	}
	if ev.Result != "" {
		entry["result"] = ev.Result
	}
	if ev.IP != "" {
		entry["ip"] = ev.IP
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
