// Package billing applies subscription changes pushed by the payment provider.
package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"jusdown/internal/config"
	"jusdown/internal/errs"
	"jusdown/internal/observability"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Subscription lifecycle events that change access.
const (
	EventCharged   = "subscription.charged"
	EventHalted    = "subscription.halted"
	EventCancelled = "subscription.cancelled"
)

// noteUserID is the subscription note that carries our user id.
const noteUserID = "firebase_uid"

// Result is the outcome of a verified event.
type Result string

// Possible results.
const (
	ResultApplied   Result = "applied"
	ResultDuplicate Result = "duplicate"
	ResultIgnored   Result = "ignored"
	ResultRejected  Result = "rejected"
)

// Store is where subscription changes are written.
type Store interface {
	SetSubscribed(ctx context.Context, userID string, subscribed bool) error
}

type event struct {
	Event   string `json:"event"`
	Payload struct {
		Subscription struct {
			Entity struct {
				ID    string            `json:"id"`
				Notes map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

// Webhook verifies and applies billing events.
type Webhook struct {
	log     *slog.Logger
	secret  string
	store   Store
	seen    *lru.LRU[string, struct{}]
	metrics *observability.Metrics
}

// NewWebhook creates a Webhook. Event ids are remembered for cfg.DedupeTTL.
func NewWebhook(log *slog.Logger, cfg config.Billing, store Store, metrics *observability.Metrics) *Webhook {
	return &Webhook{
		log:     log.With(slog.String("package", "billing")),
		secret:  cfg.WebhookSecret,
		store:   store,
		seen:    lru.NewLRU[string, struct{}](max(cfg.DedupeSize, 1), nil, cfg.DedupeTTL),
		metrics: metrics,
	}
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

// Handle verifies signature over body and applies the event once per eventID.
func (w *Webhook) Handle(ctx context.Context, body []byte, signature, eventID string) (Result, error) {
	if w.secret == "" || !hmac.Equal([]byte(Sign(w.secret, body)), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		w.metrics.RecordWebhookEvent("unknown", string(ResultRejected))

		return ResultRejected, errs.ErrInvalidSignature
	}

	var ev event
	if err := json.Unmarshal(body, &ev); err != nil {
		w.metrics.RecordWebhookEvent("unknown", string(ResultRejected))

		return ResultRejected, fmt.Errorf("decode event: %w", err)
	}

	log := w.log.With(slog.String("event", ev.Event), slog.String("event_id", eventID))

	var subscribed bool

	switch ev.Event {
	case EventCharged:
		subscribed = true
	case EventHalted, EventCancelled:
		subscribed = false
	default:
		log.DebugContext(ctx, "billing event ignored")
		w.metrics.RecordWebhookEvent(ev.Event, string(ResultIgnored))

		return ResultIgnored, nil
	}

	if eventID != "" && w.seen.Contains(eventID) {
		log.InfoContext(ctx, "duplicate billing event")
		w.metrics.RecordWebhookEvent(ev.Event, string(ResultDuplicate))

		return ResultDuplicate, nil
	}

	userID := strings.TrimSpace(ev.Payload.Subscription.Entity.Notes[noteUserID])
	if userID == "" {
		w.metrics.RecordWebhookEvent(ev.Event, string(ResultRejected))

		return ResultRejected, errs.ErrMissingUserID
	}

	if err := w.store.SetSubscribed(ctx, userID, subscribed); err != nil {
		return "", fmt.Errorf("set subscribed: %w", err)
	}

	if eventID != "" {
		w.seen.Add(eventID, struct{}{})
	}

	log.InfoContext(ctx, "billing event applied",
		slog.String("user_id", userID),
		slog.String("subscription_id", ev.Payload.Subscription.Entity.ID),
		slog.Bool("subscribed", subscribed))
	w.metrics.RecordWebhookEvent(ev.Event, string(ResultApplied))

	return ResultApplied, nil
}
