// Package validator checks download requests before any workspace or backend is touched.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jusdown/internal/config"
	"jusdown/internal/entity"
	"jusdown/internal/errs"
)

// StatusReader looks up a user's subscription.
type StatusReader interface {
	Status(ctx context.Context, userID string) (entity.SubscriptionStatus, error)
}

// Validator rejects requests the pipeline must not run.
type Validator struct {
	log     *slog.Logger
	status  StatusReader
	premium map[entity.Platform]bool
	timeout time.Duration
}

// New creates a Validator. status may be nil, in which case premium requests
// from logged-in users fail with errs.ErrSubscriptionUnavailable.
func New(log *slog.Logger, cfg *config.Config, status StatusReader) *Validator {
	premium := make(map[entity.Platform]bool, len(cfg.Subscription.PremiumPlatforms))

	for _, name := range cfg.Subscription.PremiumPlatforms {
		if p, ok := CanonicalPlatform(name); ok {
			premium[p] = true
		} else {
			log.Warn("unknown premium platform ignored", slog.String("platform", name))
		}
	}

	return &Validator{
		log:     log.With(slog.String("package", "validator")),
		status:  status,
		premium: premium,
		timeout: cfg.Subscription.LookupTimeout,
	}
}

// Validate returns nil or one of the errs rejection sentinels.
func (v *Validator) Validate(ctx context.Context, req entity.DownloadRequest, id entity.Identity) error {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return errs.ErrMissingURL
	}

	if !req.Type.Valid() {
		return fmt.Errorf("%q: %w", req.Type, errs.ErrUnsupportedContentType)
	}

	platform, known := CanonicalPlatform(req.Platform)
	if !known {
		return nil
	}

	if !MatchesURL(platform, url) {
		return fmt.Errorf("%s: %w", platform, errs.ErrPlatformMismatch)
	}

	if req.Type == entity.ContentImage && videoOnly[platform] {
		return fmt.Errorf("%s: %w", platform, errs.ErrUnsupportedCombination)
	}

	if v.premium[platform] {
		return v.checkSubscription(ctx, platform, id)
	}

	return nil
}

// ValidateFormats accepts only YouTube urls for format listings.
func (v *Validator) ValidateFormats(url string) error {
	if !MatchesURL(entity.PlatformYouTube, strings.TrimSpace(url)) {
		return errs.ErrYouTubeURLRequired
	}

	return nil
}

func (v *Validator) checkSubscription(ctx context.Context, platform entity.Platform, id entity.Identity) error {
	if !id.Present() {
		return fmt.Errorf("%s: %w", platform, errs.ErrLoginRequired)
	}

	if v.status == nil {
		return errs.ErrSubscriptionUnavailable
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	status, err := v.status.Status(ctx, id.ID)
	if err != nil {
		v.log.ErrorContext(ctx, "subscription lookup failed", slog.String("user_id", id.ID), slog.Any("error", err))

		return fmt.Errorf("%w: %w", errs.ErrSubscriptionUnavailable, err)
	}

	if !status.Exists || !status.Subscribed {
		return fmt.Errorf("%s: %w", platform, errs.ErrSubscriptionRequired)
	}

	return nil
}
