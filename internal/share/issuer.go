package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/CamDog38/ShopDelta2-sub001/internal/metrics"
)

const (
	maxCodeAttempts = 5
	maxTitleLength  = 200
)

// IssueOptions describes a new share link.
type IssueOptions struct {
	Title     string
	Mode      Mode
	YearA     *int
	YearB     *int
	Month     *int
	Password  string
	ExpiresIn string
}

// UpdateOptions lists the owner-editable fields. Nil fields are left alone.
type UpdateOptions struct {
	Title          *string
	Password       *string
	RemovePassword bool
	ExpiresIn      *string
	IsActive       *bool
}

// Issuer creates and manages share links for shops.
type Issuer struct {
	store   Store
	hasher  *Hasher
	logger  *slog.Logger
	now     func() time.Time
	newCode func() (string, error)
}

func NewIssuer(store Store, hasher *Hasher, logger *slog.Logger) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{
		store:   store,
		hasher:  hasher,
		logger:  logger,
		now:     time.Now,
		newCode: NewCode,
	}
}

// Issue creates a share link owned by shop.
func (i *Issuer) Issue(ctx context.Context, shop string, opts IssueOptions) (Token, error) {
	if shop == "" {
		return Token{}, fmt.Errorf("%w: shop is required", ErrInvalidInput)
	}
	if err := validateIssue(opts); err != nil {
		return Token{}, err
	}

	now := i.now().UTC()
	expiresAt, err := ExpiresAt(opts.ExpiresIn, now)
	if err != nil {
		return Token{}, err
	}

	t := Token{
		ID:        uuid.NewString(),
		Shop:      shop,
		Title:     opts.Title,
		Mode:      opts.Mode,
		YearA:     opts.YearA,
		YearB:     opts.YearB,
		Month:     opts.Month,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: expiresAt,
		Active:    true,
	}
	if opts.Password != "" {
		h := i.hasher.Hash(opts.Password)
		t.PasswordHash = &h
	}

	for attempt := 1; ; attempt++ {
		code, err := i.newCode()
		if err != nil {
			return Token{}, fmt.Errorf("generate share code: %w", err)
		}
		t.Code = code

		err = i.store.Insert(ctx, t)
		if err == nil {
			break
		}
		if errors.Is(err, errCodeConflict) && attempt < maxCodeAttempts {
			i.logger.Warn("share code collision, retrying", "shop", shop, "attempt", attempt)
			continue
		}
		return Token{}, err
	}

	metrics.ShareTokens.WithLabelValues("issued").Inc()
	i.logger.Info("share link issued",
		"shop", shop,
		"share_id", t.ID,
		"mode", string(t.Mode),
		"has_password", t.HasPassword(),
		"expires_at", t.ExpiresAt,
	)
	return t, nil
}

// Get returns a token owned by shop.
func (i *Issuer) Get(ctx context.Context, shop, id string) (Token, error) {
	return i.store.Get(ctx, shop, id)
}

// List returns shop's tokens, newest first.
func (i *Issuer) List(ctx context.Context, shop string) ([]Token, error) {
	return i.store.List(ctx, shop)
}

// Revoke permanently disables a token. Revoking twice is not an error.
func (i *Issuer) Revoke(ctx context.Context, shop, id string) (Token, error) {
	t, err := i.store.Get(ctx, shop, id)
	if err != nil {
		return Token{}, err
	}
	if t.Revoked {
		return t, nil
	}

	if err := i.store.Revoke(ctx, shop, id, i.now().UTC()); err != nil {
		return Token{}, err
	}
	if t, err = i.store.Get(ctx, shop, id); err != nil {
		return Token{}, err
	}

	metrics.ShareTokens.WithLabelValues("revoked").Inc()
	i.logger.Info("share link revoked", "shop", shop, "share_id", id)
	return t, nil
}

// Delete removes a token owned by shop.
func (i *Issuer) Delete(ctx context.Context, shop, id string) error {
	if err := i.store.Delete(ctx, shop, id); err != nil {
		return err
	}
	metrics.ShareTokens.WithLabelValues("deleted").Inc()
	i.logger.Info("share link deleted", "shop", shop, "share_id", id)
	return nil
}

// Update edits a token owned by shop. A revoked token cannot be edited.
func (i *Issuer) Update(ctx context.Context, shop, id string, opts UpdateOptions) (Token, error) {
	if opts.RemovePassword && opts.Password != nil && *opts.Password != "" {
		return Token{}, fmt.Errorf("%w: password and removePassword are mutually exclusive", ErrInvalidInput)
	}
	if opts.Title != nil && len(*opts.Title) > maxTitleLength {
		return Token{}, fmt.Errorf("%w: title longer than %d characters", ErrInvalidInput, maxTitleLength)
	}

	t, err := i.store.Get(ctx, shop, id)
	if err != nil {
		return Token{}, err
	}
	if t.Revoked {
		return Token{}, ErrRevoked
	}

	now := i.now().UTC()
	if opts.Title != nil {
		t.Title = *opts.Title
	}
	if opts.RemovePassword {
		t.PasswordHash = nil
	} else if opts.Password != nil && *opts.Password != "" {
		h := i.hasher.Hash(*opts.Password)
		t.PasswordHash = &h
	}
	if opts.ExpiresIn != nil {
		expiresAt, err := ExpiresAt(*opts.ExpiresIn, now)
		if err != nil {
			return Token{}, err
		}
		t.ExpiresAt = expiresAt
	}
	if opts.IsActive != nil {
		t.Active = *opts.IsActive
	}
	t.UpdatedAt = now

	if err := i.store.Update(ctx, t); err != nil {
		return Token{}, err
	}
	return t, nil
}

// DeleteShopShares removes every token owned by shop.
func (i *Issuer) DeleteShopShares(ctx context.Context, shop string) (int64, error) {
	return i.store.DeleteShop(ctx, shop)
}

// Resolve looks a token up by its public code. Tokens that are revoked,
// expired or inactive yield ErrInaccessible together with their state.
// A view is recorded only when no password stands in the way.
func (i *Issuer) Resolve(ctx context.Context, code string) (Token, AccessState, error) {
	if !ValidCode(code) {
		return Token{}, "", ErrNotFound
	}
	t, err := i.store.GetByCode(ctx, code)
	if err != nil {
		return Token{}, "", err
	}

	now := i.now().UTC()
	state := t.State(now)
	switch state {
	case StateActive:
		i.recordView(ctx, &t, now)
		return t, state, nil
	case StatePasswordRequired:
		return t, state, nil
	default:
		return t, state, ErrInaccessible
	}
}

// Unlock checks password against a protected token and records a view.
func (i *Issuer) Unlock(ctx context.Context, code, password string) (Token, error) {
	if !ValidCode(code) {
		return Token{}, ErrNotFound
	}
	t, err := i.store.GetByCode(ctx, code)
	if err != nil {
		return Token{}, err
	}

	now := i.now().UTC()
	if !t.Accessible(now) {
		return Token{}, ErrInaccessible
	}
	if t.HasPassword() && !i.hasher.Verify(password, *t.PasswordHash) {
		metrics.ShareTokens.WithLabelValues("unlock_failed").Inc()
		return Token{}, ErrPasswordMismatch
	}

	metrics.ShareTokens.WithLabelValues("unlocked").Inc()
	i.recordView(ctx, &t, now)
	return t, nil
}

func (i *Issuer) recordView(ctx context.Context, t *Token, at time.Time) {
	if err := i.store.RecordView(ctx, t.ID, at); err != nil {
		i.logger.Warn("failed to record share view", "share_id", t.ID, "error", err)
		return
	}
	t.ViewCount++
	t.LastViewedAt = &at
}

func validateIssue(opts IssueOptions) error {
	if len(opts.Title) > maxTitleLength {
		return fmt.Errorf("%w: title longer than %d characters", ErrInvalidInput, maxTitleLength)
	}
	switch opts.Mode {
	case ModeYear:
		if opts.YearA == nil {
			return fmt.Errorf("%w: yearA is required for year mode", ErrInvalidInput)
		}
	case ModeMonth:
		if opts.YearA == nil || opts.Month == nil {
			return fmt.Errorf("%w: yearA and month are required for month mode", ErrInvalidInput)
		}
		if *opts.Month < 1 || *opts.Month > 12 {
			return fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: mode must be year or month (got %q)", ErrInvalidInput, opts.Mode)
	}
	return nil
}
