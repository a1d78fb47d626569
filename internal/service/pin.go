package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/pinforge/pin-server-go/internal/errors"
	"github.com/pinforge/pin-server-go/internal/model"
	"github.com/pinforge/pin-server-go/internal/repository"
	"github.com/pinforge/pin-server-go/internal/util"
)

const (
	defaultTTLMinutes  = 30
	maxTTLMinutes      = 240
	maxOwnerIDLength   = 64
	minRedeemCodeLen   = 4
	maxRedeemCodeLen   = 64
	defaultMaxAttempts = 10
)

// Options configures a PinService. The zero value uses the defaults above,
// so callers only set what they need.
type Options struct {
	DefaultTTL  time.Duration
	MaxTTL      time.Duration
	MaxAttempts int
}

func (o Options) withDefaults() Options {
	if o.DefaultTTL <= 0 {
		o.DefaultTTL = defaultTTLMinutes * time.Minute
	}
	if o.MaxTTL <= 0 {
		o.MaxTTL = maxTTLMinutes * time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	return o
}

// PinService owns the PIN lifecycle: issuance with uniqueness against the
// current store contents, and exactly-once redemption delegated to the
// repository's conditional write.
type PinService struct {
	repo repository.PinRepository
	gen  *Generator
	opts Options
}

func NewPinService(repo repository.PinRepository, gen *Generator, opts Options) *PinService {
	return &PinService{
		repo: repo,
		gen:  gen,
		opts: opts.withDefaults(),
	}
}

// Issue mints a new PIN, optionally bound to ownerID. A bound owner has at
// most one live PIN: any prior records for the owner are deleted first, and
// a failure there is a hard error rather than a silent leak of stale PINs.
func (s *PinService) Issue(ctx context.Context, ownerID string, ttlMinutes int) (*model.Pin, error) {
	ownerID = strings.TrimSpace(ownerID)
	if len(ownerID) > maxOwnerIDLength {
		return nil, apperrors.InvalidInput("ownerId", "must be at most 64 characters")
	}
	if ttlMinutes < 0 || time.Duration(ttlMinutes)*time.Minute > s.opts.MaxTTL {
		return nil, apperrors.InvalidInput("ttlMinutes", "must be between 1 and 240")
	}

	ttl := s.opts.DefaultTTL
	if ttlMinutes > 0 {
		ttl = time.Duration(ttlMinutes) * time.Minute
	}

	if ownerID != "" {
		deleted, err := s.repo.DeleteByOwner(ctx, ownerID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if deleted > 0 {
			log.Info().Str("ownerId", ownerID).Int64("deleted", deleted).
				Msg("replaced prior PINs for owner")
		}
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	var owner *string
	if ownerID != "" {
		owner = &ownerID
	}

	pin, err := s.repo.Create(ctx, model.CreatePinParams{
		Code:      code,
		OwnerID:   owner,
		ExpiresAt: time.Now().Add(ttl),
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("pin", util.MaskCode(pin.Code)).
		Str("ownerId", ownerID).
		Time("expiresAt", pin.ExpiresAt).
		Msg("pin issued")

	return pin, nil
}

// uniqueCode draws candidates until one has no existing record with the
// same value. The loop is bounded: a saturated keyspace surfaces as
// GENERATION_EXHAUSTED instead of spinning forever.
func (s *PinService) uniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < s.opts.MaxAttempts; attempt++ {
		code := s.gen.Generate()
		existing, err := s.repo.FindByCode(ctx, code)
		if err != nil {
			return "", apperrors.Database(err)
		}
		if existing == nil {
			return code, nil
		}
		log.Warn().Int("attempt", attempt+1).Msg("pin collision, regenerating")
	}
	return "", apperrors.GenerationExhausted(s.opts.MaxAttempts)
}

// Redeem consumes a PIN exactly once. Expiry is checked before use-state,
// so an expired PIN reports PIN_EXPIRED even when it was never redeemed.
// The final transition is a single conditional write; losing the race
// between the read and that write reports PIN_ALREADY_USED.
func (s *PinService) Redeem(ctx context.Context, code string) (*model.Pin, error) {
	code = NormalizeCode(code)
	if len(code) < minRedeemCodeLen || len(code) > maxRedeemCodeLen {
		return nil, apperrors.InvalidInput("pin", "must be between 4 and 64 characters")
	}

	pin, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if pin == nil {
		return nil, apperrors.NotFound("PIN")
	}

	if pin.ExpiresAt.IsZero() {
		log.Error().Str("id", pin.ID).Msg("pin record has no expiry")
		return nil, apperrors.InconsistentRow("PIN record is malformed")
	}

	if pin.ExpiresAt.Before(time.Now()) {
		return nil, apperrors.PinExpired()
	}
	if pin.UsedAt != nil {
		return nil, apperrors.PinAlreadyUsed()
	}

	used, err := s.repo.MarkUsed(ctx, pin.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if used == nil {
		// A concurrent redemption consumed the PIN between our read and
		// the conditional write. The earlier snapshot is not authoritative.
		return nil, apperrors.PinAlreadyUsed()
	}

	log.Info().
		Str("pin", util.MaskCode(used.Code)).
		Time("usedAt", *used.UsedAt).
		Msg("pin redeemed")

	return used, nil
}

// NormalizeCode applies the canonical form used for lookups: surrounding
// whitespace stripped, letters uppercased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
