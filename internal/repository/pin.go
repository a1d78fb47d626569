package repository

import (
	"context"
	"time"

	"github.com/pinforge/pin-server-go/internal/database"
	"github.com/pinforge/pin-server-go/internal/model"
)

type PinRepository interface {
	// FindByCode returns the record with the exact code value, used or
	// expired rows included, or (nil, nil) when no such record exists.
	FindByCode(ctx context.Context, code string) (*model.Pin, error)
	Create(ctx context.Context, params model.CreatePinParams) (*model.Pin, error)
	// MarkUsed atomically stamps used_at on the record, conditioned on
	// used_at still being NULL. Returns (nil, nil) when the condition did
	// not match, i.e. a concurrent redemption won the race.
	MarkUsed(ctx context.Context, id string) (*model.Pin, error)
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
	DeleteUsedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountLive(ctx context.Context) (int, error)
}

type pinRepo struct {
	db database.DBTX
}

func NewPinRepository(db database.DBTX) PinRepository {
	return &pinRepo{db: db}
}

func (r *pinRepo) FindByCode(ctx context.Context, code string) (*model.Pin, error) {
	var pin model.Pin
	err := r.db.GetContext(ctx, &pin, `
		SELECT * FROM pins
		WHERE pin = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, code)
	return HandleNotFound(&pin, err)
}

func (r *pinRepo) Create(ctx context.Context, params model.CreatePinParams) (*model.Pin, error) {
	var pin model.Pin
	err := r.db.GetContext(ctx, &pin, `
		INSERT INTO pins (pin, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.Code, params.OwnerID, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &pin, nil
}

// MarkUsed is the single point of truth for exactly-once redemption. The
// used_at IS NULL predicate and the write happen in one statement, so of
// any number of concurrent attempts exactly one matches a row; the rest
// see sql.ErrNoRows and report the lost race to the caller.
func (r *pinRepo) MarkUsed(ctx context.Context, id string) (*model.Pin, error) {
	var pin model.Pin
	err := r.db.GetContext(ctx, &pin, `
		UPDATE pins SET used_at = NOW()
		WHERE id = $1 AND used_at IS NULL
		RETURNING *
	`, id)
	return HandleNotFound(&pin, err)
}

func (r *pinRepo) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pins
		WHERE user_id = $1
	`, ownerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteUsedBefore purges redeemed records older than the cutoff. Unused
// records are never touched, expired or not.
func (r *pinRepo) DeleteUsedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pins
		WHERE used_at IS NOT NULL AND used_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *pinRepo) CountLive(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM pins
		WHERE used_at IS NULL AND expires_at > NOW()
	`)
	return count, err
}
