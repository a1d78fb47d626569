package model

import "time"

type Pin struct {
	ID        string     `db:"id" json:"id"`
	Code      string     `db:"pin" json:"pin"`
	OwnerID   *string    `db:"user_id" json:"ownerId,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	ExpiresAt time.Time  `db:"expires_at" json:"expiresAt"`
	UsedAt    *time.Time `db:"used_at" json:"usedAt,omitempty"`
}

type CreatePinParams struct {
	Code      string
	OwnerID   *string
	ExpiresAt time.Time
}

// Live reports whether the PIN is still redeemable at the given instant.
func (p *Pin) Live(now time.Time) bool {
	return p.UsedAt == nil && p.ExpiresAt.After(now)
}
