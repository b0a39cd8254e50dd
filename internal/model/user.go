package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents an account holder. Username and email are independently
// unique; the database indexes are the source of truth for that, not any
// pre-insert existence check.
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;size:30;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // Never expose in JSON

	// Outstanding password-reset state. Both fields are set together when a
	// reset is issued and cleared together when it is consumed or cancelled.
	ResetTokenDigest    *string    `json:"-" gorm:"size:64;index"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate sets the UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasPendingReset reports whether a reset secret is currently outstanding.
func (u *User) HasPendingReset() bool {
	return u.ResetTokenDigest != nil && u.ResetTokenExpiresAt != nil
}

// ClearResetToken drops any outstanding reset state.
func (u *User) ClearResetToken() {
	u.ResetTokenDigest = nil
	u.ResetTokenExpiresAt = nil
}
