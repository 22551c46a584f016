package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"` // Never expose
	PhoneNumber   string    `json:"phoneNumber"`
	WalletAddress *string   `json:"walletAddress"`
	IsVerified    bool      `json:"isVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CanLogin reports whether the account has completed OTP verification.
func (u *User) CanLogin() bool {
	return u.IsVerified
}
