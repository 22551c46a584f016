package domain

import (
	"time"

	"github.com/google/uuid"
)

// OTPRecord is one issuance of a split email/SMS code pair.
// Records are never deleted; superseded records are marked verified.
type OTPRecord struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Email     string
	Phone     string
	EmailCode string
	PhoneCode string
	CreatedAt time.Time
	ExpiresAt time.Time
	Verified  bool
}

// NewOTPRecord builds an unverified record expiring ttl after now.
func NewOTPRecord(userID uuid.UUID, email, phone, emailCode, phoneCode string, now time.Time, ttl time.Duration) *OTPRecord {
	return &OTPRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Email:     email,
		Phone:     phone,
		EmailCode: emailCode,
		PhoneCode: phoneCode,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired is true from expiresAt onwards.
func (r *OTPRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsActive reports whether the record can still be used for verification.
func (r *OTPRecord) IsActive(now time.Time) bool {
	return !r.Verified && !r.IsExpired(now)
}

// Matches compares both codes as strings so leading zeros are significant.
func (r *OTPRecord) Matches(emailCode, phoneCode string) (emailMatch, phoneMatch bool) {
	return r.EmailCode == emailCode, r.PhoneCode == phoneCode
}
