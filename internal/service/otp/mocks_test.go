package otp_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/chainguard/api/internal/domain"
	"github.com/chainguard/api/internal/repository"
)

// MockUserRepository is a map-backed user store
type MockUserRepository struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*domain.User
	GetErr error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[uuid.UUID]*domain.User)}
}

func (m *MockUserRepository) Add(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepository) IsVerified(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return ok && u.IsVerified
}

func (m *MockUserRepository) markVerified(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.IsVerified = true
	}
}

// MockOTPRepository keeps records in insertion order, like created_at ordering
type MockOTPRepository struct {
	mu      sync.Mutex
	users   *MockUserRepository
	records []*domain.OTPRecord

	IssueErr        error
	FindActiveErr   error
	FindLatestErr   error
	MarkVerifiedErr error
	InvalidateErr   error
	// LoseMarkRace makes MarkVerified report that another verifier won.
	LoseMarkRace bool

	FindActiveCalls int
	InvalidateCalls int
}

func NewMockOTPRepository(users *MockUserRepository) *MockOTPRepository {
	return &MockOTPRepository{users: users}
}

func (m *MockOTPRepository) Issue(ctx context.Context, rec *domain.OTPRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IssueErr != nil {
		return m.IssueErr
	}
	m.invalidateLocked(rec.UserID)
	cp := *rec
	m.records = append(m.records, &cp)
	return nil
}

func (m *MockOTPRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.OTPRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindActiveCalls++
	if m.FindActiveErr != nil {
		return nil, m.FindActiveErr
	}
	for i := len(m.records) - 1; i >= 0; i-- {
		if r := m.records[i]; r.UserID == userID && !r.Verified {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("otp for user %s: %w", userID, repository.ErrNotFound)
}

func (m *MockOTPRepository) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.OTPRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindLatestErr != nil {
		return nil, m.FindLatestErr
	}
	for i := len(m.records) - 1; i >= 0; i-- {
		if r := m.records[i]; r.UserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("otp for user %s: %w", userID, repository.ErrNotFound)
}

func (m *MockOTPRepository) MarkVerified(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkVerifiedErr != nil {
		return false, m.MarkVerifiedErr
	}
	if m.LoseMarkRace {
		return false, nil
	}
	for _, r := range m.records {
		if r.ID == id && !r.Verified {
			r.Verified = true
			m.users.markVerified(userID)
			return true, nil
		}
	}
	return false, nil
}

func (m *MockOTPRepository) InvalidateAllActiveForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InvalidateCalls++
	if m.InvalidateErr != nil {
		return 0, m.InvalidateErr
	}
	return m.invalidateLocked(userID), nil
}

func (m *MockOTPRepository) invalidateLocked(userID uuid.UUID) int64 {
	var n int64
	for _, r := range m.records {
		if r.UserID == userID && !r.Verified {
			r.Verified = true
			n++
		}
	}
	return n
}

// Records returns copies of every stored record for the user, oldest first.
func (m *MockOTPRepository) Records(userID uuid.UUID) []domain.OTPRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OTPRecord
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out
}

// MockAuditRepository mocks AuditRepository interface
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) LogEvent(ctx context.Context, event repository.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type sentCode struct {
	To   string
	Code string
}

// MockEmailSender records deliveries; safe for the confirmation goroutine.
type MockEmailSender struct {
	mu            sync.Mutex
	OTPs          []sentCode
	Confirmations []string
	SendOTPErr    error
	ConfirmErr    error
	// OnSendOTP runs after the delivery is recorded, outside the lock.
	OnSendOTP func(ctx context.Context) error
}

func (m *MockEmailSender) SendOTP(ctx context.Context, to, code string) error {
	m.mu.Lock()
	m.OTPs = append(m.OTPs, sentCode{To: to, Code: code})
	err, hook := m.SendOTPErr, m.OnSendOTP
	m.mu.Unlock()
	if hook != nil {
		if hookErr := hook(ctx); hookErr != nil {
			return hookErr
		}
	}
	return err
}

func (m *MockEmailSender) SendVerificationSuccess(ctx context.Context, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Confirmations = append(m.Confirmations, to)
	return m.ConfirmErr
}

func (m *MockEmailSender) Sent() []sentCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentCode(nil), m.OTPs...)
}

func (m *MockEmailSender) Confirmed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Confirmations...)
}

// MockSMSSender records deliveries
type MockSMSSender struct {
	mu      sync.Mutex
	OTPs    []sentCode
	SendErr error
	// OnSendOTP runs after the delivery is recorded, outside the lock.
	OnSendOTP func(ctx context.Context) error
}

func (m *MockSMSSender) SendOTP(ctx context.Context, phoneNumber, code string) error {
	m.mu.Lock()
	m.OTPs = append(m.OTPs, sentCode{To: phoneNumber, Code: code})
	err, hook := m.SendErr, m.OnSendOTP
	m.mu.Unlock()
	if hook != nil {
		if hookErr := hook(ctx); hookErr != nil {
			return hookErr
		}
	}
	return err
}

func (m *MockSMSSender) Sent() []sentCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentCode(nil), m.OTPs...)
}

// sequenceGenerator hands out fixed codes in order
type sequenceGenerator struct {
	mu    sync.Mutex
	codes []string
	next  int
	err   error
}

func newSequenceGenerator(codes ...string) *sequenceGenerator {
	return &sequenceGenerator{codes: codes}
}

func (g *sequenceGenerator) Generate(digits int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	if g.next >= len(g.codes) {
		return "", fmt.Errorf("sequence exhausted after %d codes", len(g.codes))
	}
	code := g.codes[g.next]
	g.next++
	return code, nil
}
