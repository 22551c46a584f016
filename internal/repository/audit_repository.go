package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEvent represents a generic audit event (otp, auth)
type AuditEvent struct {
	EventType     string                 // otp_issued, otp_verified, otp_verify_failed, login_failed, ...
	ActorID       string                 // User ID
	ActorEmail    string                 // User email
	ClientIP      string                 // Client IP address
	UserAgent     string                 // Browser/client UA
	Success       bool                   // Event succeeded?
	FailureReason string                 // Reason for failure (if any)
	Metadata      map[string]interface{} // Additional data
}

// AuditRepository defines audit logging operations
type AuditRepository interface {
	LogEvent(ctx context.Context, event AuditEvent) error
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) LogEvent(ctx context.Context, event AuditEvent) error {
	details := map[string]interface{}{
		"email":          event.ActorEmail,
		"failure_reason": event.FailureReason,
	}
	for k, v := range event.Metadata {
		details[k] = v
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	var actorID *uuid.UUID
	if parsed, err := uuid.Parse(event.ActorID); err == nil {
		actorID = &parsed
	}

	var clientIP *netip.Addr
	if ip, err := netip.ParseAddr(event.ClientIP); err == nil {
		clientIP = &ip
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (event_type, actor_id, client_ip, user_agent, success, details)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.EventType, actorID, clientIP, event.UserAgent, event.Success, detailsJSON)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
