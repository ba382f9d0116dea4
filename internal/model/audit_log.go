package model

import "time"

// AuditLog is one entry of a school's tamper-evident log chain.  Each
// entry's PreviousHash must equal the LogHash of the entry created just
// before it within the same school, forming a singly linked chain.  The
// hash is an HMAC over the entry's content plus PreviousHash, so neither
// the content nor the linkage can change without breaking verification.
type AuditLog struct {
	ID           uint64    // audit_logs.id
	SchoolID     uint64    // audit_logs.school_id
	UserID       *uint64   // audit_logs.user_id (nullable)
	Action       string    // audit_logs.action
	Entity       string    // audit_logs.entity
	EntityID     *uint64   // audit_logs.entity_id (nullable)
	Meta         []byte    // audit_logs.meta (JSON)
	LogHash      string    // audit_logs.log_hash
	PreviousHash *string   // audit_logs.previous_hash (nullable, nil for the first entry)
	CreatedAt    time.Time // audit_logs.created_at
}
