package repository

import (
	"context"
	"database/sql"

	"github.com/cantapp/canteen-core/internal/model"
)

// AuditLogRepository persists the per-school hash-chained audit trail.
// Rows are append-only; nothing in the application updates or deletes
// them.
type AuditLogRepository struct {
	DB *sql.DB
}

func NewAuditLogRepository(db *sql.DB) *AuditLogRepository {
	return &AuditLogRepository{DB: db}
}

// LastHashTx returns the hash of the school's newest audit entry, or nil
// for an empty chain.  The FOR UPDATE lock serializes appends per school
// so two concurrent writers cannot both link to the same predecessor.
func (r *AuditLogRepository) LastHashTx(ctx context.Context, tx *sql.Tx, schoolID uint64) (*string, error) {
	var h string
	err := tx.QueryRowContext(ctx,
		`SELECT log_hash FROM audit_logs WHERE school_id = ?
		 ORDER BY id DESC LIMIT 1 FOR UPDATE`,
		schoolID).Scan(&h)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// InsertTx appends one audit entry with its precomputed chain hash.
func (r *AuditLogRepository) InsertTx(ctx context.Context, tx *sql.Tx, l *model.AuditLog) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO audit_logs (school_id, user_id, action, entity, entity_id, meta, log_hash, previous_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP())`,
		l.SchoolID, l.UserID, l.Action, l.Entity, l.EntityID, l.Meta, l.LogHash, l.PreviousHash)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// ListBySchoolAsc streams a school's audit entries in insertion order,
// the order the chain was built in.  Verification walks this.
func (r *AuditLogRepository) ListBySchoolAsc(ctx context.Context, schoolID uint64) ([]model.AuditLog, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, school_id, user_id, action, entity, entity_id, meta, log_hash, previous_hash, created_at
		 FROM audit_logs WHERE school_id = ? ORDER BY id ASC`,
		schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditLog
	for rows.Next() {
		var l model.AuditLog
		if err := rows.Scan(&l.ID, &l.SchoolID, &l.UserID, &l.Action, &l.Entity,
			&l.EntityID, &l.Meta, &l.LogHash, &l.PreviousHash, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListBySchoolPage pages newest-first for the admin viewer.
func (r *AuditLogRepository) ListBySchoolPage(ctx context.Context, schoolID uint64, limit, offset int) ([]model.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, school_id, user_id, action, entity, entity_id, meta, log_hash, previous_hash, created_at
		 FROM audit_logs WHERE school_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`,
		schoolID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditLog
	for rows.Next() {
		var l model.AuditLog
		if err := rows.Scan(&l.ID, &l.SchoolID, &l.UserID, &l.Action, &l.Entity,
			&l.EntityID, &l.Meta, &l.LogHash, &l.PreviousHash, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
