package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/cantapp/canteen-core/internal/model"
	"github.com/cantapp/canteen-core/internal/repository"
)

// ChainViolation describes one defect found during verification.  For
// linkage defects the expected and actual previous hashes are reported
// so an investigator can see where the chain diverged.
type ChainViolation struct {
	EntryID              uint64  `json:"log_id"`
	Reason               string  `json:"reason"` // link_mismatch, missing_previous, missing_hash, hash_mismatch
	ExpectedPreviousHash *string `json:"expected_previous_hash,omitempty"`
	ActualPreviousHash   *string `json:"actual_previous_hash,omitempty"`
}

// AuditService appends entries to the per-school hash chain and verifies
// chain integrity.  The chain hash is computed here in the service, not
// in the database, so the HMAC key never leaves the application and a
// compromised database cannot forge valid entries.
type AuditService struct {
	repo   *repository.AuditLogRepository
	secret []byte
	log    *zap.Logger
}

func NewAuditService(repo *repository.AuditLogRepository, secret string, log *zap.Logger) *AuditService {
	return &AuditService{repo: repo, secret: []byte(secret), log: log}
}

// chainHash computes the HMAC-SHA256 link hash for one entry.  The
// message covers every content field plus the predecessor's hash, with a
// '|' separator and empty strings for nil fields.  CreatedAt is excluded
// because the database assigns it after the hash is computed.
func chainHash(secret []byte, schoolID uint64, userID *uint64, action, entity string, entityID *uint64, meta []byte, previousHash *string) string {
	var uid, eid, prev string
	if userID != nil {
		uid = strconv.FormatUint(*userID, 10)
	}
	if entityID != nil {
		eid = strconv.FormatUint(*entityID, 10)
	}
	if previousHash != nil {
		prev = *previousHash
	}
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d|%s|%s|%s|%s|%s|%s",
		schoolID, uid, action, entity, eid, meta, prev)
	return hex.EncodeToString(mac.Sum(nil))
}

// AppendTx writes one audit entry inside the caller's transaction,
// linking it to the school's current chain head.  LastHashTx locks the
// head row, so concurrent appends within one school serialize here.
func (s *AuditService) AppendTx(ctx context.Context, tx *sql.Tx, schoolID uint64, userID *uint64, action, entity string, entityID *uint64, meta any) (*model.AuditLog, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	prev, err := s.repo.LastHashTx(ctx, tx, schoolID)
	if err != nil {
		return nil, err
	}
	entry := &model.AuditLog{
		SchoolID:     schoolID,
		UserID:       userID,
		Action:       action,
		Entity:       entity,
		EntityID:     entityID,
		Meta:         metaJSON,
		PreviousHash: prev,
	}
	entry.LogHash = chainHash(s.secret, schoolID, userID, action, entity, entityID, metaJSON, prev)
	if err := s.repo.InsertTx(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// verifyEntries walks a school's chain in insertion order and reports
// every violation found.  Per entry: the first entry must have no
// predecessor, each later entry's PreviousHash must equal its
// predecessor's LogHash, a hash must be present at all, and the stored
// LogHash must match a fresh recomputation over the stored content.
// The recomputation is what catches content tampering; linkage alone
// only catches reordering and deletion.
func verifyEntries(secret []byte, entries []model.AuditLog) []ChainViolation {
	var violations []ChainViolation
	for i, e := range entries {
		if i == 0 {
			if e.PreviousHash != nil {
				violations = append(violations, ChainViolation{
					EntryID:            e.ID,
					Reason:             "link_mismatch",
					ActualPreviousHash: e.PreviousHash,
				})
			}
		} else {
			prev := entries[i-1]
			expected := prev.LogHash
			switch {
			case e.PreviousHash == nil:
				violations = append(violations, ChainViolation{
					EntryID:              e.ID,
					Reason:               "missing_previous",
					ExpectedPreviousHash: &expected,
				})
			case *e.PreviousHash != prev.LogHash:
				violations = append(violations, ChainViolation{
					EntryID:              e.ID,
					Reason:               "link_mismatch",
					ExpectedPreviousHash: &expected,
					ActualPreviousHash:   e.PreviousHash,
				})
			}
		}
		if e.LogHash == "" {
			violations = append(violations, ChainViolation{
				EntryID: e.ID,
				Reason:  "missing_hash",
			})
			continue
		}
		want := chainHash(secret, e.SchoolID, e.UserID, e.Action, e.Entity, e.EntityID, e.Meta, e.PreviousHash)
		if !hmac.Equal([]byte(want), []byte(e.LogHash)) {
			violations = append(violations, ChainViolation{
				EntryID: e.ID,
				Reason:  "hash_mismatch",
			})
		}
	}
	return violations
}

// VerifyChain checks the full chain of one school, returning the number
// of entries walked and all violations found.  An empty violation slice
// means the chain is intact.
func (s *AuditService) VerifyChain(ctx context.Context, schoolID uint64) (int, []ChainViolation, error) {
	entries, err := s.repo.ListBySchoolAsc(ctx, schoolID)
	if err != nil {
		return 0, nil, err
	}
	violations := verifyEntries(s.secret, entries)
	if len(violations) > 0 {
		s.log.Warn("audit chain verification failed",
			zap.Uint64("school_id", schoolID),
			zap.Int("entries", len(entries)),
			zap.Int("violations", len(violations)))
	}
	return len(entries), violations, nil
}

// List pages a school's audit entries for the admin viewer.
func (s *AuditService) List(ctx context.Context, schoolID uint64, limit, offset int) ([]model.AuditLog, error) {
	return s.repo.ListBySchoolPage(ctx, schoolID, limit, offset)
}
