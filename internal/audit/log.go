// Package audit implements the append-only, hash-chained event record
// described in the data model: each entry's hash binds the canonical
// serialization of the event to the previous entry's hash, so tampering
// with any row breaks the chain for every row after it.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/rs/zerolog"
)

// Log appends hash-chained audit entries to the audit_log table.
type Log struct {
	db  *sql.DB
	log zerolog.Logger
}

// New creates a new audit log writer.
func New(db *sql.DB, log zerolog.Logger) *Log {
	return &Log{db: db, log: log.With().Str("component", "audit").Logger()}
}

// RecordNow appends one audit entry, chaining it to the previous entry for
// the same entity (a weak, timestamp-only order holds across entities,
// per §5). Audit writes are local SQLite calls, not I/O worth cancelling,
// so there is no context parameter.
func (l *Log) RecordNow(entityType, entityID, eventType, actor, action, reason string, before, after interface{}) (*domain.AuditLog, error) {
	return l.record(entityType, entityID, eventType, actor, action, reason, before, after)
}

func (l *Log) record(entityType, entityID, eventType, actor, action, reason string, before, after interface{}) (*domain.AuditLog, error) {
	previousHash, err := l.lastHash(entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to read previous hash: %w", err)
	}

	beforeJSON, _ := json.Marshal(before)
	afterJSON, _ := json.Marshal(after)

	entry := domain.AuditLog{
		Timestamp:    time.Now().UTC(),
		EventType:    eventType,
		EntityType:   entityType,
		EntityID:     entityID,
		Actor:        actor,
		Action:       action,
		Reason:       reason,
		BeforeState:  string(beforeJSON),
		AfterState:   string(afterJSON),
		PreviousHash: previousHash,
	}
	entry.EventHash = canonicalHash(entry)

	res, err := l.db.Exec(
		`INSERT INTO audit_log (timestamp, event_type, entity_type, entity_id, actor, action, reason, before_state, after_state, event_hash, previous_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.Format(time.RFC3339Nano), entry.EventType, entry.EntityType, entry.EntityID,
		entry.Actor, entry.Action, entry.Reason, entry.BeforeState, entry.AfterState,
		entry.EventHash, entry.PreviousHash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert audit entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err == nil {
		entry.ID = id
	}

	l.log.Info().
		Str("event_type", eventType).
		Str("entity_type", entityType).
		Str("entity_id", entityID).
		Str("hash", entry.EventHash).
		Msg("Audit entry recorded")

	return &entry, nil
}

// EntriesForEntity returns every audit entry for one entity, oldest
// first, for the /audit/{entity_type}/{entity_id} route and for
// VerifyChain callers.
func (l *Log) EntriesForEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditLog, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, timestamp, event_type, entity_type, entity_id, actor, action, reason, before_state, after_state, event_hash, previous_hash
		 FROM audit_log WHERE entity_type = ? AND entity_id = ? ORDER BY id ASC`,
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLog
	for rows.Next() {
		var e domain.AuditLog
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.EventType, &e.EntityType, &e.EntityID, &e.Actor, &e.Action, &e.Reason, &e.BeforeState, &e.AfterState, &e.EventHash, &e.PreviousHash); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// lastHash returns the event_hash of the most recent entry for this
// entity, or the genesis hash (all zeros) if none exists yet.
func (l *Log) lastHash(entityType, entityID string) (string, error) {
	var hash string
	err := l.db.QueryRow(
		`SELECT event_hash FROM audit_log WHERE entity_type = ? AND entity_id = ? ORDER BY id DESC LIMIT 1`,
		entityType, entityID,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return genesisHash, nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// genesisHash is 64 zero characters, matching the length of a real
// SHA-256 hex digest so the first entry in a chain looks like any other.
var genesisHash = strings.Repeat("0", 64)

// canonicalHash computes the SHA-256 hash of the entry's canonical fields
// plus the previous hash, binding the chain.
func canonicalHash(e domain.AuditLog) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s|%s|%s|%s",
		e.Timestamp.Format(time.RFC3339Nano), e.EventType, e.EntityType, e.EntityID,
		e.Actor, e.Action, e.Reason, e.BeforeState, e.AfterState, e.PreviousHash)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyChain checks that entries[k+1].previous_hash == entries[k].event_hash
// for every consecutive pair belonging to the same entity, and that every
// entry's stored hash matches its recomputed canonical hash (detects
// tampering with the row contents, not just the links).
func VerifyChain(entries []domain.AuditLog) error {
	for i, e := range entries {
		if canonicalHash(e) != e.EventHash {
			return fmt.Errorf("entry %d: stored hash does not match recomputed hash", i)
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if prev.EntityType == e.EntityType && prev.EntityID == e.EntityID && e.PreviousHash != prev.EventHash {
			return fmt.Errorf("entry %d: previous_hash does not chain to entry %d's event_hash", i, i-1)
		}
	}
	return nil
}
