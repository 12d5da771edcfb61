package audit

import (
	"context"
	"database/sql"
	"testing"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		event_type TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		reason TEXT,
		before_state TEXT,
		after_state TEXT,
		event_hash TEXT NOT NULL,
		previous_hash TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestRecordNowChainsHashes(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	l := New(db, zerolog.Nop())

	first, err := l.RecordNow("signal", "sig_1", "SIGNAL_INGESTED", "scorer", "activate", "passed filter", nil, map[string]string{"status": "ACTIVE"})
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	second, err := l.RecordNow("signal", "sig_1", "SIGNAL_SCORED", "scorer", "score", "", map[string]string{"status": "ACTIVE"}, map[string]string{"score": "0.7"})
	if err != nil {
		t.Fatalf("second record: %v", err)
	}

	if second.PreviousHash != first.EventHash {
		t.Fatalf("expected second.previous_hash %q to equal first.event_hash %q", second.PreviousHash, first.EventHash)
	}

	if err := VerifyChain([]domain.AuditLog{*first, *second}); err != nil {
		t.Fatalf("expected chain to verify, got %v", err)
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	l := New(db, zerolog.Nop())

	first, _ := l.RecordNow("position", "pos_1", "POSITION_OPENED", "allocator", "open", "", nil, nil)
	second, _ := l.RecordNow("position", "pos_1", "POSITION_CLOSED", "order_manager", "close", "", nil, nil)

	tampered := *second
	tampered.Action = "close_tampered"

	if err := VerifyChain([]domain.AuditLog{*first, tampered}); err == nil {
		t.Fatalf("expected tampering to be detected")
	}
}

func TestDifferentEntitiesDoNotChain(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	l := New(db, zerolog.Nop())

	a, _ := l.RecordNow("signal", "sig_a", "SIGNAL_INGESTED", "scorer", "activate", "", nil, nil)
	b, _ := l.RecordNow("signal", "sig_b", "SIGNAL_INGESTED", "scorer", "activate", "", nil, nil)

	if a.EventHash == b.EventHash {
		t.Fatalf("expected distinct hashes for distinct entities")
	}
	if b.PreviousHash != genesisHash {
		t.Fatalf("expected independent entity to start from genesis hash, got %q", b.PreviousHash)
	}
}

func TestEntriesForEntityReturnsOldestFirst(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	l := New(db, zerolog.Nop())

	first, _ := l.RecordNow("cycle", "cyc_1", "CYCLE_CREATED", "cycle_manager", "create", "", nil, nil)
	second, _ := l.RecordNow("cycle", "cyc_1", "CYCLE_SETTLED", "cycle_manager", "settle", "", nil, nil)

	entries, err := l.EntriesForEntity(context.Background(), "cycle", "cyc_1")
	if err != nil {
		t.Fatalf("EntriesForEntity: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].EventHash != first.EventHash || entries[1].EventHash != second.EventHash {
		t.Fatalf("expected entries in insertion order")
	}
}
