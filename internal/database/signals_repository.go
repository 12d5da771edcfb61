package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/signals/scoring"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SignalRepository handles signal persistence: the ingest pipeline's dedup
// gate and insert step, the scoring job's pending queue and per-filer
// track record, and the escalator's signal-store needs.
// Faithful to the teacher's repository shape: one *sql.DB handle, one
// zerolog.Logger, plain database/sql queries.
type SignalRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSignalRepository creates a signal repository.
func NewSignalRepository(db *sql.DB, log zerolog.Logger) *SignalRepository {
	return &SignalRepository{db: db, log: log.With().Str("repo", "signal").Logger()}
}

// Exists reports whether a signal with this dedup key has already been
// recorded — the pipeline's dedup gate.
func (r *SignalRepository) Exists(ctx context.Context, dedupKey string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM signals WHERE dedup_key = ?`, dedupKey).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check signal existence: %w", err)
	}
	return n > 0, nil
}

// Insert persists a new signal row.
func (r *SignalRepository) Insert(ctx context.Context, s domain.Signal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signals (
			signal_id, dedup_key, source, symbol, direction, filer_name, filer_id,
			transaction_date, filing_date, discovered_at, shares, price, transaction_value,
			recency, size, competence, consensus, regime, total_score, conviction_tier,
			status, persisted_cycles, cycle_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SignalID, s.DedupKey(), string(s.Source), s.Symbol, string(s.Direction), s.FilerName, s.FilerID,
		s.TransactionDate.Format(time.RFC3339), s.FilingDate.Format(time.RFC3339), s.DiscoveredAt.Format(time.RFC3339),
		s.Shares, s.Price.String(), s.TransactionValue.String(),
		s.Recency, s.Size, s.Competence, s.Consensus, s.Regime, s.TotalScore, string(s.ConvictionTier),
		string(s.Status), s.PersistedCycles, s.CycleID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

// ActiveSignals returns every ACTIVE signal — the allocation input
// builder's candidate pool ahead of pricing and ranking.
func (r *SignalRepository) ActiveSignals(ctx context.Context) ([]domain.Signal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+signalColumns+` FROM signals WHERE status = ?`, string(domain.SignalActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query active signals: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// PendingSignals returns every signal awaiting a score — the scoring
// job's input queue.
func (r *SignalRepository) PendingSignals(ctx context.Context) ([]domain.Signal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+signalColumns+` FROM signals WHERE status = ?`, string(domain.SignalPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending signals: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// SaveScored writes back a signal's computed scoring fields and its new
// status: ACTIVE for any tier above REJECT, REJECTED otherwise — the same
// status internal/signals/scoring.Score already sets on the signal.
func (r *SignalRepository) SaveScored(ctx context.Context, s domain.Signal) error {
	status := s.Status
	if s.ConvictionTier != domain.TierReject {
		status = domain.SignalActive
	} else {
		status = domain.SignalRejected
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE signals SET recency=?, size=?, competence=?, consensus=?, regime=?, total_score=?, conviction_tier=?, status=?
		WHERE signal_id = ?`,
		s.Recency, s.Size, s.Competence, s.Consensus, s.Regime, s.TotalScore, string(s.ConvictionTier), string(status), s.SignalID,
	)
	if err != nil {
		return fmt.Errorf("failed to save scored signal: %w", err)
	}
	return nil
}

// ConcurrentSignalCount counts other ACTIVE signals on the same
// (symbol, direction) pair — the scorer's consensus factor input.
func (r *SignalRepository) ConcurrentSignalCount(ctx context.Context, symbol string, direction domain.Direction) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM signals WHERE symbol = ? AND direction = ? AND status = ?`,
		symbol, string(direction), string(domain.SignalActive),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count concurrent signals: %w", err)
	}
	return n, nil
}

// FilerHistory aggregates a filer's track record from every closed
// position attributable to one of their signals (a position's
// source_signals JSON array containing the filer's signal ids), for the
// scorer's competence factor.
func (r *SignalRepository) FilerHistory(ctx context.Context, filerID string) (scoring.FilerHistory, error) {
	var tracked, won int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(1),
		       COALESCE(SUM(CASE WHEN CAST(p.realized_pnl AS REAL) > 0 THEN 1 ELSE 0 END), 0)
		FROM positions p
		JOIN signals s ON p.source_signals LIKE '%' || s.signal_id || '%'
		WHERE s.filer_id = ? AND p.status = 'CLOSED' AND p.realized_pnl IS NOT NULL`,
		filerID,
	).Scan(&tracked, &won)
	if err != nil {
		return scoring.FilerHistory{}, fmt.Errorf("failed to aggregate filer history: %w", err)
	}

	winRate := 0.5
	if tracked > 0 {
		winRate = float64(won) / float64(tracked)
	}
	return scoring.FilerHistory{TradesTracked: tracked, WinRate: winRate}, nil
}

// IncrementPersistedCycles bumps every ACTIVE signal's persisted_cycles
// counter by one — §4.8's daily review-cycle step. A failed escalation
// does not reset this counter (there is deliberately no decrement here).
func (r *SignalRepository) IncrementPersistedCycles(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE signals SET persisted_cycles = persisted_cycles + 1 WHERE status = ?`, string(domain.SignalActive))
	if err != nil {
		return fmt.Errorf("failed to increment persisted cycles: %w", err)
	}
	return nil
}

// MostRecentActive returns the most recently discovered ACTIVE signal on
// the given (symbol, direction) pair, if any — the escalator's lookup for
// a candidate tier-jump signal.
func (r *SignalRepository) MostRecentActive(ctx context.Context, symbol string, direction domain.Direction) (domain.Signal, bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+signalColumns+` FROM signals
		WHERE symbol = ? AND direction = ? AND status = ?
		ORDER BY discovered_at DESC LIMIT 1`,
		symbol, string(direction), string(domain.SignalActive),
	)
	if err != nil {
		return domain.Signal{}, false, fmt.Errorf("failed to query most recent active signal: %w", err)
	}
	defer rows.Close()

	signals, err := scanSignals(rows)
	if err != nil {
		return domain.Signal{}, false, err
	}
	if len(signals) == 0 {
		return domain.Signal{}, false, nil
	}
	return signals[0], true, nil
}

const signalColumns = `signal_id, source, symbol, direction, filer_name, filer_id,
	transaction_date, filing_date, discovered_at, shares, price, transaction_value,
	recency, size, competence, consensus, regime, total_score, conviction_tier,
	status, persisted_cycles, cycle_id`

func scanSignals(rows *sql.Rows) ([]domain.Signal, error) {
	var out []domain.Signal
	for rows.Next() {
		var s domain.Signal
		var txDate, filingDate, discoveredAt, priceStr, valueStr string
		var filerID, cycleID sql.NullString
		if err := rows.Scan(
			&s.SignalID, &s.Source, &s.Symbol, &s.Direction, &s.FilerName, &filerID,
			&txDate, &filingDate, &discoveredAt, &s.Shares, &priceStr, &valueStr,
			&s.Recency, &s.Size, &s.Competence, &s.Consensus, &s.Regime, &s.TotalScore, &s.ConvictionTier,
			&s.Status, &s.PersistedCycles, &cycleID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		s.FilerID = filerID.String
		s.CycleID = cycleID.String
		s.TransactionDate, _ = time.Parse(time.RFC3339, txDate)
		s.FilingDate, _ = time.Parse(time.RFC3339, filingDate)
		s.DiscoveredAt, _ = time.Parse(time.RFC3339, discoveredAt)
		s.Price, _ = decimal.NewFromString(priceStr)
		s.TransactionValue, _ = decimal.NewFromString(valueStr)
		out = append(out, s)
	}
	return out, rows.Err()
}
