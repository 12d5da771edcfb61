package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PositionRepository holds the core position queries shared by every
// capability-interface view onto the positions table (cycle-scoped,
// scenario-scoped). Three different packages each declare their own
// narrow PositionStore interface over the same table with different
// keying (by cycle_id vs by scenario_id), so rather than one type
// implementing every method name — which would collide, since
// cycle.PositionStore.OpenPositions(ctx, cycleID) and
// scenario/escalation/server's OpenPositions(ctx, scenarioID) share a
// signature but mean different things — this repository holds the SQL
// and two thin adapters (CyclePositions, ScenarioPositions) expose it
// under each package's expected method set.
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPositionRepository creates a position repository.
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{db: db, log: log.With().Str("repo", "position").Logger()}
}

// Insert persists a newly-opened position.
func (r *PositionRepository) Insert(ctx context.Context, p domain.Position) error {
	sourceSignals, err := json.Marshal(p.SourceSignals)
	if err != nil {
		return fmt.Errorf("failed to marshal source signals: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO positions (
			position_id, scenario_id, cycle_id, symbol, direction, shares,
			entry_date, entry_price, entry_value,
			conviction_tier, philosophy_applied, source_signals,
			round_start, round_expiry, round_extended, discipline_violations,
			status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PositionID, p.ScenarioID, p.CycleID, p.Symbol, string(p.Direction), p.Shares,
		p.EntryDate.Format(time.RFC3339), p.EntryPrice.String(), p.EntryValue.String(),
		string(p.ConvictionTier), p.PhilosophyApplied, string(sourceSignals),
		p.RoundStart.Format(time.RFC3339), p.RoundExpiry.Format(time.RFC3339), p.RoundExtended, p.DisciplineViolations,
		string(p.Status), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}
	return nil
}

// Update persists changes to an existing position row — used on exit
// fills and on any in-place mutation (round extension, discipline strike).
func (r *PositionRepository) Update(ctx context.Context, p domain.Position) error {
	sourceSignals, err := json.Marshal(p.SourceSignals)
	if err != nil {
		return fmt.Errorf("failed to marshal source signals: %w", err)
	}

	var exitDate, exitPrice, exitValue, realizedPnL, exitReason sql.NullString
	var returnPct sql.NullFloat64
	if p.ExitDate != nil {
		exitDate = sql.NullString{String: p.ExitDate.Format(time.RFC3339), Valid: true}
	}
	if p.ExitPrice != nil {
		exitPrice = sql.NullString{String: p.ExitPrice.String(), Valid: true}
	}
	if p.ExitValue != nil {
		exitValue = sql.NullString{String: p.ExitValue.String(), Valid: true}
	}
	if p.RealizedPnL != nil {
		realizedPnL = sql.NullString{String: p.RealizedPnL.String(), Valid: true}
	}
	if p.ReturnPct != nil {
		returnPct = sql.NullFloat64{Float64: *p.ReturnPct, Valid: true}
	}
	if p.ExitReason != "" {
		exitReason = sql.NullString{String: string(p.ExitReason), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE positions SET
			exit_date=?, exit_price=?, exit_value=?, realized_pnl=?, return_pct=?, exit_reason=?,
			source_signals=?, round_expiry=?, round_extended=?, discipline_violations=?,
			status=?, updated_at=?
		WHERE position_id = ?`,
		exitDate, exitPrice, exitValue, realizedPnL, returnPct, exitReason,
		string(sourceSignals), p.RoundExpiry.Format(time.RFC3339), p.RoundExtended, p.DisciplineViolations,
		string(p.Status), time.Now().UTC().Format(time.RFC3339), p.PositionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	return nil
}

func (r *PositionRepository) openByCycle(ctx context.Context, cycleID string) ([]domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE cycle_id = ? AND status = ?`, cycleID, string(domain.PositionOpen))
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions by cycle: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

func (r *PositionRepository) countByCycle(ctx context.Context, cycleID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM positions WHERE cycle_id = ?`, cycleID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count positions by cycle: %w", err)
	}
	return n, nil
}

func (r *PositionRepository) openByScenario(ctx context.Context, scenarioID string) ([]domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE scenario_id = ? AND status = ?`, scenarioID, string(domain.PositionOpen))
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions by scenario: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

func (r *PositionRepository) allByScenario(ctx context.Context, scenarioID string) ([]domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE scenario_id = ? ORDER BY entry_date DESC`, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query all positions by scenario: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

func (r *PositionRepository) openBySymbol(ctx context.Context, scenarioID, symbol string) (domain.Position, bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE scenario_id = ? AND symbol = ? AND status = ? LIMIT 1`,
		scenarioID, symbol, string(domain.PositionOpen))
	if err != nil {
		return domain.Position{}, false, fmt.Errorf("failed to query position by symbol: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositions(rows)
	if err != nil {
		return domain.Position{}, false, err
	}
	if len(positions) == 0 {
		return domain.Position{}, false, nil
	}
	return positions[0], true, nil
}

func (r *PositionRepository) countOpenByScenario(ctx context.Context, scenarioID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM positions WHERE scenario_id = ? AND status = ?`, scenarioID, string(domain.PositionOpen)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count open positions by scenario: %w", err)
	}
	return n, nil
}

func (r *PositionRepository) expired(ctx context.Context, asOf time.Time) ([]domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE status = ? AND round_expiry <= ?`,
		string(domain.PositionOpen), asOf.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query expired positions: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// CyclePositions adapts PositionRepository to cycle.PositionStore, keyed
// by cycle_id.
type CyclePositions struct{ repo *PositionRepository }

// NewCyclePositions wraps a PositionRepository for cycle.Manager's use.
func NewCyclePositions(repo *PositionRepository) *CyclePositions { return &CyclePositions{repo: repo} }

func (c *CyclePositions) OpenPositions(ctx context.Context, cycleID string) ([]domain.Position, error) {
	return c.repo.openByCycle(ctx, cycleID)
}
func (c *CyclePositions) PositionCount(ctx context.Context, cycleID string) (int, error) {
	return c.repo.countByCycle(ctx, cycleID)
}
func (c *CyclePositions) Update(ctx context.Context, p domain.Position) error {
	return c.repo.Update(ctx, p)
}

// ScenarioPositions adapts PositionRepository to escalation.PositionStore,
// scenario.PositionStore, scheduler.ExpiringPositionStore, and
// server.PositionQueryStore — none of which collide with each other.
type ScenarioPositions struct{ repo *PositionRepository }

// NewScenarioPositions wraps a PositionRepository for scenario/escalation/server use.
func NewScenarioPositions(repo *PositionRepository) *ScenarioPositions {
	return &ScenarioPositions{repo: repo}
}

func (s *ScenarioPositions) OpenPositions(ctx context.Context, scenarioID string) ([]domain.Position, error) {
	return s.repo.openByScenario(ctx, scenarioID)
}
func (s *ScenarioPositions) AllPositions(ctx context.Context, scenarioID string) ([]domain.Position, error) {
	return s.repo.allByScenario(ctx, scenarioID)
}
func (s *ScenarioPositions) Insert(ctx context.Context, p domain.Position) error {
	return s.repo.Insert(ctx, p)
}
func (s *ScenarioPositions) Update(ctx context.Context, p domain.Position) error {
	return s.repo.Update(ctx, p)
}
func (s *ScenarioPositions) OpenPositionBySymbol(ctx context.Context, scenarioID, symbol string) (domain.Position, bool, error) {
	return s.repo.openBySymbol(ctx, scenarioID, symbol)
}
func (s *ScenarioPositions) CountOpen(ctx context.Context, scenarioID string) (int, error) {
	return s.repo.countOpenByScenario(ctx, scenarioID)
}
func (s *ScenarioPositions) ExpiredPositions(ctx context.Context, asOf time.Time) ([]domain.Position, error) {
	return s.repo.expired(ctx, asOf)
}

const positionColumns = `position_id, scenario_id, cycle_id, symbol, direction, shares,
	entry_date, entry_price, entry_value,
	exit_date, exit_price, exit_value, realized_pnl, return_pct, exit_reason,
	conviction_tier, philosophy_applied, source_signals,
	round_start, round_expiry, round_extended, discipline_violations,
	status`

func scanPositions(rows *sql.Rows) ([]domain.Position, error) {
	var out []domain.Position
	for rows.Next() {
		var p domain.Position
		var entryDate, entryPrice, entryValue, sourceSignals, roundStart, roundExpiry string
		var exitDate, exitPrice, exitValue, realizedPnL, exitReason, philosophyApplied sql.NullString
		var returnPct sql.NullFloat64

		if err := rows.Scan(
			&p.PositionID, &p.ScenarioID, &p.CycleID, &p.Symbol, &p.Direction, &p.Shares,
			&entryDate, &entryPrice, &entryValue,
			&exitDate, &exitPrice, &exitValue, &realizedPnL, &returnPct, &exitReason,
			&p.ConvictionTier, &philosophyApplied, &sourceSignals,
			&roundStart, &roundExpiry, &p.RoundExtended, &p.DisciplineViolations,
			&p.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}

		p.EntryDate, _ = time.Parse(time.RFC3339, entryDate)
		p.EntryPrice, _ = decimal.NewFromString(entryPrice)
		p.EntryValue, _ = decimal.NewFromString(entryValue)
		p.RoundStart, _ = time.Parse(time.RFC3339, roundStart)
		p.RoundExpiry, _ = time.Parse(time.RFC3339, roundExpiry)
		p.PhilosophyApplied = philosophyApplied.String
		p.ExitReason = domain.ExitReason(exitReason.String)

		if err := json.Unmarshal([]byte(sourceSignals), &p.SourceSignals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal source signals: %w", err)
		}

		if exitDate.Valid {
			t, _ := time.Parse(time.RFC3339, exitDate.String)
			p.ExitDate = &t
		}
		if exitPrice.Valid {
			d, _ := decimal.NewFromString(exitPrice.String)
			p.ExitPrice = &d
		}
		if exitValue.Valid {
			d, _ := decimal.NewFromString(exitValue.String)
			p.ExitValue = &d
		}
		if realizedPnL.Valid {
			d, _ := decimal.NewFromString(realizedPnL.String)
			p.RealizedPnL = &d
		}
		if returnPct.Valid {
			v := returnPct.Float64
			p.ReturnPct = &v
		}

		out = append(out, p)
	}
	return out, rows.Err()
}
