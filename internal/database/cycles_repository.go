package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CycleRepository persists cycle rows and their daily state snapshots.
// Satisfies cycle.CycleStore (Insert/Update/Get) and server.CycleQueryStore
// (ActiveCycle/CycleState/History/Metrics) — the two never collide since
// CycleQueryStore adds read-side queries a *cycle.Manager has no need of.
type CycleRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCycleRepository creates a cycle repository.
func NewCycleRepository(db *sql.DB, log zerolog.Logger) *CycleRepository {
	return &CycleRepository{db: db, log: log.With().Str("repo", "cycle").Logger()}
}

func (r *CycleRepository) Insert(ctx context.Context, c domain.Cycle) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cycles (
			cycle_id, scenario_id, start_date, end_date, duration_days, status,
			max_positions, target_position_size, max_position_size, min_position_size,
			starting_capital, total_invested, total_pnl, total_return, win_rate,
			avg_winner, avg_loser, positions_opened, positions_closed, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CycleID, c.ScenarioID, c.StartDate.Format(time.RFC3339), c.EndDate.Format(time.RFC3339), c.DurationDays, string(c.Status),
		c.MaxPositions, c.TargetPositionSize.String(), c.MaxPositionSize.String(), c.MinPositionSize.String(),
		c.StartingCapital.String(), c.TotalInvested.String(), c.TotalPnL.String(), c.TotalReturn, c.WinRate,
		c.AvgWinner.String(), c.AvgLoser.String(), c.PositionsOpened, c.PositionsClosed, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert cycle: %w", err)
	}
	return nil
}

func (r *CycleRepository) Update(ctx context.Context, c domain.Cycle) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE cycles SET status=?, total_invested=?, total_pnl=?, total_return=?, win_rate=?,
			avg_winner=?, avg_loser=?, positions_opened=?, positions_closed=?
		WHERE cycle_id = ?`,
		string(c.Status), c.TotalInvested.String(), c.TotalPnL.String(), c.TotalReturn, c.WinRate,
		c.AvgWinner.String(), c.AvgLoser.String(), c.PositionsOpened, c.PositionsClosed, c.CycleID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cycle: %w", err)
	}
	return nil
}

func (r *CycleRepository) Get(ctx context.Context, cycleID string) (domain.Cycle, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE cycle_id = ?`, cycleID)
	return scanCycle(row)
}

// ActiveCycle returns the scenario's ACTIVE cycle, if one exists.
func (r *CycleRepository) ActiveCycle(ctx context.Context, scenarioID string) (domain.Cycle, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE scenario_id = ? AND status = ? LIMIT 1`,
		scenarioID, string(domain.CycleActive))
	c, err := scanCycle(row)
	if err == sql.ErrNoRows {
		return domain.Cycle{}, false, nil
	}
	if err != nil {
		return domain.Cycle{}, false, err
	}
	return c, true, nil
}

// History returns every cycle for a scenario, most recent first.
func (r *CycleRepository) History(ctx context.Context, scenarioID string) ([]domain.Cycle, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE scenario_id = ? ORDER BY start_date DESC`, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle history: %w", err)
	}
	defer rows.Close()

	var out []domain.Cycle
	for rows.Next() {
		c, err := scanCycleRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Metrics returns a cycle's current accumulated performance row — same
// data as Get, named separately since the server's /cycle/metrics route
// is a read-only reporting view rather than the manager's lifecycle Get.
func (r *CycleRepository) Metrics(ctx context.Context, cycleID string) (domain.Cycle, error) {
	return r.Get(ctx, cycleID)
}

// SaveState persists one day's snapshot, upserting by (cycle_id, cycle_day).
func (r *CycleRepository) SaveState(ctx context.Context, s domain.CycleState) error {
	var sharpe sql.NullFloat64
	if s.SharpeRatio != nil {
		sharpe = sql.NullFloat64{Float64: *s.SharpeRatio, Valid: true}
	}
	isValid := 0
	if s.IsValidCycle {
		isValid = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cycle_states (
			cycle_id, cycle_day, phase, starting_capital, current_equity, realized_pnl, unrealized_pnl,
			high_water_mark, current_drawdown, max_drawdown, positions_opened, positions_closed,
			positions_forced_closed, win_rate, avg_winner, avg_loser, expectancy, sharpe_ratio,
			drawdown_gate_status, cash_reserve_target, cash_reserve_actual, is_valid_cycle, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cycle_id, cycle_day) DO UPDATE SET
			phase=excluded.phase, current_equity=excluded.current_equity, realized_pnl=excluded.realized_pnl,
			unrealized_pnl=excluded.unrealized_pnl, high_water_mark=excluded.high_water_mark,
			current_drawdown=excluded.current_drawdown, max_drawdown=excluded.max_drawdown,
			positions_opened=excluded.positions_opened, positions_closed=excluded.positions_closed,
			positions_forced_closed=excluded.positions_forced_closed, win_rate=excluded.win_rate,
			avg_winner=excluded.avg_winner, avg_loser=excluded.avg_loser, expectancy=excluded.expectancy,
			sharpe_ratio=excluded.sharpe_ratio, drawdown_gate_status=excluded.drawdown_gate_status,
			cash_reserve_target=excluded.cash_reserve_target, cash_reserve_actual=excluded.cash_reserve_actual,
			is_valid_cycle=excluded.is_valid_cycle`,
		s.CycleID, s.CycleDay, string(s.Phase), s.StartingCapital.String(), s.CurrentEquity.String(), s.RealizedPnL.String(), s.UnrealizedPnL.String(),
		s.HighWaterMark.String(), s.CurrentDrawdown, s.MaxDrawdown, s.PositionsOpened, s.PositionsClosed,
		s.PositionsForcedClosed, s.WinRate, s.AvgWinner.String(), s.AvgLoser.String(), s.Expectancy, sharpe,
		string(s.DrawdownGateStatus), s.CashReserveTarget.String(), s.CashReserveActual.String(), isValid, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save cycle state: %w", err)
	}
	return nil
}

// CycleState returns the most recent daily snapshot for a cycle.
func (r *CycleRepository) CycleState(ctx context.Context, cycleID string) (domain.CycleState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT cycle_id, cycle_day, phase, starting_capital, current_equity, realized_pnl, unrealized_pnl,
			high_water_mark, current_drawdown, max_drawdown, positions_opened, positions_closed,
			positions_forced_closed, win_rate, avg_winner, avg_loser, expectancy, sharpe_ratio,
			drawdown_gate_status, cash_reserve_target, cash_reserve_actual, is_valid_cycle
		FROM cycle_states WHERE cycle_id = ? ORDER BY cycle_day DESC LIMIT 1`, cycleID)

	var s domain.CycleState
	var startingCapital, currentEquity, realizedPnL, unrealizedPnL, highWaterMark, avgWinner, avgLoser, cashReserveTarget, cashReserveActual string
	var sharpe sql.NullFloat64
	var isValid int

	err := row.Scan(
		&s.CycleID, &s.CycleDay, &s.Phase, &startingCapital, &currentEquity, &realizedPnL, &unrealizedPnL,
		&highWaterMark, &s.CurrentDrawdown, &s.MaxDrawdown, &s.PositionsOpened, &s.PositionsClosed,
		&s.PositionsForcedClosed, &s.WinRate, &avgWinner, &avgLoser, &s.Expectancy, &sharpe,
		&s.DrawdownGateStatus, &cashReserveTarget, &cashReserveActual, &isValid,
	)
	if err == sql.ErrNoRows {
		return domain.CycleState{}, nil
	}
	if err != nil {
		return domain.CycleState{}, fmt.Errorf("failed to scan cycle state: %w", err)
	}

	s.StartingCapital, _ = decimal.NewFromString(startingCapital)
	s.CurrentEquity, _ = decimal.NewFromString(currentEquity)
	s.RealizedPnL, _ = decimal.NewFromString(realizedPnL)
	s.UnrealizedPnL, _ = decimal.NewFromString(unrealizedPnL)
	s.HighWaterMark, _ = decimal.NewFromString(highWaterMark)
	s.AvgWinner, _ = decimal.NewFromString(avgWinner)
	s.AvgLoser, _ = decimal.NewFromString(avgLoser)
	s.CashReserveTarget, _ = decimal.NewFromString(cashReserveTarget)
	s.CashReserveActual, _ = decimal.NewFromString(cashReserveActual)
	if sharpe.Valid {
		v := sharpe.Float64
		s.SharpeRatio = &v
	}
	s.IsValidCycle = isValid != 0
	return s, nil
}

const cycleColumns = `cycle_id, scenario_id, start_date, end_date, duration_days, status,
	max_positions, target_position_size, max_position_size, min_position_size,
	starting_capital, total_invested, total_pnl, total_return, win_rate,
	avg_winner, avg_loser, positions_opened, positions_closed`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCycle(row rowScanner) (domain.Cycle, error) {
	return scanCycleRows(row)
}

func scanCycleRows(row rowScanner) (domain.Cycle, error) {
	var c domain.Cycle
	var startDate, endDate, targetSize, maxSize, minSize, startingCapital, totalInvested, totalPnL, avgWinner, avgLoser string

	err := row.Scan(
		&c.CycleID, &c.ScenarioID, &startDate, &endDate, &c.DurationDays, &c.Status,
		&c.MaxPositions, &targetSize, &maxSize, &minSize,
		&startingCapital, &totalInvested, &totalPnL, &c.TotalReturn, &c.WinRate,
		&avgWinner, &avgLoser, &c.PositionsOpened, &c.PositionsClosed,
	)
	if err != nil {
		return domain.Cycle{}, err
	}

	c.StartDate, _ = time.Parse(time.RFC3339, startDate)
	c.EndDate, _ = time.Parse(time.RFC3339, endDate)
	c.TargetPositionSize, _ = decimal.NewFromString(targetSize)
	c.MaxPositionSize, _ = decimal.NewFromString(maxSize)
	c.MinPositionSize, _ = decimal.NewFromString(minSize)
	c.StartingCapital, _ = decimal.NewFromString(startingCapital)
	c.TotalInvested, _ = decimal.NewFromString(totalInvested)
	c.TotalPnL, _ = decimal.NewFromString(totalPnL)
	c.AvgWinner, _ = decimal.NewFromString(avgWinner)
	c.AvgLoser, _ = decimal.NewFromString(avgLoser)
	return c, nil
}
