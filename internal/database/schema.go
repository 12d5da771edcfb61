package database

// schema is the full relational schema for the engine's persisted state
// (§6 of SPEC_FULL.md: signals, positions, orders, cycles, cycle_states,
// scenarios, philosophy_state, audit_log; a position's scenario is its
// scenario_id column, with no separate scenario_positions table). It is
// applied idempotently with CREATE TABLE IF NOT EXISTS, matching the
// teacher's "no migration framework yet" stance (see Migrate below) while
// still giving the engine a real, versionable schema to run against.
const schema = `
CREATE TABLE IF NOT EXISTS signals (
	signal_id        TEXT PRIMARY KEY,
	dedup_key        TEXT NOT NULL,
	source           TEXT NOT NULL,
	symbol           TEXT NOT NULL,
	direction        TEXT NOT NULL,
	filer_name       TEXT NOT NULL,
	filer_id         TEXT,
	transaction_date TEXT NOT NULL,
	filing_date      TEXT NOT NULL,
	discovered_at    TEXT NOT NULL,
	shares           REAL,
	price            REAL,
	transaction_value TEXT NOT NULL,
	recency          REAL,
	size             REAL,
	competence       REAL,
	consensus        REAL,
	regime           REAL,
	total_score      REAL,
	conviction_tier  TEXT,
	status           TEXT NOT NULL,
	persisted_cycles INTEGER NOT NULL DEFAULT 0,
	cycle_id         TEXT,
	created_at       TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_signals_dedup_key ON signals(dedup_key);
CREATE INDEX IF NOT EXISTS idx_signals_symbol_source_txdate ON signals(symbol, source, transaction_date);
CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status);
CREATE INDEX IF NOT EXISTS idx_signals_symbol_direction_status ON signals(symbol, direction, status);

CREATE TABLE IF NOT EXISTS cycles (
	cycle_id            TEXT PRIMARY KEY,
	scenario_id          TEXT NOT NULL,
	start_date           TEXT NOT NULL,
	end_date             TEXT NOT NULL,
	duration_days        INTEGER NOT NULL,
	status               TEXT NOT NULL,
	max_positions        INTEGER NOT NULL,
	target_position_size TEXT NOT NULL,
	max_position_size    TEXT NOT NULL,
	min_position_size    TEXT NOT NULL,
	starting_capital     TEXT NOT NULL,
	total_invested       TEXT NOT NULL DEFAULT '0',
	total_pnl            TEXT NOT NULL DEFAULT '0',
	total_return         REAL NOT NULL DEFAULT 0,
	win_rate             REAL NOT NULL DEFAULT 0,
	avg_winner           TEXT NOT NULL DEFAULT '0',
	avg_loser            TEXT NOT NULL DEFAULT '0',
	positions_opened     INTEGER NOT NULL DEFAULT 0,
	positions_closed     INTEGER NOT NULL DEFAULT 0,
	created_at           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cycles_scenario_status ON cycles(scenario_id, status);

CREATE TABLE IF NOT EXISTS cycle_states (
	cycle_id             TEXT NOT NULL,
	cycle_day            INTEGER NOT NULL,
	phase                TEXT NOT NULL,
	starting_capital     TEXT NOT NULL,
	current_equity       TEXT NOT NULL,
	realized_pnl         TEXT NOT NULL,
	unrealized_pnl       TEXT NOT NULL,
	high_water_mark      TEXT NOT NULL,
	current_drawdown     REAL NOT NULL,
	max_drawdown         REAL NOT NULL,
	positions_opened     INTEGER NOT NULL,
	positions_closed     INTEGER NOT NULL,
	positions_forced_closed INTEGER NOT NULL,
	win_rate             REAL NOT NULL,
	avg_winner           TEXT NOT NULL,
	avg_loser            TEXT NOT NULL,
	expectancy           REAL NOT NULL,
	sharpe_ratio         REAL,
	drawdown_gate_status TEXT NOT NULL,
	cash_reserve_target  TEXT NOT NULL,
	cash_reserve_actual  TEXT NOT NULL,
	is_valid_cycle       INTEGER NOT NULL,
	created_at           TEXT NOT NULL,
	PRIMARY KEY (cycle_id, cycle_day)
);

CREATE TABLE IF NOT EXISTS positions (
	position_id          TEXT PRIMARY KEY,
	scenario_id          TEXT NOT NULL,
	cycle_id             TEXT NOT NULL,
	symbol               TEXT NOT NULL,
	direction            TEXT NOT NULL,
	shares               INTEGER NOT NULL,
	entry_date           TEXT NOT NULL,
	entry_price          TEXT NOT NULL,
	entry_value          TEXT NOT NULL,
	exit_date            TEXT,
	exit_price           TEXT,
	exit_value           TEXT,
	realized_pnl         TEXT,
	return_pct           REAL,
	exit_reason          TEXT,
	conviction_tier      TEXT NOT NULL,
	philosophy_applied   TEXT,
	source_signals       TEXT NOT NULL,
	round_start          TEXT NOT NULL,
	round_expiry         TEXT NOT NULL,
	round_extended       INTEGER NOT NULL DEFAULT 0,
	discipline_violations INTEGER NOT NULL DEFAULT 0,
	status               TEXT NOT NULL,
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_positions_scenario_status ON positions(scenario_id, status);
CREATE INDEX IF NOT EXISTS idx_positions_cycle ON positions(cycle_id);
CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(scenario_id, symbol, status);

CREATE TABLE IF NOT EXISTS orders (
	order_id         TEXT PRIMARY KEY,
	broker_order_id  TEXT,
	position_id      TEXT NOT NULL,
	symbol           TEXT NOT NULL,
	side             TEXT NOT NULL,
	order_type       TEXT NOT NULL,
	quantity         INTEGER NOT NULL,
	limit_price      TEXT,
	stop_price       TEXT,
	time_in_force    TEXT,
	status           TEXT NOT NULL,
	filled_qty       INTEGER NOT NULL DEFAULT 0,
	filled_avg_price TEXT,
	commission       TEXT NOT NULL DEFAULT '0',
	submitted_at     TEXT NOT NULL,
	filled_at        TEXT,
	error_message    TEXT,
	reason           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_position ON orders(position_id);

CREATE TABLE IF NOT EXISTS scenarios (
	scenario_id        TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	type               TEXT NOT NULL,
	philosophy_settings TEXT NOT NULL,
	initial_capital    TEXT NOT NULL,
	current_capital    TEXT NOT NULL,
	total_pnl          TEXT NOT NULL DEFAULT '0',
	total_return_pct   REAL NOT NULL DEFAULT 0,
	trades_won         INTEGER NOT NULL DEFAULT 0,
	trades_lost        INTEGER NOT NULL DEFAULT 0,
	max_drawdown        REAL NOT NULL DEFAULT 0,
	sharpe_ratio        REAL,
	volatility          REAL,
	is_active           INTEGER NOT NULL DEFAULT 1,
	created_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS philosophy_state (
	date                     TEXT PRIMARY KEY,
	decisions_logged         INTEGER NOT NULL DEFAULT 0,
	intuition_overrides      INTEGER NOT NULL DEFAULT 0,
	safety_trades            INTEGER NOT NULL DEFAULT 0,
	cluster_detections       INTEGER NOT NULL DEFAULT 0,
	cluster_takes            INTEGER NOT NULL DEFAULT 0,
	retired_positions        INTEGER NOT NULL DEFAULT 0,
	extended_positions       INTEGER NOT NULL DEFAULT 0,
	rule_violations          INTEGER NOT NULL DEFAULT 0,
	current_allocation_power REAL NOT NULL DEFAULT 1.0,
	violated_rules           TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS audit_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp     TEXT NOT NULL,
	event_type    TEXT NOT NULL,
	entity_type   TEXT NOT NULL,
	entity_id     TEXT NOT NULL,
	actor         TEXT NOT NULL,
	action        TEXT NOT NULL,
	reason        TEXT,
	before_state  TEXT,
	after_state   TEXT,
	event_hash    TEXT NOT NULL,
	previous_hash TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);
`

// Migrate applies the schema. It is safe to call on every startup: every
// statement is idempotent (CREATE TABLE/INDEX IF NOT EXISTS), matching the
// teacher's single-file "apply the whole schema" approach rather than a
// versioned migration runner (database migration tooling is out of scope
// per spec.md §1's external-collaborators list).
func (db *DB) Migrate() error {
	_, err := db.conn.Exec(schema)
	return err
}
