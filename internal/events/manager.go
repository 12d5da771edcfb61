// Package events provides lightweight, log-backed event emission used to
// observe pipeline activity without coupling producers to consumers.
package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types emitted by the engine.
type EventType string

const (
	SignalIngested       EventType = "SIGNAL_INGESTED"
	SignalRejected        EventType = "SIGNAL_REJECTED"
	SignalScored          EventType = "SIGNAL_SCORED"
	SignalExpired         EventType = "SIGNAL_EXPIRED"
	ErrorOccurred         EventType = "ERROR_OCCURRED"
	CycleStarted          EventType = "CYCLE_STARTED"
	CyclePhaseChanged     EventType = "CYCLE_PHASE_CHANGED"
	CycleSettled          EventType = "CYCLE_SETTLED"
	PositionOpened        EventType = "POSITION_OPENED"
	PositionClosed        EventType = "POSITION_CLOSED"
	PositionForceClosed   EventType = "POSITION_FORCE_CLOSED"
	DrawdownGateChanged   EventType = "DRAWDOWN_GATE_CHANGED"
	EmergencyLiquidation  EventType = "EMERGENCY_LIQUIDATION"
	EscalationConfirmed   EventType = "ESCALATION_CONFIRMED"
	AllocationPowerChange EventType = "ALLOCATION_POWER_CHANGED"
	ScenarioExecuted      EventType = "SCENARIO_EXECUTED"
)

// Event represents a system event.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Manager handles event emission and logging.
type Manager struct {
	log zerolog.Logger
}

// NewManager creates a new event manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log: log.With().Str("service", "events").Logger(),
	}
}

// Emit emits an event.
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	eventJSON, _ := json.Marshal(event)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")
}

// EmitError emits an error event.
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	m.Emit(ErrorOccurred, module, data)
}
