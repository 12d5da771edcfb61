package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/signalcycle/internal/allocation"
	"github.com/aristath/signalcycle/internal/cycle"
	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/orders"
)

// handleHealth handles liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "signalcycle",
	})
}

// --- philosophy -------------------------------------------------------

func (s *Server) handlePhilosophyCurrent(w http.ResponseWriter, r *http.Request) {
	rt, _, ok := s.runtimeFor(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown or ambiguous scenario_id")
		return
	}
	s.writeJSON(w, http.StatusOK, rt.Philosophy.Settings())
}

func (s *Server) handlePhilosophyUpdate(w http.ResponseWriter, r *http.Request) {
	rt, _, ok := s.runtimeFor(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown or ambiguous scenario_id")
		return
	}
	var settings domain.PhilosophySettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid philosophy settings payload")
		return
	}
	rt.Philosophy.UpdateSettings(settings)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handlePhilosophyReset(w http.ResponseWriter, r *http.Request) {
	rt, _, ok := s.runtimeFor(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown or ambiguous scenario_id")
		return
	}
	rt.Philosophy.ResetSettings()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handlePhilosophyState(w http.ResponseWriter, r *http.Request) {
	rt, _, ok := s.runtimeFor(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown or ambiguous scenario_id")
		return
	}
	s.writeJSON(w, http.StatusOK, rt.Philosophy.State())
}

// --- allocation ---------------------------------------------------------

func (s *Server) handleAllocationTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	inputs, err := s.inputs.BuildInputs(ctx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to build allocation inputs: "+err.Error())
		return
	}

	results := s.orchestrator.ExecuteAll(ctx, inputs)

	type scenarioSummary struct {
		ScenarioID string  `json:"scenario_id"`
		Allocated  int     `json:"allocated"`
		TopSignal  string  `json:"top_signal,omitempty"`
		TopScore   float64 `json:"top_score,omitempty"`
		Err        string  `json:"error,omitempty"`
	}

	summaries := make([]scenarioSummary, 0, len(results))
	for _, res := range results {
		sum := scenarioSummary{ScenarioID: res.ScenarioID, Allocated: len(res.Allocations)}
		if res.Err != nil {
			sum.Err = res.Err.Error()
		}
		if in, ok := inputs[res.ScenarioID]; ok {
			if top, found := topCandidate(in.Candidates); found {
				sum.TopSignal = top.Signal.Symbol
				sum.TopScore = top.Signal.TotalScore
			}
		}
		summaries = append(summaries, sum)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"scenarios": summaries})
}

// topCandidate returns the highest-scored candidate in a scenario's
// ranked input set, for the /allocation/trigger summary.
func topCandidate(candidates []allocation.Candidate) (allocation.Candidate, bool) {
	if len(candidates) == 0 {
		return allocation.Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Signal.TotalScore > best.Signal.TotalScore {
			best = c
		}
	}
	return best, true
}

// --- cycle ---------------------------------------------------------------

func (s *Server) handleCycleCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rt, scenarioID, ok := s.runtimeFor(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown or ambiguous scenario_id")
		return
	}

	c, found, err := s.cycles.ActiveCycle(ctx, scenarioID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"active": false})
		return
	}

	state, err := s.cycles.CycleState(ctx, c.CycleID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := time.Now().UTC()
	valid, err := rt.Cycle.IsValid(ctx, c, now)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"active":           true,
		"cycle":            c,
		"state":            state,
		"phase":            cycle.Phase(c, now),
		"day":              c.CurrentDay(now),
		"settlement_ready": valid,
	})
}

func (s *Server) handleCycleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rt, scenarioID, ok := s.runtimeFor(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown or ambiguous scenario_id")
		return
	}

	if _, found, err := s.cycles.ActiveCycle(ctx, scenarioID); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if found {
		s.writeError(w, http.StatusConflict, "scenario already has an active cycle")
		return
	}

	durationDays := s.cfg.CycleDurationDays
	c, err := rt.Cycle.Create(ctx, scenarioID, durationDays, rt.Scenario.InitialCapital)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleCycleSettle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rt, scenarioID, ok := s.runtimeFor(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown or ambiguous scenario_id")
		return
	}

	c, found, err := s.cycles.ActiveCycle(ctx, scenarioID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, "scenario has no active cycle")
		return
	}

	state, err := s.cycles.CycleState(ctx, c.CycleID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := time.Now().UTC()
	reason, err := rt.Cycle.CheckCompletion(ctx, c, now, state.DrawdownGateStatus)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reason == cycle.CompletionNone {
		s.writeError(w, http.StatusPreconditionFailed, "cycle is not yet eligible for settlement")
		return
	}

	allPositions, err := s.positions.AllPositions(ctx, scenarioID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	report, updated, err := rt.Cycle.Settle(ctx, c, reason, allPositions, orders.NuclearPolicy)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"report": report,
		"cycle":  updated,
	})
}

func (s *Server) handleCycleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, scenarioID, ok := s.runtimeFor(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown or ambiguous scenario_id")
		return
	}
	history, err := s.cycles.History(ctx, scenarioID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleCycleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cycleID := chi.URLParam(r, "cycle_id")
	c, err := s.cycles.Metrics(ctx, cycleID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

// --- scenarios -------------------------------------------------------------

func (s *Server) handleScenarioPositions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, scenarioID, ok := s.runtimeFor(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown or ambiguous scenario_id")
		return
	}
	positions, err := s.positions.OpenPositions(ctx, scenarioID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleScenarioExecute(w http.ResponseWriter, r *http.Request) {
	s.handleAllocationTrigger(w, r)
}

func (s *Server) handleScenarioReset(w http.ResponseWriter, r *http.Request) {
	rt, _, ok := s.runtimeFor(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown or ambiguous scenario_id")
		return
	}
	rt.Philosophy.ResetSettings()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleScenarioUpdateUnrealized(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rt, scenarioID, ok := s.runtimeFor(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown or ambiguous scenario_id")
		return
	}
	equity, err := rt.Broker.GetAccountValue(ctx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"scenario_id": scenarioID,
		"equity":      equity,
	})
}

func (s *Server) handleScenarioHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scenarioID := chi.URLParam(r, "scenario_id")
	positions, err := s.positions.AllPositions(ctx, scenarioID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, positions)
}

// --- audit -----------------------------------------------------------------

func (s *Server) handleAuditEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entityType := chi.URLParam(r, "entity_type")
	entityID := chi.URLParam(r, "entity_id")

	entries, err := s.audit.EntriesForEntity(ctx, entityType, entityID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

// --- JSON helpers ------------------------------------------------------

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
