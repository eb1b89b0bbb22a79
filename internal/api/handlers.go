package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"qfleet/internal/model"
	"qfleet/internal/qubo"
	"qfleet/internal/store"
	"qfleet/internal/webhooks"
)

// SolveClassicalHandler handles POST /v1/solve/classical
func (s *Server) SolveClassicalHandler(w http.ResponseWriter, r *http.Request) {
	s.solveHandler(w, r, true)
}

// SolveQuantumHandler handles POST /v1/solve/quantum
func (s *Server) SolveQuantumHandler(w http.ResponseWriter, r *http.Request) {
	s.solveHandler(w, r, false)
}

func (s *Server) solveHandler(w http.ResponseWriter, r *http.Request, classical bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateSolveRequest(&req, classical); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
		return
	}
	s.applyEngineDefaults(&req.Params)

	var (
		res model.SolverResult
		err error
	)
	if classical {
		res, err = s.Engine.SolveClassical(req)
	} else {
		res, err = s.Engine.SolveQuantum(req)
	}
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// applyEngineDefaults fills unset quantum knobs from the configuration.
func (s *Server) applyEngineDefaults(p *model.SolveParams) {
	if p.Shots == 0 && s.Cfg.Engine.DefaultShots > 0 {
		p.Shots = s.Cfg.Engine.DefaultShots
	}
	if p.PLayers == 0 && s.Cfg.Engine.DefaultLayers > 0 {
		p.PLayers = s.Cfg.Engine.DefaultLayers
	}
}

// writeEngineError maps engine error types onto problem responses.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		writeProblem(w, http.StatusBadRequest, "Invalid problem", verr.Error(), r.URL.Path)
		return
	}
	var cerr *qubo.CapacityError
	if errors.As(err, &cerr) {
		writeJSON(w, http.StatusUnprocessableEntity, Problem{
			Type:         "about:blank",
			Title:        "Problem exceeds qubit capacity",
			Status:       http.StatusUnprocessableEntity,
			Detail:       cerr.Error(),
			Instance:     r.URL.Path,
			MaxLocations: cerr.MaxLocations,
		})
		return
	}
	writeProblem(w, http.StatusInternalServerError, "Solve failed", err.Error(), r.URL.Path)
}

// CompareHandler handles POST /v1/compare. With ?async=true the run is
// dispatched in the background and a run id returned immediately;
// progress streams over the run events socket either way.
func (s *Server) CompareHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateCompareRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid compare request", err.Error(), r.URL.Path)
		return
	}
	s.applyEngineDefaults(&req.Params)
	if err := req.Problem.Validate(); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid problem", err.Error(), r.URL.Path)
		return
	}

	runID := uuid.New().String()
	if r.URL.Query().Get("async") == "true" {
		go s.runCompare(context.Background(), runID, req)
		writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "running"})
		return
	}

	report, err := s.runCompare(r.Context(), runID, req)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// runCompare executes the comparison, streams progress, persists the
// report, and emits the completion webhook.
func (s *Server) runCompare(ctx context.Context, runID string, req model.CompareRequest) (model.ComparisonReport, error) {
	report, err := s.Engine.Compare(req, func(family, algorithm string, res model.SolverResult) {
		s.Broker.Publish(runID, RunEvent{Type: "run.progress", Data: map[string]any{
			"run_id":    runID,
			"family":    family,
			"algorithm": algorithm,
			"result":    res,
		}})
	})
	if err != nil {
		s.Broker.Publish(runID, RunEvent{Type: "run.failed", Data: map[string]any{"run_id": runID, "error": err.Error()}})
		s.Pub.Emit(ctx, webhooks.EventRunFailed, map[string]any{"run_id": runID, "error": err.Error()})
		return model.ComparisonReport{}, err
	}

	report.ID = runID
	saved, serr := s.Store.SaveComparison(ctx, report)
	if serr == nil {
		report = saved
	}

	s.Broker.Publish(runID, RunEvent{Type: "run.completed", Data: map[string]any{"run_id": runID, "comparison": report.Comparison}})
	s.Pub.Emit(ctx, webhooks.EventRunCompleted, map[string]any{"run_id": runID, "comparison": report.Comparison})
	return report, nil
}

// ComparisonsHandler handles GET /v1/comparisons
func (s *Server) ComparisonsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListComparisons(r.Context(), cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List comparisons failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "next_cursor": next})
}

// ComparisonByIDHandler handles GET /v1/comparisons/{id}
func (s *Server) ComparisonByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/comparisons/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	report, err := s.Store.GetComparison(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "no such comparison", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get comparison failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// AlgorithmsHandler handles GET /v1/algorithms
func (s *Server) AlgorithmsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"classical": model.ClassicalAlgorithms(),
		"quantum":   model.QuantumOptimizers(),
		"limits": map[string]any{
			"max_qubits":    qubo.MaxQubits,
			"max_vehicles":  5,
			"min_locations": 3,
		},
	})
}

// PerformanceHandler handles GET /v1/performance
func (s *Server) PerformanceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.Performance())
}

// RandomProblemHandler handles GET /v1/problems/random
func (s *Server) RandomProblemHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	n := 5
	vehicles := 2
	var seed int64 = 42
	if v := r.URL.Query().Get("locations"); v != "" {
		fmt.Sscanf(v, "%d", &n)
	}
	if v := r.URL.Query().Get("vehicles"); v != "" {
		fmt.Sscanf(v, "%d", &vehicles)
	}
	if v := r.URL.Query().Get("seed"); v != "" {
		fmt.Sscanf(v, "%d", &seed)
	}
	if n < 3 || n > 50 {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "locations must be in [3,50]", r.URL.Path)
		return
	}
	if vehicles < 1 || vehicles > 5 {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "vehicles must be in [1,5]", r.URL.Path)
		return
	}

	rng := rand.New(rand.NewSource(seed))
	locs := make([][2]float64, n)
	for i := range locs {
		locs[i] = [2]float64{rng.Float64() * 10, rng.Float64() * 10}
	}
	writeJSON(w, http.StatusOK, model.Problem{Locations: locs, NumVehicles: vehicles, DepotIndex: 0})
}

// ValidateHandler handles POST /v1/validate
func (s *Server) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var p model.Problem
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	resp := map[string]any{"valid": true}
	if err := p.Validate(); err != nil {
		resp["valid"] = false
		resp["error"] = err.Error()
	} else {
		required := qubo.NumVarsFor(len(p.Locations), p.NumVehicles)
		resp["num_qubits"] = required
		resp["quantum_feasible"] = required <= qubo.MaxQubits
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var sub model.Subscription
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if sub.URL == "" || len(sub.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
			return
		}
		created, err := s.Store.CreateSubscription(r.Context(), sub)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		created.Secret = ""
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListSubscriptions(r.Context(), cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		for i := range items {
			items[i].Secret = ""
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "next_cursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if id == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "no such subscription", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using the Postgres store.
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
