package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"qfleet/internal/compare"
	"qfleet/internal/config"
	"qfleet/internal/distmat"
	"qfleet/internal/model"
	"qfleet/internal/store"
	"qfleet/internal/webhooks"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	pool := compare.NewPool(2)
	t.Cleanup(pool.Shutdown)
	mem := store.NewMemory()
	return &Server{
		Store:   mem,
		Pub:     webhooks.NewPublisher(mem),
		Broker:  NewBroker(),
		Engine:  compare.NewOrchestrator(distmat.NewCache(0, nil), pool),
		Pool:    pool,
		Cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst),
	}
}

func doJSON(t *testing.T, h http.HandlerFunc, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func rectangleProblem() model.Problem {
	return model.Problem{
		Locations:   [][2]float64{{0, 0}, {0, 3}, {4, 0}, {4, 3}},
		NumVehicles: 1,
		DepotIndex:  0,
	}
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)
	if rec := doJSON(t, s.HealthHandler, http.MethodGet, "/healthz", nil); rec.Code != 200 {
		t.Fatalf("health: %d", rec.Code)
	}
	if rec := doJSON(t, s.ReadyHandler, http.MethodGet, "/readyz", nil); rec.Code != 200 {
		t.Fatalf("ready: %d", rec.Code)
	}
}

func TestAlgorithmsHandler(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.AlgorithmsHandler, http.MethodGet, "/v1/algorithms", nil)
	if rec.Code != 200 {
		t.Fatalf("status: %d", rec.Code)
	}
	var body struct {
		Classical []string `json:"classical"`
		Quantum   []string `json:"quantum"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Classical) != 4 || len(body.Quantum) != 6 {
		t.Fatalf("unexpected families: %v %v", body.Classical, body.Quantum)
	}
}

func TestSolveClassicalScenario(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.SolveClassicalHandler, http.MethodPost, "/v1/solve/classical", model.SolveRequest{
		Problem:   rectangleProblem(),
		Algorithm: model.NearestNeighbor,
	})
	if rec.Code != 200 {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var res model.SolverResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.TotalCost < 13.9 || res.TotalCost > 14.1 {
		t.Fatalf("expected perimeter cost 14, got %f", res.TotalCost)
	}
	if !res.IsValid {
		t.Fatal("expected valid solution")
	}
}

func TestSolveClassicalRejectsBadAlgorithm(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.SolveClassicalHandler, http.MethodPost, "/v1/solve/classical", model.SolveRequest{
		Problem:   rectangleProblem(),
		Algorithm: "SPSA",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSolveQuantumCapacityProblemResponse(t *testing.T) {
	s := newTestServer(t)
	locs := make([][2]float64, 12)
	for i := range locs {
		locs[i] = [2]float64{float64(i), 0}
	}
	rec := doJSON(t, s.SolveQuantumHandler, http.MethodPost, "/v1/solve/quantum", model.SolveRequest{
		Problem:   model.Problem{Locations: locs, NumVehicles: 2},
		Algorithm: model.SPSA,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var prob Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &prob); err != nil {
		t.Fatal(err)
	}
	if prob.MaxLocations == 0 || prob.MaxLocations > 5 {
		t.Fatalf("expected max_locations guidance <= 5, got %d", prob.MaxLocations)
	}
}

func TestCompareAndHistory(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.CompareHandler, http.MethodPost, "/v1/compare", model.CompareRequest{
		Problem:             rectangleProblem(),
		ClassicalAlgorithms: []string{model.NearestNeighbor, model.SimulatedAnnealing},
		QuantumOptimizers:   []string{model.COBYLA},
		MaxIterations:       20,
		Params:              model.SolveParams{Shots: 128},
	})
	if rec.Code != 200 {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var report model.ComparisonReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.ID == "" {
		t.Fatal("expected persisted run id")
	}
	if report.Comparison.BestClassical == nil {
		t.Fatal("expected a best classical entry")
	}
	if len(report.Quantum) != 1 || len(report.Classical) != 2 {
		t.Fatalf("unexpected result counts: %d quantum, %d classical", len(report.Quantum), len(report.Classical))
	}

	// The saved report is retrievable by id.
	req := httptest.NewRequest(http.MethodGet, "/v1/comparisons/"+report.ID, nil)
	rec2 := httptest.NewRecorder()
	s.ComparisonByIDHandler(rec2, req)
	if rec2.Code != 200 {
		t.Fatalf("get by id: %d", rec2.Code)
	}

	rec3 := doJSON(t, s.ComparisonsHandler, http.MethodGet, "/v1/comparisons", nil)
	if rec3.Code != 200 || !strings.Contains(rec3.Body.String(), report.ID) {
		t.Fatalf("list should include the saved run: %d", rec3.Code)
	}
}

func TestCompareAsyncAccepted(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.CompareHandler, http.MethodPost, "/v1/compare?async=true", model.CompareRequest{
		Problem:             rectangleProblem(),
		ClassicalAlgorithms: []string{model.NearestNeighbor},
		QuantumOptimizers:   []string{},
		MaxIterations:       5,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["run_id"] == "" || body["status"] != "running" {
		t.Fatalf("unexpected async body: %v", body)
	}
}

func TestValidateHandler(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.ValidateHandler, http.MethodPost, "/v1/validate", rectangleProblem())
	if rec.Code != 200 {
		t.Fatalf("status: %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["valid"] != true || body["quantum_feasible"] != true {
		t.Fatalf("unexpected validation body: %v", body)
	}

	rec = doJSON(t, s.ValidateHandler, http.MethodPost, "/v1/validate", model.Problem{
		Locations: [][2]float64{{0, 0}, {1, 1}}, NumVehicles: 1,
	})
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["valid"] != false {
		t.Fatalf("two locations must be invalid: %v", body)
	}
}

func TestRandomProblemDeterministic(t *testing.T) {
	s := newTestServer(t)
	rec1 := doJSON(t, s.RandomProblemHandler, http.MethodGet, "/v1/problems/random?locations=6&vehicles=2&seed=9", nil)
	rec2 := doJSON(t, s.RandomProblemHandler, http.MethodGet, "/v1/problems/random?locations=6&vehicles=2&seed=9", nil)
	if rec1.Code != 200 || rec1.Body.String() != rec2.Body.String() {
		t.Fatalf("same seed must give identical problems")
	}
	rec3 := doJSON(t, s.RandomProblemHandler, http.MethodGet, "/v1/problems/random?locations=60", nil)
	if rec3.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized request, got %d", rec3.Code)
	}
}

func TestSubscriptionsCRUD(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.SubscriptionsHandler, http.MethodPost, "/v1/subscriptions", model.Subscription{
		URL:    "https://example.com/hook",
		Events: []string{"run.completed"},
		Secret: "shh",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var created model.Subscription
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if created.Secret != "" {
		t.Fatal("secret must not echo back")
	}

	rec = doJSON(t, s.SubscriptionsHandler, http.MethodGet, "/v1/subscriptions", nil)
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), created.ID) {
		t.Fatalf("list: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+created.ID, nil)
	rec4 := httptest.NewRecorder()
	s.SubscriptionByIDHandler(rec4, req)
	if rec4.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec4.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+created.ID, nil)
	rec5 := httptest.NewRecorder()
	s.SubscriptionByIDHandler(rec5, req)
	if rec5.Code != http.StatusNotFound {
		t.Fatalf("double delete should 404: %d", rec5.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	s := newTestServer(t)
	s.limiter = rate.NewLimiter(0, 1) // one request, no refill
	h := s.RateLimit(s.HealthHandler)

	if rec := doJSON(t, h, http.MethodGet, "/healthz", nil); rec.Code != 200 {
		t.Fatalf("first request should pass: %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited: %d", rec.Code)
	}
}

func TestPerformanceHandlerCounters(t *testing.T) {
	s := newTestServer(t)
	req := model.SolveRequest{Problem: rectangleProblem(), Algorithm: model.NearestNeighbor}
	doJSON(t, s.SolveClassicalHandler, http.MethodPost, "/v1/solve/classical", req)
	doJSON(t, s.SolveClassicalHandler, http.MethodPost, "/v1/solve/classical", req)

	rec := doJSON(t, s.PerformanceHandler, http.MethodGet, "/v1/performance", nil)
	if rec.Code != 200 {
		t.Fatalf("status: %d", rec.Code)
	}
	var snap model.PerformanceSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Hits != 1 || snap.Misses != 1 || snap.CacheSize != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
}
