// Package compare dispatches classical and quantum solver runs across a
// bounded worker pool and aggregates their results into a comparison
// report that tolerates per-algorithm failures.
package compare

import (
	"fmt"
	"sync"
	"time"

	"qfleet/internal/distmat"
	"qfleet/internal/metrics"
	"qfleet/internal/model"
	"qfleet/internal/quantum"
	"qfleet/internal/qubo"
	"qfleet/internal/solver"
)

// OracleFactory builds the cost oracle for a formulated QUBO model. The
// default is the deterministic simulator; tests inject stubs.
type OracleFactory func(m *qubo.Model, shots int, seed int64) quantum.Oracle

// ProgressFunc receives each finished per-algorithm result as it lands.
type ProgressFunc func(family, algorithm string, res model.SolverResult)

// Orchestrator owns the distance-matrix cache and the worker pool. One
// orchestrator serves all requests; per-request state (QUBO model,
// result collection) is never shared across invocations.
type Orchestrator struct {
	cache  *distmat.Cache
	pool   *Pool
	oracle OracleFactory
}

// NewOrchestrator wires an orchestrator over an existing cache and pool.
func NewOrchestrator(cache *distmat.Cache, pool *Pool) *Orchestrator {
	return &Orchestrator{
		cache: cache,
		pool:  pool,
		oracle: func(m *qubo.Model, shots int, seed int64) quantum.Oracle {
			return quantum.NewSimulatorOracle(m, shots, seed)
		},
	}
}

// SetOracleFactory overrides the cost-oracle constructor.
func (o *Orchestrator) SetOracleFactory(f OracleFactory) { o.oracle = f }

// Performance returns the cache and pool introspection snapshot.
func (o *Orchestrator) Performance() model.PerformanceSnapshot {
	stats := o.cache.Stats()
	return model.PerformanceSnapshot{
		Hits:              stats.Hits,
		Misses:            stats.Misses,
		HitRatePercent:    stats.HitRatePercent(),
		CacheSize:         stats.Size,
		PoolActiveWorkers: o.pool.ActiveWorkers(),
	}
}

// SolveClassical runs one classical algorithm synchronously.
func (o *Orchestrator) SolveClassical(req model.SolveRequest) (model.SolverResult, error) {
	if err := req.Problem.Validate(); err != nil {
		return model.SolverResult{}, err
	}
	if !model.IsClassical(req.Algorithm) {
		return model.SolverResult{}, fmt.Errorf("not a classical algorithm: %s", req.Algorithm)
	}
	matrix := o.cache.GetOrCompute(req.Problem.Locations)
	return o.runClassical(req.Algorithm, matrix, req.Problem, req.MaxIterations, req.Params), nil
}

// SolveQuantum formulates the QUBO model and runs one parameter-search
// strategy synchronously. Capacity rejections surface as errors here;
// inside Compare they become per-algorithm failure entries instead.
func (o *Orchestrator) SolveQuantum(req model.SolveRequest) (model.SolverResult, error) {
	if err := req.Problem.Validate(); err != nil {
		return model.SolverResult{}, err
	}
	if !model.IsQuantum(req.Algorithm) {
		return model.SolverResult{}, fmt.Errorf("not a quantum optimizer: %s", req.Algorithm)
	}
	matrix := o.cache.GetOrCompute(req.Problem.Locations)
	m, err := qubo.Build(req.Problem, matrix)
	if err != nil {
		return model.SolverResult{}, err
	}
	return o.runQuantum(req.Algorithm, m, matrix, req.Problem, req.MaxIterations, req.Params), nil
}

// Compare dispatches the requested algorithms over the worker pool and
// aggregates everything into one report. Empty algorithm lists select
// the full family. Per-algorithm failures are recorded inline and never
// abort sibling runs; only problem validation fails the whole request.
func (o *Orchestrator) Compare(req model.CompareRequest, progress ProgressFunc) (model.ComparisonReport, error) {
	if err := req.Problem.Validate(); err != nil {
		return model.ComparisonReport{}, err
	}

	quantumIDs := req.QuantumOptimizers
	if len(quantumIDs) == 0 {
		quantumIDs = model.QuantumOptimizers()
	}
	classicalIDs := req.ClassicalAlgorithms
	if len(classicalIDs) == 0 {
		classicalIDs = model.ClassicalAlgorithms()
	}

	// One matrix resolution feeds every solver and the QUBO formulator.
	matrix := o.cache.GetOrCompute(req.Problem.Locations)

	// Formulate once; a capacity rejection fails only the quantum family.
	quboModel, quboErr := qubo.Build(req.Problem, matrix)

	report := model.ComparisonReport{
		Quantum:   make(map[string]model.SolverResult, len(quantumIDs)),
		Classical: make(map[string]model.SolverResult, len(classicalIDs)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(family, id string, res model.SolverResult) {
		mu.Lock()
		if family == "quantum" {
			report.Quantum[id] = res
		} else {
			report.Classical[id] = res
		}
		mu.Unlock()
		if progress != nil {
			progress(family, id, res)
		}
	}

	for _, id := range classicalIDs {
		id := id
		if !model.IsClassical(id) {
			record("classical", id, failedResult(id, fmt.Sprintf("unknown classical algorithm: %s", id)))
			continue
		}
		wg.Add(1)
		o.pool.Submit(func() {
			defer wg.Done()
			record("classical", id, o.runClassical(id, matrix, req.Problem, req.MaxIterations, req.Params))
		})
	}

	for _, id := range quantumIDs {
		id := id
		if !model.IsQuantum(id) {
			record("quantum", id, failedResult(id, fmt.Sprintf("unknown quantum optimizer: %s", id)))
			continue
		}
		if quboErr != nil {
			record("quantum", id, failedResult(id, quboErr.Error()))
			continue
		}
		wg.Add(1)
		o.pool.Submit(func() {
			defer wg.Done()
			record("quantum", id, o.runQuantum(id, quboModel, matrix, req.Problem, req.MaxIterations, req.Params))
		})
	}

	wg.Wait()
	report.Comparison = summarize(report.Quantum, report.Classical)
	return report, nil
}

// runClassical executes one classical solver, converting panics and
// errors into a failure entry.
func (o *Orchestrator) runClassical(id string, matrix distmat.Matrix, p model.Problem, maxIter int, params model.SolveParams) (out model.SolverResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = failedResult(id, fmt.Sprintf("solver panic: %v", r))
			out.ExecutionTime = time.Since(start).Seconds()
		}
		observeSolve(id, "classical", out)
	}()

	res, err := solver.Solve(id, matrix, p, solver.Options{
		MaxIterations:  maxIter,
		PopulationSize: params.PopulationSize,
		MutationRate:   params.MutationRate,
		InitialTemp:    params.InitialTemp,
		CoolingRate:    params.CoolingRate,
		MaxTime:        time.Duration(params.MaxTimeSec * float64(time.Second)),
		Seed:           params.Seed,
	})
	if err != nil {
		out = failedResult(id, err.Error())
		out.ExecutionTime = time.Since(start).Seconds()
		return out
	}
	return res
}

// runQuantum executes one parameter-search strategy against the oracle.
func (o *Orchestrator) runQuantum(id string, m *qubo.Model, matrix distmat.Matrix, p model.Problem, maxIter int, params model.SolveParams) (out model.SolverResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = failedResult(id, fmt.Sprintf("optimizer panic: %v", r))
			out.ExecutionTime = time.Since(start).Seconds()
		}
		observeSolve(id, "quantum", out)
	}()

	oracle := o.oracle(m, params.Shots, seedOrDefault(params.Seed))
	res, err := quantum.Optimize(oracle, m, matrix, p, id, quantum.Options{
		MaxIterations: maxIter,
		PLayers:       params.PLayers,
		Shots:         params.Shots,
		Seed:          params.Seed,
	})
	if err != nil {
		out = failedResult(id, err.Error())
		out.ExecutionTime = time.Since(start).Seconds()
		return out
	}
	return res
}

func seedOrDefault(seed int64) int64 {
	if seed == 0 {
		return 42
	}
	return seed
}

func failedResult(id, msg string) model.SolverResult {
	return model.SolverResult{Algorithm: id, Error: msg, IsValid: false}
}

func observeSolve(id, family string, res model.SolverResult) {
	status := "ok"
	if res.Error != "" {
		status = "error"
	} else if !res.IsValid {
		status = "invalid"
	}
	metrics.SolveDuration.WithLabelValues(id, family, status).Observe(res.ExecutionTime)
}

// summarize computes the family bests over valid results only. Best
// fields stay nil when a family produced no valid solution; the quantum
// advantage is defined only when both families did.
func summarize(quantumResults, classicalResults map[string]model.SolverResult) model.ComparisonSummary {
	summary := model.ComparisonSummary{
		TotalAlgorithms: len(quantumResults) + len(classicalResults),
	}
	for _, m := range []map[string]model.SolverResult{quantumResults, classicalResults} {
		for _, res := range m {
			if res.Error == "" {
				summary.SuccessfulAlgorithms++
			}
		}
	}

	bestQuantum, quantumCost := bestValid(quantumResults)
	bestClassical, classicalCost := bestValid(classicalResults)

	summary.BestQuantum = bestQuantum
	summary.BestClassical = bestClassical

	switch {
	case bestQuantum != nil && bestClassical != nil:
		if quantumCost <= classicalCost {
			summary.BestOverall = bestQuantum
			summary.BestCost = &quantumCost
		} else {
			summary.BestOverall = bestClassical
			summary.BestCost = &classicalCost
		}
		advantage := (classicalCost - quantumCost) / classicalCost * 100
		summary.QuantumAdvantagePct = &advantage
	case bestQuantum != nil:
		summary.BestOverall = bestQuantum
		summary.BestCost = &quantumCost
	case bestClassical != nil:
		summary.BestOverall = bestClassical
		summary.BestCost = &classicalCost
	}
	return summary
}

func bestValid(results map[string]model.SolverResult) (*string, float64) {
	var (
		bestID   string
		bestCost float64
		found    bool
	)
	for id, res := range results {
		if !res.IsValid {
			continue
		}
		if !found || res.TotalCost < bestCost {
			bestID = id
			bestCost = res.TotalCost
			found = true
		}
	}
	if !found {
		return nil, 0
	}
	id := bestID
	return &id, bestCost
}
