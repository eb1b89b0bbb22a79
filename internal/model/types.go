package model

import "fmt"

// Algorithm identifiers are case-sensitive wire names.
const (
	NearestNeighbor    = "nearest_neighbor"
	GeneticAlgorithm   = "genetic_algorithm"
	SimulatedAnnealing = "simulated_annealing"
	BranchAndBound     = "branch_and_bound"

	SPSA     = "SPSA"
	COBYLA   = "COBYLA"
	ADAM     = "ADAM"
	Powell   = "Powell"
	Ensemble = "Ensemble"
	Adaptive = "Adaptive"
)

// ClassicalAlgorithms lists the solver suite in display order.
func ClassicalAlgorithms() []string {
	return []string{NearestNeighbor, GeneticAlgorithm, SimulatedAnnealing, BranchAndBound}
}

// QuantumOptimizers lists the parameter-search strategies in display order.
func QuantumOptimizers() []string {
	return []string{SPSA, COBYLA, ADAM, Powell, Ensemble, Adaptive}
}

func IsClassical(name string) bool {
	for _, a := range ClassicalAlgorithms() {
		if a == name {
			return true
		}
	}
	return false
}

func IsQuantum(name string) bool {
	for _, a := range QuantumOptimizers() {
		if a == name {
			return true
		}
	}
	return false
}

// Problem is a VRP instance. Immutable once submitted to a solve.
type Problem struct {
	Locations   [][2]float64 `json:"locations"`
	NumVehicles int          `json:"num_vehicles"`
	DepotIndex  int          `json:"depot_index"`
}

// ValidationError marks a malformed problem; it is fatal to the whole
// request and no algorithm is dispatched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid problem: " + e.Reason }

// Validate checks the instance constraints shared by every entry point.
func (p Problem) Validate() error {
	if len(p.Locations) < 3 {
		return &ValidationError{Reason: fmt.Sprintf("need at least 3 locations, got %d", len(p.Locations))}
	}
	if p.NumVehicles < 1 || p.NumVehicles > 5 {
		return &ValidationError{Reason: fmt.Sprintf("num_vehicles must be in [1,5], got %d", p.NumVehicles)}
	}
	if p.DepotIndex < 0 || p.DepotIndex >= len(p.Locations) {
		return &ValidationError{Reason: fmt.Sprintf("depot_index %d out of range [0,%d)", p.DepotIndex, len(p.Locations))}
	}
	return nil
}

// Customers returns all non-depot location indices in ascending order.
func (p Problem) Customers() []int {
	out := make([]int, 0, len(p.Locations)-1)
	for i := range p.Locations {
		if i != p.DepotIndex {
			out = append(out, i)
		}
	}
	return out
}

// SolverResult is the per-algorithm outcome. Failed runs carry Error and
// IsValid=false but are still part of the comparison report.
type SolverResult struct {
	Algorithm     string    `json:"algorithm"`
	TotalCost     float64   `json:"total_cost"`
	ExecutionTime float64   `json:"execution_time"`
	Solution      [][]int   `json:"solution,omitempty"`
	IsValid       bool      `json:"is_valid"`
	Iterations    int       `json:"iterations,omitempty"`
	NumQubits     int       `json:"num_qubits,omitempty"`
	PLayers       int       `json:"p_layers,omitempty"`
	Shots         int       `json:"shots,omitempty"`
	Error         string    `json:"error,omitempty"`
	OptimalParams []float64 `json:"optimal_params,omitempty"`
}

// ComparisonSummary aggregates the best entries per family. Pointers are
// nil when no algorithm in the family produced a valid solution.
type ComparisonSummary struct {
	BestOverall          *string  `json:"best_overall"`
	BestQuantum          *string  `json:"best_quantum"`
	BestClassical        *string  `json:"best_classical"`
	BestCost             *float64 `json:"best_cost,omitempty"`
	QuantumAdvantagePct  *float64 `json:"quantum_advantage_percent"`
	TotalAlgorithms      int      `json:"total_algorithms"`
	SuccessfulAlgorithms int      `json:"successful_algorithms"`
}

// ComparisonReport is the full comparison payload, including failed entries.
type ComparisonReport struct {
	ID         string                  `json:"id,omitempty"`
	Quantum    map[string]SolverResult `json:"quantum"`
	Classical  map[string]SolverResult `json:"classical"`
	Comparison ComparisonSummary       `json:"comparison"`
	CreatedAt  string                  `json:"created_at,omitempty"`
}

// SolveParams carries algorithm-family tuning knobs. Zero values select
// the engine defaults.
type SolveParams struct {
	PLayers        int     `json:"p_layers,omitempty"`
	Shots          int     `json:"shots,omitempty"`
	Seed           int64   `json:"seed,omitempty"`
	PopulationSize int     `json:"population_size,omitempty"`
	MutationRate   float64 `json:"mutation_rate,omitempty"`
	InitialTemp    float64 `json:"initial_temp,omitempty"`
	CoolingRate    float64 `json:"cooling_rate,omitempty"`
	MaxTimeSec     float64 `json:"max_time_sec,omitempty"`
}

// SolveRequest asks for a single algorithm run.
type SolveRequest struct {
	Problem       Problem     `json:"problem"`
	Algorithm     string      `json:"algorithm"`
	MaxIterations int         `json:"max_iterations,omitempty"`
	Params        SolveParams `json:"params,omitempty"`
}

// CompareRequest dispatches a subset of both families on one problem.
type CompareRequest struct {
	Problem             Problem     `json:"problem"`
	QuantumOptimizers   []string    `json:"quantum_optimizers,omitempty"`
	ClassicalAlgorithms []string    `json:"classical_algorithms,omitempty"`
	MaxIterations       int         `json:"max_iterations,omitempty"`
	Params              SolveParams `json:"params,omitempty"`
}

// PerformanceSnapshot is the cache/pool introspection payload.
type PerformanceSnapshot struct {
	Hits              int64   `json:"hits"`
	Misses            int64   `json:"misses"`
	HitRatePercent    float64 `json:"hit_rate_percent"`
	CacheSize         int     `json:"cache_size"`
	PoolActiveWorkers int     `json:"pool_active_workers"`
}

// Subscription registers a webhook target for run lifecycle events.
type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
