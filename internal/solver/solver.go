// Package solver implements the classical VRP heuristics and the exact
// branch-and-bound search. All solvers are stateless across calls and
// share one customer-split policy: the working permutation is cut into
// near-even contiguous chunks, one per vehicle, so results are comparable
// across algorithms.
package solver

import (
	"fmt"
	"time"

	"qfleet/internal/distmat"
	"qfleet/internal/model"
)

// Options carries tuning knobs; zero values select defaults.
type Options struct {
	MaxIterations  int
	PopulationSize int
	MutationRate   float64
	InitialTemp    float64
	CoolingRate    float64
	MaxTime        time.Duration
	Seed           int64
}

const defaultSeed = 42

func (o Options) seed() int64 {
	if o.Seed != 0 {
		return o.Seed
	}
	return defaultSeed
}

// Solve dispatches to the named classical algorithm.
func Solve(algorithm string, matrix distmat.Matrix, p model.Problem, opts Options) (model.SolverResult, error) {
	switch algorithm {
	case model.NearestNeighbor:
		return SolveNearestNeighbor(matrix, p)
	case model.GeneticAlgorithm:
		return SolveGenetic(matrix, p, opts)
	case model.SimulatedAnnealing:
		return SolveAnnealing(matrix, p, opts)
	case model.BranchAndBound:
		return SolveBranchAndBound(matrix, p, opts)
	default:
		return model.SolverResult{}, fmt.Errorf("unknown classical algorithm: %s", algorithm)
	}
}

// RouteCost sums consecutive-leg distances along one route.
func RouteCost(route []int, m distmat.Matrix) float64 {
	total := 0.0
	for i := 0; i+1 < len(route); i++ {
		total += m[route[i]][route[i+1]]
	}
	return total
}

// SolutionCost sums RouteCost over all routes.
func SolutionCost(sol [][]int, m distmat.Matrix) float64 {
	total := 0.0
	for _, r := range sol {
		total += RouteCost(r, m)
	}
	return total
}

// Validate checks the feasibility invariant: every non-depot location
// appears exactly once across routes, at most numVehicles routes, and
// every route starts and ends at the depot.
func Validate(sol [][]int, numLocations, depot, numVehicles int) bool {
	if len(sol) > numVehicles {
		return false
	}
	seen := make([]bool, numLocations)
	for _, route := range sol {
		if len(route) < 2 || route[0] != depot || route[len(route)-1] != depot {
			return false
		}
		for _, loc := range route[1 : len(route)-1] {
			if loc < 0 || loc >= numLocations || loc == depot || seen[loc] {
				return false
			}
			seen[loc] = true
		}
	}
	for i := 0; i < numLocations; i++ {
		if i != depot && !seen[i] {
			return false
		}
	}
	return true
}

// splitRoutes cuts a customer permutation into near-even contiguous
// chunks, one per vehicle, dropping empty routes. Every route is wrapped
// with the depot on both ends.
func splitRoutes(perm []int, numVehicles, depot int) [][]int {
	n := len(perm)
	if n == 0 {
		return nil
	}
	if numVehicles > n {
		numVehicles = n
	}
	base := n / numVehicles
	rem := n % numVehicles
	routes := make([][]int, 0, numVehicles)
	start := 0
	for k := 0; k < numVehicles; k++ {
		size := base
		if k < rem {
			size++
		}
		if size == 0 {
			continue
		}
		route := make([]int, 0, size+2)
		route = append(route, depot)
		route = append(route, perm[start:start+size]...)
		route = append(route, depot)
		routes = append(routes, route)
		start += size
	}
	return routes
}

// flatten extracts the customer permutation back out of a split solution.
func flatten(sol [][]int, depot int) []int {
	out := []int{}
	for _, route := range sol {
		for _, loc := range route {
			if loc != depot {
				out = append(out, loc)
			}
		}
	}
	return out
}
