package solver

import (
	"fmt"
	"sort"
	"time"

	"qfleet/internal/distmat"
	"qfleet/internal/model"
)

// MaxExactCustomers bounds the branch-and-bound search space. Larger
// instances are rejected up front instead of silently degrading to a
// heuristic.
const MaxExactCustomers = 8

type bbState struct {
	matrix    distmat.Matrix
	depot     int
	vehicles  int
	minEdge   []float64 // cheapest incident edge per location
	deadline  time.Time
	bestCost  float64
	bestRoute [][]int
	nodes     int
}

// SolveBranchAndBound runs an exact depth-first search over route
// extensions with a cheapest-incident-edge lower bound. It fails fast on
// instances above MaxExactCustomers or when the time budget expires
// before the search completes.
func SolveBranchAndBound(matrix distmat.Matrix, p model.Problem, opts Options) (model.SolverResult, error) {
	start := time.Now()
	customers := p.Customers()
	if len(customers) > MaxExactCustomers {
		return model.SolverResult{}, fmt.Errorf("branch and bound: %d customers exceeds exact-search limit %d", len(customers), MaxExactCustomers)
	}
	maxTime := opts.MaxTime
	if maxTime <= 0 {
		maxTime = 30 * time.Second
	}

	st := &bbState{
		matrix:   matrix,
		depot:    p.DepotIndex,
		vehicles: p.NumVehicles,
		minEdge:  cheapestIncidentEdges(matrix),
		deadline: start.Add(maxTime),
		bestCost: 1e308,
	}

	unvisited := map[int]bool{}
	for _, c := range customers {
		unvisited[c] = true
	}
	st.search([][]int{}, []int{p.DepotIndex}, 0, unvisited)

	if st.bestRoute == nil {
		return model.SolverResult{}, fmt.Errorf("branch and bound: search exhausted time budget %s", maxTime)
	}
	return model.SolverResult{
		Algorithm:     model.BranchAndBound,
		TotalCost:     st.bestCost,
		ExecutionTime: time.Since(start).Seconds(),
		Solution:      st.bestRoute,
		IsValid:       Validate(st.bestRoute, len(p.Locations), p.DepotIndex, p.NumVehicles),
		Iterations:    st.nodes,
	}, nil
}

// search extends the open route or closes it and opens another vehicle.
// cost is the accumulated distance of closed routes plus the open prefix.
func (s *bbState) search(closed [][]int, open []int, cost float64, unvisited map[int]bool) {
	s.nodes++
	if s.nodes%4096 == 0 && time.Now().After(s.deadline) {
		return
	}
	current := open[len(open)-1]

	if len(unvisited) == 0 {
		total := cost + s.matrix[current][s.depot]
		if total < s.bestCost {
			final := append([]int(nil), open...)
			final = append(final, s.depot)
			sol := make([][]int, 0, len(closed)+1)
			for _, r := range closed {
				sol = append(sol, append([]int(nil), r...))
			}
			sol = append(sol, final)
			s.bestCost = total
			s.bestRoute = sol
		}
		return
	}

	if cost+s.lowerBound(unvisited) >= s.bestCost {
		return
	}

	// Extend the open route. Branch over a snapshot so the map is not
	// mutated mid-range.
	candidates := make([]int, 0, len(unvisited))
	for c := range unvisited {
		candidates = append(candidates, c)
	}
	sort.Ints(candidates)
	for _, c := range candidates {
		delete(unvisited, c)
		s.search(closed, append(append([]int(nil), open...), c), cost+s.matrix[current][c], unvisited)
		unvisited[c] = true
	}

	// Close the route and start a fresh vehicle.
	if len(open) > 1 && len(closed)+1 < s.vehicles {
		route := append([]int(nil), open...)
		route = append(route, s.depot)
		s.search(append(closed, route), []int{s.depot}, cost+s.matrix[current][s.depot], unvisited)
	}
}

// lowerBound sums the cheapest incident edge of every unvisited customer;
// each must still be entered at least once, so this never overestimates.
func (s *bbState) lowerBound(unvisited map[int]bool) float64 {
	bound := 0.0
	for c := range unvisited {
		bound += s.minEdge[c]
	}
	return bound
}

func cheapestIncidentEdges(matrix distmat.Matrix) []float64 {
	out := make([]float64, len(matrix))
	for i := range matrix {
		best := 1e308
		for j := range matrix[i] {
			if i != j && matrix[i][j] < best {
				best = matrix[i][j]
			}
		}
		out[i] = best
	}
	return out
}
