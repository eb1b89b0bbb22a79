package solver

import (
	"time"

	"qfleet/internal/distmat"
	"qfleet/internal/model"
)

// SolveNearestNeighbor greedily builds one route per vehicle. Each vehicle
// takes a near-even quota of the remaining customers (floor split, the
// last vehicle absorbs the remainder) and repeatedly extends its route to
// the closest unvisited candidate via a single argmin pass. Deterministic,
// O(n^2).
func SolveNearestNeighbor(matrix distmat.Matrix, p model.Problem) (model.SolverResult, error) {
	start := time.Now()
	remaining := p.Customers()

	solution := make([][]int, 0, p.NumVehicles)
	for vehicle := 0; vehicle < p.NumVehicles && len(remaining) > 0; vehicle++ {
		quota := len(remaining) / (p.NumVehicles - vehicle)
		if quota < 1 {
			quota = 1
		}
		route := []int{p.DepotIndex}
		current := p.DepotIndex
		for i := 0; i < quota && len(remaining) > 0; i++ {
			nearest := argminDist(matrix[current], remaining)
			next := remaining[nearest]
			route = append(route, next)
			current = next
			remaining = append(remaining[:nearest], remaining[nearest+1:]...)
		}
		route = append(route, p.DepotIndex)
		solution = append(solution, route)
	}

	return model.SolverResult{
		Algorithm:     model.NearestNeighbor,
		TotalCost:     SolutionCost(solution, matrix),
		ExecutionTime: time.Since(start).Seconds(),
		Solution:      solution,
		IsValid:       Validate(solution, len(p.Locations), p.DepotIndex, p.NumVehicles),
		Iterations:    1,
	}, nil
}

// argminDist returns the candidate position with minimum distance in row.
func argminDist(row []float64, candidates []int) int {
	best := 0
	bestDist := row[candidates[0]]
	for i := 1; i < len(candidates); i++ {
		if d := row[candidates[i]]; d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}
