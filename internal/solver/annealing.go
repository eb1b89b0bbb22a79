package solver

import (
	"math"
	"math/rand"
	"time"

	"qfleet/internal/distmat"
	"qfleet/internal/model"
)

// SolveAnnealing refines the nearest-neighbor seed with local moves on the
// customer permutation: swap, segment reversal (2-opt) or relocation.
// Improving moves are always accepted, worsening moves with probability
// exp(-delta/T) on a geometric cooling schedule.
func SolveAnnealing(matrix distmat.Matrix, p model.Problem, opts Options) (model.SolverResult, error) {
	start := time.Now()
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 1000
	}
	temp := opts.InitialTemp
	if temp <= 0 {
		temp = 1000
	}
	cooling := opts.CoolingRate
	if cooling <= 0 || cooling >= 1 {
		cooling = 0.95
	}
	const finalTemp = 1.0
	rng := rand.New(rand.NewSource(opts.seed()))

	seed, err := SolveNearestNeighbor(matrix, p)
	if err != nil {
		return model.SolverResult{}, err
	}
	current := flatten(seed.Solution, p.DepotIndex)
	decode := func(perm []int) [][]int { return splitRoutes(perm, p.NumVehicles, p.DepotIndex) }
	currentCost := SolutionCost(decode(current), matrix)

	best := append([]int(nil), current...)
	bestCost := currentCost

	iteration := 0
	for ; iteration < maxIterations && temp > finalTemp; iteration++ {
		neighbor := proposeMove(current, rng)
		cost := SolutionCost(decode(neighbor), matrix)
		delta := cost - currentCost
		if delta < 0 || rng.Float64() < math.Exp(-delta/temp) {
			current = neighbor
			currentCost = cost
			if currentCost < bestCost {
				bestCost = currentCost
				best = append(best[:0], current...)
			}
		}
		temp *= cooling
	}

	solution := decode(best)
	return model.SolverResult{
		Algorithm:     model.SimulatedAnnealing,
		TotalCost:     bestCost,
		ExecutionTime: time.Since(start).Seconds(),
		Solution:      solution,
		IsValid:       Validate(solution, len(p.Locations), p.DepotIndex, p.NumVehicles),
		Iterations:    iteration,
	}, nil
}

func proposeMove(perm []int, rng *rand.Rand) []int {
	out := append([]int(nil), perm...)
	if len(out) < 2 {
		return out
	}
	i, j := rng.Intn(len(out)), rng.Intn(len(out))
	if i > j {
		i, j = j, i
	}
	switch rng.Intn(3) {
	case 0: // swap
		out[i], out[j] = out[j], out[i]
	case 1: // reverse segment
		for a, b := i, j; a < b; a, b = a+1, b-1 {
			out[a], out[b] = out[b], out[a]
		}
	default: // relocate i to j
		c := out[i]
		out = append(out[:i], out[i+1:]...)
		out = append(out[:j], append([]int{c}, out[j:]...)...)
	}
	return out
}
