package solver

import (
	"math/rand"
	"sort"
	"time"

	"qfleet/internal/distmat"
	"qfleet/internal/model"
)

// SolveGenetic evolves a population of customer permutations. Fitness is
// total decoded distance (lower is better); order crossover preserves
// relative visit order, mutation swaps two customers or reverses a
// segment. The best individual of the final population is returned.
func SolveGenetic(matrix distmat.Matrix, p model.Problem, opts Options) (model.SolverResult, error) {
	start := time.Now()
	generations := opts.MaxIterations
	if generations <= 0 {
		generations = 100
	}
	popSize := opts.PopulationSize
	if popSize <= 0 {
		popSize = 50
	}
	mutationRate := opts.MutationRate
	if mutationRate <= 0 {
		mutationRate = 0.1
	}
	eliteSize := popSize / 5
	if eliteSize < 1 {
		eliteSize = 1
	}
	rng := rand.New(rand.NewSource(opts.seed()))

	customers := p.Customers()
	population := make([][]int, popSize)
	for i := range population {
		perm := append([]int(nil), customers...)
		rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
		population[i] = perm
	}

	decode := func(perm []int) [][]int { return splitRoutes(perm, p.NumVehicles, p.DepotIndex) }
	costOf := func(perm []int) float64 { return SolutionCost(decode(perm), matrix) }

	bestPerm := append([]int(nil), population[0]...)
	bestCost := costOf(bestPerm)

	costs := make([]float64, popSize)
	for gen := 0; gen < generations; gen++ {
		for i, ind := range population {
			costs[i] = costOf(ind)
			if costs[i] < bestCost {
				bestCost = costs[i]
				bestPerm = append(bestPerm[:0], ind...)
			}
		}

		// Elitism: carry the best individuals over unchanged.
		order := make([]int, popSize)
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return costs[order[a]] < costs[order[b]] })
		next := make([][]int, 0, popSize)
		for _, idx := range order[:eliteSize] {
			next = append(next, append([]int(nil), population[idx]...))
		}

		for len(next) < popSize {
			p1 := tournament(population, costs, rng)
			p2 := tournament(population, costs, rng)
			child := orderCrossover(p1, p2, rng)
			mutate(child, mutationRate, rng)
			next = append(next, child)
		}
		population = next
	}

	solution := decode(bestPerm)
	return model.SolverResult{
		Algorithm:     model.GeneticAlgorithm,
		TotalCost:     bestCost,
		ExecutionTime: time.Since(start).Seconds(),
		Solution:      solution,
		IsValid:       Validate(solution, len(p.Locations), p.DepotIndex, p.NumVehicles),
		Iterations:    generations,
	}, nil
}

// tournament returns the cheapest of k=3 sampled individuals.
func tournament(population [][]int, costs []float64, rng *rand.Rand) []int {
	best := rng.Intn(len(population))
	for i := 0; i < 2; i++ {
		c := rng.Intn(len(population))
		if costs[c] < costs[best] {
			best = c
		}
	}
	return population[best]
}

// orderCrossover copies a random slice of p1 and fills the rest in p2's
// order (OX operator).
func orderCrossover(p1, p2 []int, rng *rand.Rand) []int {
	n := len(p1)
	child := make([]int, n)
	if n < 2 {
		copy(child, p1)
		return child
	}
	a, b := rng.Intn(n), rng.Intn(n)
	if a > b {
		a, b = b, a
	}
	inWindow := make(map[int]bool, b-a+1)
	for i := a; i <= b; i++ {
		child[i] = p1[i]
		inWindow[p1[i]] = true
	}
	pos := 0
	for _, c := range p2 {
		if inWindow[c] {
			continue
		}
		for pos >= a && pos <= b {
			pos++
		}
		child[pos] = c
		pos++
	}
	return child
}

// mutate applies a swap or segment reversal with the given probability.
func mutate(perm []int, rate float64, rng *rand.Rand) {
	if len(perm) < 2 || rng.Float64() > rate {
		return
	}
	i, j := rng.Intn(len(perm)), rng.Intn(len(perm))
	if i > j {
		i, j = j, i
	}
	if rng.Intn(2) == 0 {
		perm[i], perm[j] = perm[j], perm[i]
		return
	}
	for a, b := i, j; a < b; a, b = a+1, b-1 {
		perm[a], perm[b] = perm[b], perm[a]
	}
}
