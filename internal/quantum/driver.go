package quantum

import (
	"math/rand"
	"time"

	"qfleet/internal/distmat"
	"qfleet/internal/model"
	"qfleet/internal/qubo"
	"qfleet/internal/solver"
)

// Options tunes one driver run; zero values select defaults.
type Options struct {
	MaxIterations int
	PLayers       int
	Shots         int
	Seed          int64
}

const (
	defaultIterations = 100
	defaultPLayers    = 2
	defaultShots      = 1024
	defaultSeed       = 42
)

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = defaultIterations
	}
	if o.PLayers <= 0 {
		o.PLayers = defaultPLayers
	}
	if o.Shots <= 0 {
		o.Shots = defaultShots
	}
	if o.Seed == 0 {
		o.Seed = defaultSeed
	}
	return o
}

// Optimize minimizes the QUBO objective through the oracle with the named
// parameter-search strategy, then decodes the best parameter vector's
// sampled bitstring into routes. The reported cost is measured against
// the distance matrix, never the penalty-weighted QUBO score. An
// infeasible decode is reported via IsValid=false, not an error.
func Optimize(oracle Oracle, m *qubo.Model, matrix distmat.Matrix, p model.Problem, optimizer string, opts Options) (model.SolverResult, error) {
	start := time.Now()
	opts = opts.withDefaults()
	rng := rand.New(rand.NewSource(opts.Seed))

	initial := make([]float64, 2*opts.PLayers)
	for i := range initial {
		initial[i] = 0.5
	}

	res, err := search(optimizer, oracle.Evaluate, initial, opts.MaxIterations, rng)
	if err != nil {
		return model.SolverResult{}, err
	}

	bits, err := oracle.Sample(res.Params, opts.Shots)
	if err != nil {
		return model.SolverResult{}, err
	}

	solution, feasible := decode(bits, m, matrix, p)
	valid := feasible && solver.Validate(solution, len(p.Locations), p.DepotIndex, p.NumVehicles)

	return model.SolverResult{
		Algorithm:     optimizer,
		TotalCost:     solver.SolutionCost(solution, matrix),
		ExecutionTime: time.Since(start).Seconds(),
		Solution:      solution,
		IsValid:       valid,
		Iterations:    res.Iterations,
		NumQubits:     m.NumVars,
		PLayers:       opts.PLayers,
		Shots:         opts.Shots,
		OptimalParams: res.Params,
	}, nil
}

// decode maps the sampled bitstring to per-vehicle routes. A customer's
// vehicle is its single set outgoing variable; any customer with zero or
// multiple set bits on either side marks the decode infeasible, and such
// customers fall back to their first set (or the first) vehicle so a
// route structure is still produced for inspection. Customers within a
// vehicle are ordered greedily from the depot.
func decode(bits []int, m *qubo.Model, matrix distmat.Matrix, p model.Problem) ([][]int, bool) {
	feasible := true
	byVehicle := make([][]int, p.NumVehicles)

	for ci, c := range m.Customers {
		vehicle, setCount := 0, 0
		for k, idx := range m.Outgoing[ci] {
			if bits[idx] == 1 {
				if setCount == 0 {
					vehicle = k
				}
				setCount++
			}
		}
		if setCount != 1 {
			feasible = false
		}
		inCount := 0
		for _, idx := range m.Incoming[ci] {
			if bits[idx] == 1 {
				inCount++
			}
		}
		if inCount != 1 {
			feasible = false
		}
		byVehicle[vehicle] = append(byVehicle[vehicle], c)
	}

	solution := make([][]int, 0, p.NumVehicles)
	for _, customers := range byVehicle {
		if len(customers) == 0 {
			continue
		}
		route := orderGreedy(customers, matrix, p.DepotIndex)
		solution = append(solution, route)
	}
	return solution, feasible
}

// orderGreedy sequences one vehicle's customers nearest-first from the
// depot and wraps the route with the depot on both ends.
func orderGreedy(customers []int, matrix distmat.Matrix, depot int) []int {
	remaining := append([]int(nil), customers...)
	route := make([]int, 0, len(customers)+2)
	route = append(route, depot)
	current := depot
	for len(remaining) > 0 {
		best, bestDist := 0, matrix[current][remaining[0]]
		for i := 1; i < len(remaining); i++ {
			if d := matrix[current][remaining[i]]; d < bestDist {
				bestDist = d
				best = i
			}
		}
		current = remaining[best]
		route = append(route, current)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return append(route, depot)
}
