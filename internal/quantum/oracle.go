// Package quantum wraps classical parameter-search strategies around a
// cost oracle to minimize a QUBO objective, then decodes the best
// parameter vector's sampled bitstring into vehicle routes.
package quantum

import (
	"hash/fnv"
	"math"
	"math/rand"

	"qfleet/internal/qubo"
)

// Oracle is the injected expectation-value evaluator. Evaluate returns
// the expected objective cost for a parameter vector; Sample draws
// bitstrings and returns the lowest-energy one observed.
type Oracle interface {
	Evaluate(params []float64) (float64, error)
	Sample(params []float64, shots int) ([]int, error)
}

// SimulatorOracle approximates a QAOA expectation over a QUBO model with
// a product-state ansatz: each parameter layer tilts the per-variable
// activation bias, lower-cost variables become more likely. Sampling
// noise is governed by shots and is deterministic for a given base seed
// and parameter vector.
type SimulatorOracle struct {
	Model *qubo.Model
	Shots int
	Seed  int64

	scale float64
}

// NewSimulatorOracle builds an oracle over m. shots <= 0 selects 1024.
func NewSimulatorOracle(m *qubo.Model, shots int, seed int64) *SimulatorOracle {
	if shots <= 0 {
		shots = 1024
	}
	scale := 1.0
	for _, l := range m.Linear {
		if a := math.Abs(l); a > scale {
			scale = a
		}
	}
	return &SimulatorOracle{Model: m, Shots: shots, Seed: seed, scale: scale}
}

// Evaluate returns the mean sampled energy for params.
func (o *SimulatorOracle) Evaluate(params []float64) (float64, error) {
	rng := o.rngFor(params)
	probs := o.activations(params)
	bits := make([]int, o.Model.NumVars)
	total := 0.0
	for s := 0; s < o.Shots; s++ {
		o.draw(bits, probs, rng)
		total += o.Model.Energy(bits)
	}
	return total / float64(o.Shots), nil
}

// Sample returns the lowest-energy bitstring among shots draws.
func (o *SimulatorOracle) Sample(params []float64, shots int) ([]int, error) {
	if shots <= 0 {
		shots = o.Shots
	}
	rng := o.rngFor(params)
	probs := o.activations(params)
	bits := make([]int, o.Model.NumVars)
	best := make([]int, o.Model.NumVars)
	bestEnergy := math.Inf(1)
	for s := 0; s < shots; s++ {
		o.draw(bits, probs, rng)
		if e := o.Model.Energy(bits); e < bestEnergy {
			bestEnergy = e
			copy(best, bits)
		}
	}
	return best, nil
}

// activations maps the layered (gamma, beta) parameters to per-variable
// one-probabilities. Gamma couples to the normalized linear cost (cheap
// variables tilt toward 1), beta is a uniform mixing bias.
func (o *SimulatorOracle) activations(params []float64) []float64 {
	probs := make([]float64, o.Model.NumVars)
	for i := 0; i < o.Model.NumVars; i++ {
		bias := 0.0
		for l := 0; l+1 < len(params); l += 2 {
			gamma, beta := params[l], params[l+1]
			bias += gamma*(-o.Model.Linear[i]/o.scale) + 0.2*math.Sin(beta)
		}
		probs[i] = 0.5 * (1 + math.Tanh(bias))
	}
	return probs
}

func (o *SimulatorOracle) draw(bits []int, probs []float64, rng *rand.Rand) {
	for i := range bits {
		if rng.Float64() < probs[i] {
			bits[i] = 1
		} else {
			bits[i] = 0
		}
	}
}

// rngFor derives a deterministic stream from the base seed and the exact
// parameter bits, so repeated evaluations of the same point agree.
func (o *SimulatorOracle) rngFor(params []float64) *rand.Rand {
	h := fnv.New64a()
	var buf [8]byte
	putUint64(buf[:], uint64(o.Seed))
	h.Write(buf[:])
	for _, p := range params {
		putUint64(buf[:], math.Float64bits(p))
		h.Write(buf[:])
	}
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
