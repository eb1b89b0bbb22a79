package quantum

import (
	"fmt"
	"math"
	"math/rand"

	"qfleet/internal/model"
)

type objective func(params []float64) (float64, error)

type searchResult struct {
	Params     []float64
	Value      float64
	Iterations int
}

// Parameter bounds shared by all strategies.
const (
	boundLo = 0.0
	boundHi = 2 * math.Pi
)

// Early-stop rule shared by the iterative strategies: the search stops
// once the best value has not improved by more than convergeEps for
// convergePatience consecutive iterations.
const (
	convergeEps      = 1e-9
	convergePatience = 25
)

type stallTracker struct {
	best  float64
	stall int
}

func newStallTracker(initial float64) *stallTracker {
	return &stallTracker{best: initial}
}

// observe reports whether the search should stop.
func (s *stallTracker) observe(value float64) bool {
	if value < s.best-convergeEps {
		s.best = value
		s.stall = 0
		return false
	}
	s.stall++
	return s.stall >= convergePatience
}

func clampParams(params []float64) {
	for i, p := range params {
		if p < boundLo {
			params[i] = boundLo
		} else if p > boundHi {
			params[i] = boundHi
		}
	}
}

// search dispatches to the named strategy.
func search(strategy string, obj objective, initial []float64, maxIter int, rng *rand.Rand) (searchResult, error) {
	switch strategy {
	case model.SPSA:
		return runSPSA(obj, initial, maxIter, rng)
	case model.COBYLA:
		return runCOBYLA(obj, initial, maxIter)
	case model.ADAM:
		return runADAM(obj, initial, maxIter)
	case model.Powell:
		return runPowell(obj, initial, maxIter)
	case model.Ensemble:
		return runEnsemble(obj, initial, maxIter, rng)
	case model.Adaptive:
		return search(adaptiveStrategy(len(initial)), obj, initial, maxIter, rng)
	default:
		return searchResult{}, fmt.Errorf("unknown optimizer: %s", strategy)
	}
}

// adaptiveStrategy picks a strategy from the parameter count: direction
// sets for tiny spaces, stochastic perturbation for medium ones,
// derivative-free trust region beyond that.
func adaptiveStrategy(numParams int) string {
	switch {
	case numParams <= 4:
		return model.Powell
	case numParams <= 8:
		return model.SPSA
	default:
		return model.COBYLA
	}
}

// runSPSA implements simultaneous perturbation stochastic approximation
// with gain sequences a_k = a/(k+1+A) and c_k = c/(k+1)^gamma. Both
// oracle calls per iteration share one Bernoulli perturbation vector.
func runSPSA(obj objective, initial []float64, maxIter int, rng *rand.Rand) (searchResult, error) {
	const (
		a     = 0.602
		c     = 0.101
		gamma = 0.167
	)
	bigA := float64(maxIter / 10)

	params := append([]float64(nil), initial...)
	best := append([]float64(nil), initial...)
	bestVal, err := obj(params)
	if err != nil {
		return searchResult{}, err
	}
	tracker := newStallTracker(bestVal)

	plus := make([]float64, len(params))
	minus := make([]float64, len(params))
	delta := make([]float64, len(params))

	k := 0
	for ; k < maxIter; k++ {
		ak := a / (float64(k) + 1 + bigA)
		ck := c / math.Pow(float64(k)+1, gamma)

		for i := range delta {
			if rng.Intn(2) == 0 {
				delta[i] = 1
			} else {
				delta[i] = -1
			}
			plus[i] = params[i] + ck*delta[i]
			minus[i] = params[i] - ck*delta[i]
		}
		clampParams(plus)
		clampParams(minus)

		fPlus, err := obj(plus)
		if err != nil {
			return searchResult{}, err
		}
		fMinus, err := obj(minus)
		if err != nil {
			return searchResult{}, err
		}

		for i := range params {
			grad := (fPlus - fMinus) / (2 * ck * delta[i])
			params[i] -= ak * grad
		}
		clampParams(params)

		value, err := obj(params)
		if err != nil {
			return searchResult{}, err
		}
		if value < bestVal {
			bestVal = value
			copy(best, params)
		}
		if tracker.observe(value) {
			k++
			break
		}
	}
	return searchResult{Params: best, Value: bestVal, Iterations: k}, nil
}

// runADAM estimates the gradient by central finite differences and
// applies bias-corrected first/second moment updates.
func runADAM(obj objective, initial []float64, maxIter int) (searchResult, error) {
	const (
		lr      = 0.01
		beta1   = 0.9
		beta2   = 0.999
		epsilon = 1e-8
		fdEps   = 1e-6
	)

	params := append([]float64(nil), initial...)
	best := append([]float64(nil), initial...)
	bestVal, err := obj(params)
	if err != nil {
		return searchResult{}, err
	}
	tracker := newStallTracker(bestVal)

	m := make([]float64, len(params))
	v := make([]float64, len(params))
	grad := make([]float64, len(params))
	probe := make([]float64, len(params))

	t := 0
	for ; t < maxIter; t++ {
		for i := range params {
			copy(probe, params)
			probe[i] = params[i] + fdEps
			fPlus, err := obj(probe)
			if err != nil {
				return searchResult{}, err
			}
			probe[i] = params[i] - fdEps
			fMinus, err := obj(probe)
			if err != nil {
				return searchResult{}, err
			}
			grad[i] = (fPlus - fMinus) / (2 * fdEps)
		}

		step := float64(t + 1)
		for i := range params {
			m[i] = beta1*m[i] + (1-beta1)*grad[i]
			v[i] = beta2*v[i] + (1-beta2)*grad[i]*grad[i]
			mHat := m[i] / (1 - math.Pow(beta1, step))
			vHat := v[i] / (1 - math.Pow(beta2, step))
			params[i] -= lr * mHat / (math.Sqrt(vHat) + epsilon)
		}
		clampParams(params)

		value, err := obj(params)
		if err != nil {
			return searchResult{}, err
		}
		if value < bestVal {
			bestVal = value
			copy(best, params)
		}
		if tracker.observe(value) {
			t++
			break
		}
	}
	return searchResult{Params: best, Value: bestVal, Iterations: t}, nil
}

// runCOBYLA approximates the constrained trust-region method with a
// derivative-free pattern search: probe +/- rho along each coordinate,
// take the best improving step, halve rho when nothing improves.
func runCOBYLA(obj objective, initial []float64, maxIter int) (searchResult, error) {
	const (
		rhoStart = 0.5
		rhoEnd   = 1e-4
	)

	params := append([]float64(nil), initial...)
	bestVal, err := obj(params)
	if err != nil {
		return searchResult{}, err
	}
	tracker := newStallTracker(bestVal)
	probe := make([]float64, len(params))

	rho := rhoStart
	it := 0
	for ; it < maxIter && rho > rhoEnd; it++ {
		improvedIdx, improvedDir := -1, 0.0
		candVal := bestVal
		for i := range params {
			for _, dir := range [2]float64{rho, -rho} {
				copy(probe, params)
				probe[i] += dir
				clampParams(probe)
				value, err := obj(probe)
				if err != nil {
					return searchResult{}, err
				}
				if value < candVal {
					candVal = value
					improvedIdx = i
					improvedDir = dir
				}
			}
		}
		if improvedIdx < 0 {
			rho /= 2
		} else {
			params[improvedIdx] += improvedDir
			clampParams(params)
			bestVal = candVal
		}
		if tracker.observe(candVal) {
			it++
			break
		}
	}
	return searchResult{Params: params, Value: bestVal, Iterations: it}, nil
}

// runPowell cycles coordinate directions with a coarse bracketed line
// search along each.
func runPowell(obj objective, initial []float64, maxIter int) (searchResult, error) {
	steps := []float64{-0.8, -0.4, -0.1, 0.1, 0.4, 0.8}

	params := append([]float64(nil), initial...)
	bestVal, err := obj(params)
	if err != nil {
		return searchResult{}, err
	}
	tracker := newStallTracker(bestVal)
	probe := make([]float64, len(params))

	it := 0
	for ; it < maxIter; it++ {
		dim := it % len(params)
		bestStep := 0.0
		for _, s := range steps {
			copy(probe, params)
			probe[dim] += s
			clampParams(probe)
			value, err := obj(probe)
			if err != nil {
				return searchResult{}, err
			}
			if value < bestVal {
				bestVal = value
				bestStep = s
			}
		}
		if bestStep != 0 {
			params[dim] += bestStep
			clampParams(params)
		}
		if tracker.observe(bestVal) {
			it++
			break
		}
	}
	return searchResult{Params: params, Value: bestVal, Iterations: it}, nil
}

// runEnsemble runs SPSA, ADAM and the trust-region search on a shared
// iteration budget and keeps the best result. A strategy failure only
// removes it from the pool; the ensemble fails when every member does.
func runEnsemble(obj objective, initial []float64, maxIter int, rng *rand.Rand) (searchResult, error) {
	memberIter := maxIter / 2
	if memberIter < 10 {
		memberIter = maxIter
	}

	type member struct {
		name string
		run  func() (searchResult, error)
	}
	members := []member{
		{model.SPSA, func() (searchResult, error) { return runSPSA(obj, initial, memberIter, rng) }},
		{model.ADAM, func() (searchResult, error) { return runADAM(obj, initial, memberIter) }},
		{model.COBYLA, func() (searchResult, error) { return runCOBYLA(obj, initial, memberIter) }},
	}

	var (
		best      searchResult
		bestSet   bool
		lastErr   error
		iterTotal int
	)
	for _, m := range members {
		res, err := m.run()
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", m.name, err)
			continue
		}
		iterTotal += res.Iterations
		if !bestSet || res.Value < best.Value {
			best = res
			bestSet = true
		}
	}
	if !bestSet {
		return searchResult{}, fmt.Errorf("all ensemble members failed: %w", lastErr)
	}
	best.Iterations = iterTotal
	return best, nil
}
