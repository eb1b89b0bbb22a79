// Package qubo maps a VRP instance onto a Quadratic Unconstrained Binary
// Optimization model consumable by a parameterized-circuit cost oracle.
package qubo

import (
	"fmt"

	"qfleet/internal/distmat"
	"qfleet/internal/model"
)

// MaxQubits is the admission ceiling for the simulated quantum path.
const MaxQubits = 20

// CapacityError reports a problem whose binary-variable count exceeds the
// qubit ceiling, with the largest feasible location count as guidance.
type CapacityError struct {
	NumQubits    int
	MaxQubits    int
	MaxLocations int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("problem too large: %d qubits needed (max %d); at most %d locations fit", e.NumQubits, e.MaxQubits, e.MaxLocations)
}

// Var identifies one binary variable in the arena: customer c assigned to
// vehicle k, on either the depot-outgoing or depot-incoming side of the
// vehicle's tour.
type Var struct {
	Customer int // location index
	Vehicle  int
	Inbound  bool
}

// Model is a built QUBO instance. Variables live in a contiguous index
// space assigned at build time; Outgoing/Incoming hold the precomputed
// per-customer constraint index lists so one-hot penalties are assembled
// without rescanning all (customer, vehicle) pairs.
type Model struct {
	NumVars   int
	Penalty   float64
	Customers []int // location indices, ascending

	// Outgoing[i] / Incoming[i] list the variable indices of Customers[i].
	Outgoing [][]int
	Incoming [][]int

	Linear []float64
	Quad   map[[2]int]float64
	Offset float64

	vars  []Var
	index map[Var]int
}

// NumVarsFor is the variable count the encoding needs for an instance.
func NumVarsFor(numLocations, numVehicles int) int {
	return (numLocations - 1) * numVehicles * 2
}

// MaxLocationsFor is the location count suggested in capacity errors for
// the requested vehicle count. Deliberately conservative by one.
func MaxLocationsFor(numVehicles int) int {
	if numVehicles < 1 {
		numVehicles = 1
	}
	return MaxQubits / (2 * numVehicles)
}

// VarIndex returns the arena index for v.
func (m *Model) VarIndex(v Var) int { return m.index[v] }

// VarAt returns the variable at arena index i.
func (m *Model) VarAt(i int) Var { return m.vars[i] }

// Energy evaluates the QUBO objective for a bit assignment.
func (m *Model) Energy(bits []int) float64 {
	e := m.Offset
	for i, b := range bits {
		if b != 0 {
			e += m.Linear[i]
		}
	}
	for key, coeff := range m.Quad {
		if bits[key[0]] != 0 && bits[key[1]] != 0 {
			e += coeff
		}
	}
	return e
}

// Build formulates the QUBO model for a validated problem and its distance
// matrix. It rejects instances above the qubit ceiling.
func Build(p model.Problem, matrix distmat.Matrix) (*Model, error) {
	n := len(p.Locations)
	numVars := NumVarsFor(n, p.NumVehicles)
	if numVars > MaxQubits {
		return nil, &CapacityError{NumQubits: numVars, MaxQubits: MaxQubits, MaxLocations: MaxLocationsFor(p.NumVehicles)}
	}

	customers := p.Customers()
	m := &Model{
		NumVars:   numVars,
		Customers: customers,
		Outgoing:  make([][]int, len(customers)),
		Incoming:  make([][]int, len(customers)),
		Linear:    make([]float64, numVars),
		Quad:      map[[2]int]float64{},
		vars:      make([]Var, 0, numVars),
		index:     make(map[Var]int, numVars),
	}

	// Arena assignment: contiguous indices, customers in ascending order,
	// vehicles inner, outgoing before incoming.
	for ci, c := range customers {
		m.Outgoing[ci] = make([]int, 0, p.NumVehicles)
		m.Incoming[ci] = make([]int, 0, p.NumVehicles)
		for k := 0; k < p.NumVehicles; k++ {
			out := Var{Customer: c, Vehicle: k}
			m.index[out] = len(m.vars)
			m.Outgoing[ci] = append(m.Outgoing[ci], len(m.vars))
			m.vars = append(m.vars, out)

			in := Var{Customer: c, Vehicle: k, Inbound: true}
			m.index[in] = len(m.vars)
			m.Incoming[ci] = append(m.Incoming[ci], len(m.vars))
			m.vars = append(m.vars, in)
		}
	}

	m.Penalty = penaltyStrength(matrix, n)

	// Distance terms: each assignment contributes half the depot leg on its
	// side, plus a same-vehicle coupling approximating the intra-tour cost.
	for ci, c := range customers {
		for _, idx := range m.Outgoing[ci] {
			m.Linear[idx] += matrix[p.DepotIndex][c] / 2
		}
		for _, idx := range m.Incoming[ci] {
			m.Linear[idx] += matrix[c][p.DepotIndex] / 2
		}
	}
	for ci := range customers {
		for cj := ci + 1; cj < len(customers); cj++ {
			d := matrix[customers[ci]][customers[cj]]
			for k := 0; k < len(m.Outgoing[ci]); k++ {
				m.addQuad(m.Outgoing[ci][k], m.Outgoing[cj][k], d/2)
			}
		}
	}

	// One-hot constraints from the precomputed lists: (sum - 1)^2 expands to
	// -lambda per variable, +2*lambda per variable pair, +lambda constant.
	for ci := range customers {
		m.addOneHot(m.Outgoing[ci])
		m.addOneHot(m.Incoming[ci])
	}

	return m, nil
}

func (m *Model) addOneHot(indices []int) {
	for _, idx := range indices {
		m.Linear[idx] -= m.Penalty
	}
	for i := 0; i < len(indices); i++ {
		for j := i + 1; j < len(indices); j++ {
			m.addQuad(indices[i], indices[j], 2*m.Penalty)
		}
	}
	m.Offset += m.Penalty
}

func (m *Model) addQuad(i, j int, coeff float64) {
	if i > j {
		i, j = j, i
	}
	m.Quad[[2]int{i, j}] += coeff
}

// penaltyStrength must dominate any feasible-vs-infeasible cost gap.
func penaltyStrength(matrix distmat.Matrix, n int) float64 {
	maxDist := 0.0
	for i := range matrix {
		for j := range matrix[i] {
			if matrix[i][j] > maxDist {
				maxDist = matrix[i][j]
			}
		}
	}
	p := maxDist * float64(n) * 2
	if p <= 0 {
		p = 1
	}
	return p
}
