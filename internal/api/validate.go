package api

import (
	"fmt"

	"qfleet/internal/model"
)

func validateParams(p model.SolveParams) error {
	if p.MutationRate < 0 || p.MutationRate > 1 {
		return fmt.Errorf("mutation_rate must be in [0,1]")
	}
	if p.CoolingRate != 0 && (p.CoolingRate <= 0 || p.CoolingRate >= 1) {
		return fmt.Errorf("cooling_rate must be in (0,1)")
	}
	if p.InitialTemp < 0 {
		return fmt.Errorf("initial_temp must be >= 0")
	}
	if p.Shots < 0 || p.Shots > 100000 {
		return fmt.Errorf("shots must be in [0,100000]")
	}
	if p.PLayers < 0 || p.PLayers > 10 {
		return fmt.Errorf("p_layers must be in [0,10]")
	}
	if p.MaxTimeSec < 0 {
		return fmt.Errorf("max_time_sec must be >= 0")
	}
	return nil
}

func validateSolveRequest(req *model.SolveRequest, wantClassical bool) error {
	if req.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be >= 0")
	}
	if wantClassical && !model.IsClassical(req.Algorithm) {
		return fmt.Errorf("invalid classical algorithm: %q", req.Algorithm)
	}
	if !wantClassical && !model.IsQuantum(req.Algorithm) {
		return fmt.Errorf("invalid quantum optimizer: %q", req.Algorithm)
	}
	return validateParams(req.Params)
}

func validateCompareRequest(req *model.CompareRequest) error {
	if req.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be >= 0")
	}
	for _, id := range req.ClassicalAlgorithms {
		if !model.IsClassical(id) {
			return fmt.Errorf("invalid classical algorithm: %q", id)
		}
	}
	for _, id := range req.QuantumOptimizers {
		if !model.IsQuantum(id) {
			return fmt.Errorf("invalid quantum optimizer: %q", id)
		}
	}
	return validateParams(req.Params)
}
