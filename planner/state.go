package planner

import "github.com/enfisan/mpot/trajectory"

// Status is the terminal condition of an optimization run.
type Status int

// Terminal planner states. Reaching the iteration budget without meeting the
// convergence threshold is a normal, if suboptimal, termination.
const (
	StatusConverged Status = iota
	StatusMaxIterationsReached
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusMaxIterationsReached:
		return "max iterations reached"
	default:
		return "unknown"
	}
}

// OptimizationState accumulates per-iteration diagnostics. It is appended to
// once per outer iteration and read-only after Optimize returns. Callers
// distinguish healthy convergence from a tuning problem by comparing
// Iterations against the configured budget and inspecting LinearConvergence.
type OptimizationState struct {
	// XHistory holds a trajectory snapshot per iteration, only when history
	// storage is enabled.
	XHistory []*trajectory.Batch
	// LinearConvergence records, per outer iteration, the inner Sinkhorn
	// iteration count of each goal population's solve.
	LinearConvergence [][]int
	// Costs is the population mean total cost after each iteration.
	Costs []float64
	// Iterations counts completed outer iterations.
	Iterations int
	// Status is the terminal condition; meaningful once Optimize returns.
	Status Status
}

func (s *OptimizationState) append(snapshot *trajectory.Batch, innerIters []int, meanCost float64) {
	if snapshot != nil {
		s.XHistory = append(s.XHistory, snapshot)
	}
	s.LinearConvergence = append(s.LinearConvergence, innerIters)
	s.Costs = append(s.Costs, meanCost)
	s.Iterations++
}
