// Package planner implements batched motion-trajectory optimization via
// entropic optimal transport: populations of trajectory particles are
// iteratively reshaped by local Sinkhorn couplings over polytope probe
// candidates until their costs stop improving.
package planner

import (
	"context"
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/enfisan/mpot/costs"
	"github.com/enfisan/mpot/ot"
	"github.com/enfisan/mpot/polytope"
	"github.com/enfisan/mpot/trajectory"
)

// floor for relative cost-change computation when the previous cost is ~0.
const relChangeFloor = 1e-12

// MPOT is a batched trajectory optimizer. It owns its particle populations and
// optimization state exclusively; the objective, solver, and polytope vertex
// set are read-only shared services.
type MPOT struct {
	opts      *PlannerOptions
	objective costs.Evaluator
	solver    *ot.Sinkhorn
	vertices  *mat.Dense
	logger    golog.Logger
}

// New validates the options and resolves the probe polytope once, so no
// configuration work remains in the iteration path. The polytope spans the
// full state space: probes perturb velocities as well as positions.
func New(opts *PlannerOptions, objective costs.Evaluator, solver *ot.Sinkhorn, logger golog.Logger) (*MPOT, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if objective == nil {
		return nil, errors.Wrap(ErrConfiguration, "nil objective")
	}
	if solver == nil {
		return nil, errors.Wrap(ErrConfiguration, "nil transport solver")
	}
	vertices, err := polytope.Vertices(opts.Polytope, 2*opts.Dim)
	if err != nil {
		return nil, errors.Wrap(ErrConfiguration, err.Error())
	}
	return &MPOT{
		opts:      opts,
		objective: objective,
		solver:    solver,
		vertices:  vertices,
		logger:    logger,
	}, nil
}

// Options returns the planner's configuration.
func (m *MPOT) Options() *PlannerOptions {
	return m.opts
}

// Optimize initializes the particle populations and iterates structured
// sampling updates until the relative mean-cost change drops below the
// threshold (after MinIterations) or MaxIterations is reached. It returns the
// final trajectories, the accumulated optimization state, and the number of
// outer iterations actually run. Cancellation is observed between iterations.
func (m *MPOT) Optimize(ctx context.Context) (*trajectory.Batch, *OptimizationState, int, error) {
	o := m.opts
	batch, err := m.initializePopulations()
	if err != nil {
		return nil, nil, 0, errors.Wrap(ErrConfiguration, err.Error())
	}

	state := &OptimizationState{Status: StatusMaxIterationsReached}
	prevCost := math.Inf(1)
	iters := 0
	for k := 0; k < o.MaxIterations; k++ {
		if err := ctx.Err(); err != nil {
			return batch, state, iters, err
		}

		res, err := m.step(ctx, batch, k)
		if err != nil {
			return nil, state, iters, err
		}
		batch = res.next

		trajCosts, err := m.objective.Trajectories(batch)
		if err != nil {
			return nil, state, iters, errors.Wrapf(ErrNumerical, "trajectory cost evaluation: %s", err)
		}
		meanCost, err := finiteMean(trajCosts)
		if err != nil {
			return nil, state, iters, err
		}

		var snapshot *trajectory.Batch
		if o.StoreHistory {
			snapshot = batch.Clone()
		}
		state.append(snapshot, res.innerIters, meanCost)
		iters = k + 1

		relChange := math.Inf(1)
		if !math.IsInf(prevCost, 1) {
			relChange = math.Abs(meanCost-prevCost) / math.Max(math.Abs(prevCost), relChangeFloor)
		}
		m.logger.Debugf("iteration %d: mean cost %.6g, relative change %.3g", iters, meanCost, relChange)
		prevCost = meanCost

		if iters >= o.MinIterations && relChange < o.Threshold {
			state.Status = StatusConverged
			break
		}
	}

	m.logger.Infof("optimization finished after %d/%d iterations (%s)", iters, o.MaxIterations, state.Status)
	return batch, state, iters, nil
}

func finiteMean(values []float64) (float64, error) {
	total := 0.0
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, errors.Wrapf(ErrNumerical, "non-finite cost for trajectory %d", i)
		}
		total += v
	}
	return total / float64(len(values)), nil
}
