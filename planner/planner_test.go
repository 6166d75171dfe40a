package planner

import (
	"context"
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/enfisan/mpot/costs"
	"github.com/enfisan/mpot/ot"
	"github.com/enfisan/mpot/trajectory"
)

func testOptions(seed uint64) *PlannerOptions {
	opts := NewBasicPlannerOptions()
	opts.Dim = 2
	opts.TrajLen = 16
	opts.NumParticlesPerGoal = 8
	opts.Dt = 0.1
	opts.StartState = []float64{-9, -9, 0, 0}
	opts.MultiGoalStates = [][]float64{{9, 9, 0, 0}}
	opts.PosLimits = [2]float64{-10, 10}
	opts.VelLimits = [2]float64{-10, 10}
	opts.NumProbe = 3
	opts.MaxIterations = 40
	opts.Seed = seed
	opts.StoreHistory = true
	return opts
}

func newTestPlanner(t *testing.T, opts *PlannerOptions) *MPOT {
	t.Helper()
	logger := golog.NewTestLogger(t)
	gp, err := costs.NewGPHolonomic(opts.Dt, 0.1)
	test.That(t, err, test.ShouldBeNil)
	solver, err := ot.NewSinkhorn(1e-3, 1, 100, logger)
	test.That(t, err, test.ShouldBeNil)
	m, err := New(opts, gp, solver, logger)
	test.That(t, err, test.ShouldBeNil)
	return m
}

// lineDeviation is the mean Euclidean distance of waypoint positions from the
// straight start-goal line.
func lineDeviation(b *trajectory.Batch, start, goal []float64) float64 {
	span := float64(b.Len - 1)
	total := 0.0
	for i := 0; i < b.NumTrajs; i++ {
		for t := 0; t < b.Len; t++ {
			w := float64(t) / span
			pos := b.Position(i, t)
			sq := 0.0
			for d := 0; d < b.Dim; d++ {
				ref := start[d]*(1-w) + goal[d]*w
				sq += (pos[d] - ref) * (pos[d] - ref)
			}
			total += math.Sqrt(sq)
		}
	}
	return total / float64(b.NumTrajs*b.Len)
}

func TestNewRejectsBadArguments(t *testing.T) {
	logger := golog.NewTestLogger(t)
	gp, err := costs.NewGPHolonomic(0.1, 0.1)
	test.That(t, err, test.ShouldBeNil)
	solver, err := ot.NewSinkhorn(1e-3, 1, 100, logger)
	test.That(t, err, test.ShouldBeNil)

	_, err = New(NewBasicPlannerOptions(), gp, solver, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrConfiguration), test.ShouldBeTrue)

	_, err = New(testOptions(0), nil, solver, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrConfiguration), test.ShouldBeTrue)

	_, err = New(testOptions(0), gp, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrConfiguration), test.ShouldBeTrue)
}

func TestInitializationSeeded(t *testing.T) {
	a := newTestPlanner(t, testOptions(7))
	b := newTestPlanner(t, testOptions(7))
	c := newTestPlanner(t, testOptions(8))

	batchA, err := a.initializePopulations()
	test.That(t, err, test.ShouldBeNil)
	batchB, err := b.initializePopulations()
	test.That(t, err, test.ShouldBeNil)
	batchC, err := c.initializePopulations()
	test.That(t, err, test.ShouldBeNil)

	test.That(t, mat.Equal(batchA.AsMatrix(), batchB.AsMatrix()), test.ShouldBeTrue)
	test.That(t, mat.Equal(batchA.AsMatrix(), batchC.AsMatrix()), test.ShouldBeFalse)
}

func TestInitializationPinsEndpointsAndLimits(t *testing.T) {
	opts := testOptions(3)
	m := newTestPlanner(t, opts)
	batch, err := m.initializePopulations()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, batch.NumTrajs, test.ShouldEqual, opts.NumParticlesPerGoal)

	goal := opts.MultiGoalStates[0]
	for i := 0; i < batch.NumTrajs; i++ {
		for d := 0; d < opts.Dim; d++ {
			test.That(t, batch.Position(i, 0)[d], test.ShouldEqual, opts.StartState[d])
			test.That(t, batch.Velocity(i, 0)[d], test.ShouldEqual, opts.StartState[opts.Dim+d])
			test.That(t, batch.Position(i, opts.TrajLen-1)[d], test.ShouldEqual, goal[d])
			test.That(t, batch.Velocity(i, opts.TrajLen-1)[d], test.ShouldEqual, goal[opts.Dim+d])
		}
		for wp := 0; wp < opts.TrajLen; wp++ {
			for d := 0; d < opts.Dim; d++ {
				test.That(t, batch.Position(i, wp)[d], test.ShouldBeGreaterThanOrEqualTo, opts.PosLimits[0])
				test.That(t, batch.Position(i, wp)[d], test.ShouldBeLessThanOrEqualTo, opts.PosLimits[1])
				test.That(t, batch.Velocity(i, wp)[d], test.ShouldBeGreaterThanOrEqualTo, opts.VelLimits[0])
				test.That(t, batch.Velocity(i, wp)[d], test.ShouldBeLessThanOrEqualTo, opts.VelLimits[1])
			}
		}
	}
}

func TestOptimizeTerminationAndState(t *testing.T) {
	opts := testOptions(11)
	m := newTestPlanner(t, opts)

	batch, state, iters, err := m.Optimize(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, batch, test.ShouldNotBeNil)
	test.That(t, iters, test.ShouldBeGreaterThanOrEqualTo, opts.MinIterations)
	test.That(t, iters, test.ShouldBeLessThanOrEqualTo, opts.MaxIterations)
	test.That(t, state.Iterations, test.ShouldEqual, iters)
	test.That(t, state.Costs, test.ShouldHaveLength, iters)
	test.That(t, state.XHistory, test.ShouldHaveLength, iters)
	test.That(t, state.LinearConvergence, test.ShouldHaveLength, iters)
	for _, inner := range state.LinearConvergence {
		test.That(t, inner, test.ShouldHaveLength, len(opts.MultiGoalStates))
		for _, n := range inner {
			test.That(t, n, test.ShouldBeGreaterThanOrEqualTo, 1)
		}
	}
	if state.Status == StatusMaxIterationsReached {
		test.That(t, iters, test.ShouldEqual, opts.MaxIterations)
	}
}

func TestOptimizeImprovesSmoothness(t *testing.T) {
	opts := testOptions(11)
	m := newTestPlanner(t, opts)

	init, err := m.initializePopulations()
	test.That(t, err, test.ShouldBeNil)

	final, state, iters, err := m.Optimize(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state.Costs[iters-1], test.ShouldBeLessThan, state.Costs[0])

	start, goal := opts.StartState, opts.MultiGoalStates[0]
	test.That(t, lineDeviation(final, start, goal), test.ShouldBeLessThan, lineDeviation(init, start, goal))

	// past the warm-up iterations the landscape is obstacle-free and smooth:
	// neither the best nor the mean trajectory cost may regress beyond a small
	// numerical tolerance
	minCosts := make([]float64, iters)
	for k, snap := range state.XHistory {
		trajCosts, err := m.objective.Trajectories(snap)
		test.That(t, err, test.ShouldBeNil)
		best := math.Inf(1)
		for _, c := range trajCosts {
			best = math.Min(best, c)
		}
		minCosts[k] = best
	}
	const slack = 1.01
	for k := opts.MinIterations; k+1 < iters; k++ {
		test.That(t, minCosts[k+1], test.ShouldBeLessThanOrEqualTo, minCosts[k]*slack)
		test.That(t, state.Costs[k+1], test.ShouldBeLessThanOrEqualTo, state.Costs[k]*slack)
	}
}

func TestOptimizeBenchmarkScale(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping benchmark-scale optimization in short mode")
	}
	// the occupancy benchmark's population shape on an obstacle-free landscape
	opts := testOptions(21)
	opts.TrajLen = 64
	opts.NumParticlesPerGoal = 33
	opts.NumProbe = 5
	opts.MaxIterations = 30
	m := newTestPlanner(t, opts)

	init, err := m.initializePopulations()
	test.That(t, err, test.ShouldBeNil)

	final, state, iters, err := m.Optimize(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, iters, test.ShouldBeGreaterThanOrEqualTo, opts.MinIterations)
	test.That(t, state.Costs[iters-1], test.ShouldBeLessThan, state.Costs[0])

	start, goal := opts.StartState, opts.MultiGoalStates[0]
	test.That(t, lineDeviation(final, start, goal), test.ShouldBeLessThan, lineDeviation(init, start, goal))
	for i := 0; i < final.NumTrajs; i++ {
		for d := 0; d < 2*opts.Dim; d++ {
			test.That(t, final.State(i, 0)[d], test.ShouldEqual, start[d])
			test.That(t, final.State(i, opts.TrajLen-1)[d], test.ShouldEqual, goal[d])
		}
	}
}

func TestOptimizeKeepsEndpointsPinned(t *testing.T) {
	opts := testOptions(5)
	m := newTestPlanner(t, opts)

	batch, _, _, err := m.Optimize(context.Background())
	test.That(t, err, test.ShouldBeNil)

	goal := opts.MultiGoalStates[0]
	for i := 0; i < batch.NumTrajs; i++ {
		for d := 0; d < 2*opts.Dim; d++ {
			test.That(t, batch.State(i, 0)[d], test.ShouldEqual, opts.StartState[d])
			test.That(t, batch.State(i, opts.TrajLen-1)[d], test.ShouldEqual, goal[d])
		}
	}
}

func TestOptimizeFreeGoalKeepsStartPinned(t *testing.T) {
	opts := testOptions(5)
	opts.FixedGoal = false
	m := newTestPlanner(t, opts)

	batch, _, _, err := m.Optimize(context.Background())
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < batch.NumTrajs; i++ {
		for d := 0; d < 2*opts.Dim; d++ {
			test.That(t, batch.State(i, 0)[d], test.ShouldEqual, opts.StartState[d])
		}
	}
}

func TestTwoWaypointTrajectories(t *testing.T) {
	logger := golog.NewTestLogger(t)
	gp, err := costs.NewGPHolonomic(0.1, 0.1)
	test.That(t, err, test.ShouldBeNil)
	solver, err := ot.NewSinkhorn(1e-3, 1, 100, logger)
	test.That(t, err, test.ShouldBeNil)

	// a pinned goal leaves a 2-waypoint trajectory with nothing to update;
	// that must be rejected up front, never surface mid-iteration
	opts := testOptions(2)
	opts.TrajLen = 2
	_, err = New(opts, gp, solver, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrConfiguration), test.ShouldBeTrue)

	// with a free goal the terminal waypoint is updatable and the run is fine
	opts = testOptions(2)
	opts.TrajLen = 2
	opts.FixedGoal = false
	m, err := New(opts, gp, solver, logger)
	test.That(t, err, test.ShouldBeNil)
	batch, _, iters, err := m.Optimize(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, batch.Len, test.ShouldEqual, 2)
	test.That(t, iters, test.ShouldBeGreaterThanOrEqualTo, opts.MinIterations)
}

func TestOptimizeReproducible(t *testing.T) {
	a := newTestPlanner(t, testOptions(42))
	b := newTestPlanner(t, testOptions(42))

	batchA, stateA, itersA, err := a.Optimize(context.Background())
	test.That(t, err, test.ShouldBeNil)
	batchB, stateB, itersB, err := b.Optimize(context.Background())
	test.That(t, err, test.ShouldBeNil)

	test.That(t, itersA, test.ShouldEqual, itersB)
	test.That(t, stateA.Costs, test.ShouldResemble, stateB.Costs)
	test.That(t, mat.Equal(batchA.AsMatrix(), batchB.AsMatrix()), test.ShouldBeTrue)
}

func TestOptimizeCancellation(t *testing.T) {
	m := newTestPlanner(t, testOptions(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, iters, err := m.Optimize(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, iters, test.ShouldEqual, 0)
}

// nanObjective poisons candidate evaluation to exercise the numerical fault
// path.
type nanObjective struct{}

func (nanObjective) Trajectories(b *trajectory.Batch) ([]float64, error) {
	return make([]float64, b.NumTrajs), nil
}

func (nanObjective) Waypoints(b *trajectory.Batch, c *costs.Candidates) ([]float64, error) {
	out := make([]float64, c.NumRows())
	for i := range out {
		out[i] = math.NaN()
	}
	return out, nil
}

func TestOptimizeNumericalFault(t *testing.T) {
	logger := golog.NewTestLogger(t)
	solver, err := ot.NewSinkhorn(1e-3, 1, 100, logger)
	test.That(t, err, test.ShouldBeNil)
	m, err := New(testOptions(1), nanObjective{}, solver, logger)
	test.That(t, err, test.ShouldBeNil)

	_, _, _, err = m.Optimize(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrNumerical), test.ShouldBeTrue)
}
