package planner

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/enfisan/mpot/costs"
	"github.com/enfisan/mpot/ot"
	"github.com/enfisan/mpot/trajectory"
	"github.com/enfisan/mpot/utils"
)

// stepResult is the outcome of one structured-sampling update: the replacement
// batch and the inner Sinkhorn iteration count per goal population.
type stepResult struct {
	next       *trajectory.Batch
	innerIters []int
}

// step runs one structured-sampling update over every updatable waypoint of
// every particle. k is the zero-based outer iteration, used to anneal the
// step and probe radii.
func (m *MPOT) step(ctx context.Context, batch *trajectory.Batch, k int) (*stepResult, error) {
	o := m.opts
	anneal := 1 / math.Pow(float64(k+1), o.Epsilon)
	stepRadius := o.StepRadius * anneal
	probeRadius := o.ProbeRadius * anneal

	// Waypoint 0 is the shared start and never moves; the terminal waypoint
	// moves only when the goal is not fixed.
	firstWp := 1
	lastWp := batch.Len // exclusive
	if o.FixedGoal {
		lastWp--
	}
	numWp := lastWp - firstWp

	cands, err := m.buildCandidates(batch, firstWp, numWp, probeRadius)
	if err != nil {
		return nil, err
	}
	candCosts, err := m.objective.Waypoints(batch, cands)
	if err != nil {
		return nil, errors.Wrapf(ErrNumerical, "candidate cost evaluation: %s", err)
	}
	for r, c := range candCosts {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			i, t, _ := cands.Split(r)
			return nil, errors.Wrapf(ErrNumerical, "non-finite candidate cost at trajectory %d waypoint %d", i, t)
		}
	}

	numGoals := len(o.MultiGoalStates)
	result := &stepResult{
		next:       batch.Clone(),
		innerIters: make([]int, numGoals),
	}
	// Populations for distinct goals are independent; their transport solves
	// can run in any order or in parallel.
	err = utils.GroupWorkParallel(ctx, numGoals, func(from, to int) error {
		for g := from; g < to; g++ {
			iters, err := m.updatePopulation(g, batch, result.next, cands, candCosts, stepRadius, firstWp, numWp)
			if err != nil {
				return err
			}
			result.innerIters[g] = iters
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// buildCandidates lays out, for every updatable waypoint state, the stay
// option (candidate 0) followed by NumProbe probe points along each polytope
// direction at radii linspace(probeRadius/NumProbe, probeRadius).
func (m *MPOT) buildCandidates(
	batch *trajectory.Batch,
	firstWp, numWp int,
	probeRadius float64,
) (*costs.Candidates, error) {
	o := m.opts
	nv, stateDim := m.vertices.Dims()
	perWaypoint := 1 + nv*o.NumProbe
	cands, err := costs.NewCandidates(batch.NumTrajs, firstWp, numWp, perWaypoint, batch.Dim)
	if err != nil {
		return nil, err
	}
	radii := utils.Linspace(probeRadius/float64(o.NumProbe), probeRadius, o.NumProbe)

	for i := 0; i < batch.NumTrajs; i++ {
		for t := firstWp; t < firstWp+numWp; t++ {
			base := batch.State(i, t)
			copy(cands.State(cands.Index(i, t, 0)), base)
			for j := 0; j < nv; j++ {
				for q := 0; q < o.NumProbe; q++ {
					probe := cands.State(cands.Index(i, t, 1+j*o.NumProbe+q))
					for d := 0; d < stateDim; d++ {
						probe[d] = base[d] + radii[q]*m.vertices.At(j, d)
					}
					m.clampState(probe)
				}
			}
		}
	}
	return cands, nil
}

// updatePopulation solves one entropic transport problem for goal population g
// and writes the coupling-weighted next states into next.
func (m *MPOT) updatePopulation(
	g int,
	batch, next *trajectory.Batch,
	cands *costs.Candidates,
	candCosts []float64,
	stepRadius float64,
	firstWp, numWp int,
) (int, error) {
	o := m.opts
	nv, stateDim := m.vertices.Dims()
	numStates := o.NumParticlesPerGoal * numWp

	// Cost matrix: one row per (particle, waypoint) state of this population,
	// one column per move option. Column 0 is the stay option at the state's
	// own cost; column 1+j is the mean cost over vertex j's probes.
	costMat := mat.NewDense(numStates, nv+1, nil)
	for p := 0; p < o.NumParticlesPerGoal; p++ {
		i := g*o.NumParticlesPerGoal + p
		for wt := 0; wt < numWp; wt++ {
			t := firstWp + wt
			row := p*numWp + wt
			costMat.Set(row, 0, candCosts[cands.Index(i, t, 0)])
			for j := 0; j < nv; j++ {
				total := 0.0
				for q := 0; q < o.NumProbe; q++ {
					total += candCosts[cands.Index(i, t, 1+j*o.NumProbe+q)]
				}
				costMat.Set(row, 1+j, total/float64(o.NumProbe))
			}
		}
	}
	normalizeCostMatrix(costMat)

	prob, err := ot.NewLinearProblem(costMat, ot.UniformMarginal(numStates), ot.UniformMarginal(nv+1), o.EntEpsilon)
	if err != nil {
		return 0, errors.Wrapf(ErrNumerical, "transport problem for goal %d: %s", g, err)
	}
	coupling, err := m.solver.Solve(prob)
	if err != nil {
		return 0, errors.Wrapf(ErrNumerical, "transport solve for goal %d: %s", g, err)
	}

	// Next state: expectation of the move options under the row-normalized
	// coupling. The stay column contributes no displacement, so a state whose
	// mass stays put does not move.
	newState := make([]float64, stateDim)
	for p := 0; p < o.NumParticlesPerGoal; p++ {
		i := g*o.NumParticlesPerGoal + p
		for wt := 0; wt < numWp; wt++ {
			t := firstWp + wt
			row := p*numWp + wt
			rowSum := 0.0
			for j := 0; j <= nv; j++ {
				rowSum += coupling.P.At(row, j)
			}
			if rowSum <= 0 {
				// zero-mass row; the state keeps its current value
				continue
			}
			copy(newState, batch.State(i, t))
			for j := 0; j < nv; j++ {
				w := coupling.P.At(row, 1+j) / rowSum
				for d := 0; d < stateDim; d++ {
					newState[d] += w * stepRadius * m.vertices.At(j, d)
				}
			}
			m.clampState(newState)
			next.SetState(i, t, newState)
		}
	}
	return coupling.Iterations, nil
}

// normalizeCostMatrix rescales costs to [0, 1] so the entropic regularizer
// acts on a consistent scale regardless of cost-field magnitudes.
func normalizeCostMatrix(c *mat.Dense) {
	lo, hi := mat.Min(c), mat.Max(c)
	spread := hi - lo
	if spread <= 0 {
		c.Zero()
		return
	}
	rows, cols := c.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			c.Set(i, j, (c.At(i, j)-lo)/spread)
		}
	}
}

// clampState limits positions and velocities in place.
func (m *MPOT) clampState(state []float64) {
	o := m.opts
	for d := 0; d < o.Dim; d++ {
		state[d] = utils.Clamp(state[d], o.PosLimits[0], o.PosLimits[1])
		state[o.Dim+d] = utils.Clamp(state[o.Dim+d], o.VelLimits[0], o.VelLimits[1])
	}
}
