package planner

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/enfisan/mpot/trajectory"
	"github.com/enfisan/mpot/utils"
)

// initializePopulations samples NumParticlesPerGoal trajectories per goal as
// Gaussian perturbations of the constant-velocity interpolation from the start
// state to that goal. Noise follows a bridge profile: pinned endpoints, widest
// at the midpoint. Velocities are recomputed by central differences so the
// initial particles stay dynamically consistent.
func (m *MPOT) initializePopulations() (*trajectory.Batch, error) {
	o := m.opts
	numGoals := len(o.MultiGoalStates)
	batch, err := trajectory.NewBatch(numGoals*o.NumParticlesPerGoal, o.TrajLen, o.Dim)
	if err != nil {
		return nil, err
	}

	// The RNG is planner-local: two planners with the same seed produce
	// identical populations regardless of what else runs in the process.
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(o.Seed)}

	span := float64(o.TrajLen - 1)
	for g, goal := range o.MultiGoalStates {
		for p := 0; p < o.NumParticlesPerGoal; p++ {
			i := g*o.NumParticlesPerGoal + p
			for t := 0; t < o.TrajLen; t++ {
				w := float64(t) / span
				sigma := o.SigmaStartInit*(1-w) + o.SigmaGoalInit*w +
					o.SigmaGPInit*2*math.Sqrt(w*(1-w))
				pos := batch.Position(i, t)
				for d := 0; d < o.Dim; d++ {
					pos[d] = o.StartState[d]*(1-w) + goal[d]*w
					switch {
					case t == 0:
						// start waypoint is shared and exact
					case t == o.TrajLen-1 && o.FixedGoal:
						// pinned to the goal
					default:
						pos[d] = utils.Clamp(pos[d]+sigma*noise.Rand(), o.PosLimits[0], o.PosLimits[1])
					}
				}
			}
			m.recomputeVelocities(batch, i, goal)
		}
	}
	return batch, nil
}

// recomputeVelocities fills trajectory i's velocities from central differences
// of its positions; endpoints take the configured start/goal velocities.
func (m *MPOT) recomputeVelocities(batch *trajectory.Batch, i int, goal []float64) {
	o := m.opts
	for t := 0; t < o.TrajLen; t++ {
		vel := batch.Velocity(i, t)
		for d := 0; d < o.Dim; d++ {
			switch t {
			case 0:
				vel[d] = o.StartState[o.Dim+d]
			case o.TrajLen - 1:
				vel[d] = goal[o.Dim+d]
			default:
				prev := batch.Position(i, t-1)[d]
				next := batch.Position(i, t+1)[d]
				vel[d] = utils.Clamp((next-prev)/(2*o.Dt), o.VelLimits[0], o.VelLimits[1])
			}
		}
	}
}
