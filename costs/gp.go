package costs

import (
	"github.com/pkg/errors"

	"github.com/enfisan/mpot/trajectory"
)

// GPHolonomic penalizes deviation from constant-velocity transitions between
// consecutive waypoints: the squared residual of x_{t+1} against the
// integrated prediction of x_t, scaled by 1/sigma^2.
type GPHolonomic struct {
	dt    float64
	sigma float64
}

// NewGPHolonomic builds the smoothness cost for a waypoint spacing of dt
// seconds and GP noise scale sigma.
func NewGPHolonomic(dt, sigma float64) (*GPHolonomic, error) {
	if dt <= 0 {
		return nil, errors.Errorf("gp dt must be positive, got %v", dt)
	}
	if sigma <= 0 {
		return nil, errors.Errorf("gp sigma must be positive, got %v", sigma)
	}
	return &GPHolonomic{dt: dt, sigma: sigma}, nil
}

// transitionResidual is the squared error between to and the constant-velocity
// propagation of from over dt.
func (g *GPHolonomic) transitionResidual(from, to []float64, dim int) float64 {
	res := 0.0
	for d := 0; d < dim; d++ {
		ePos := to[d] - (from[d] + g.dt*from[dim+d])
		eVel := to[dim+d] - from[dim+d]
		res += ePos*ePos + eVel*eVel
	}
	return res
}

// Trajectories sums transition residuals along each trajectory.
func (g *GPHolonomic) Trajectories(b *trajectory.Batch) ([]float64, error) {
	invVar := 1 / (g.sigma * g.sigma)
	out := make([]float64, b.NumTrajs)
	for i := 0; i < b.NumTrajs; i++ {
		total := 0.0
		for t := 0; t < b.Len-1; t++ {
			total += g.transitionResidual(b.State(i, t), b.State(i, t+1), b.Dim)
		}
		out[i] = total * invVar
	}
	return out, nil
}

// Waypoints scores each candidate by the residuals of the two transitions it
// participates in, taking its neighbors from the current trajectories.
func (g *GPHolonomic) Waypoints(b *trajectory.Batch, c *Candidates) ([]float64, error) {
	invVar := 1 / (g.sigma * g.sigma)
	out := make([]float64, c.NumRows())
	for r := range out {
		i, t, _ := c.Split(r)
		state := c.State(r)
		total := 0.0
		if t > 0 {
			total += g.transitionResidual(b.State(i, t-1), state, b.Dim)
		}
		if t < b.Len-1 {
			total += g.transitionResidual(state, b.State(i, t+1), b.Dim)
		}
		out[r] = total * invVar
	}
	return out, nil
}
