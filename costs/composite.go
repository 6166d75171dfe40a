package costs

import (
	"github.com/pkg/errors"

	"github.com/enfisan/mpot/trajectory"
)

// Composite is a weighted sum of evaluators, typically a collision field plus
// a GP smoothness prior.
type Composite struct {
	evals   []Evaluator
	weights []float64
}

// NewComposite combines evaluators with per-evaluator weights.
func NewComposite(evals []Evaluator, weights []float64) (*Composite, error) {
	if len(evals) == 0 {
		return nil, errors.New("composite cost needs at least one evaluator")
	}
	if len(evals) != len(weights) {
		return nil, errors.Errorf("got %d evaluators but %d weights", len(evals), len(weights))
	}
	for i, w := range weights {
		if w < 0 {
			return nil, errors.Errorf("weight %d is negative: %v", i, w)
		}
	}
	return &Composite{evals: evals, weights: weights}, nil
}

// Trajectories returns the weighted sum of all member costs per trajectory.
func (cc *Composite) Trajectories(b *trajectory.Batch) ([]float64, error) {
	out := make([]float64, b.NumTrajs)
	for k, ev := range cc.evals {
		costs, err := ev.Trajectories(b)
		if err != nil {
			return nil, err
		}
		for i, v := range costs {
			out[i] += cc.weights[k] * v
		}
	}
	return out, nil
}

// Waypoints returns the weighted sum of all member costs per candidate.
func (cc *Composite) Waypoints(b *trajectory.Batch, c *Candidates) ([]float64, error) {
	out := make([]float64, c.NumRows())
	for k, ev := range cc.evals {
		costs, err := ev.Waypoints(b, c)
		if err != nil {
			return nil, err
		}
		for i, v := range costs {
			out[i] += cc.weights[k] * v
		}
	}
	return out, nil
}
