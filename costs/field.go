package costs

import (
	"context"

	"github.com/pkg/errors"

	"github.com/enfisan/mpot/trajectory"
	"github.com/enfisan/mpot/utils"
)

// Field scores states by an obstacle cost field evaluated at their positions.
type Field struct {
	field ScalarField
	sigma float64
}

// NewField wraps a cost field. sigma scales the field values into costs.
func NewField(field ScalarField, sigma float64) (*Field, error) {
	if field == nil {
		return nil, errors.New("nil cost field")
	}
	if sigma <= 0 {
		return nil, errors.Errorf("field sigma must be positive, got %v", sigma)
	}
	return &Field{field: field, sigma: sigma}, nil
}

// Trajectories sums the field cost along each trajectory's positions.
func (f *Field) Trajectories(b *trajectory.Batch) ([]float64, error) {
	out := make([]float64, b.NumTrajs)
	err := utils.GroupWorkParallel(context.Background(), b.NumTrajs, func(from, to int) error {
		for i := from; i < to; i++ {
			total := 0.0
			for t := 0; t < b.Len; t++ {
				total += f.field.Value(b.Position(i, t))
			}
			out[i] = total / f.sigma
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Waypoints scores every candidate at its own position; the surrounding
// trajectory does not matter for a pointwise field.
func (f *Field) Waypoints(_ *trajectory.Batch, c *Candidates) ([]float64, error) {
	out := make([]float64, c.NumRows())
	err := utils.GroupWorkParallel(context.Background(), c.NumRows(), func(from, to int) error {
		for r := from; r < to; r++ {
			out[r] = f.field.Value(c.State(r)[:c.Dim]) / f.sigma
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
