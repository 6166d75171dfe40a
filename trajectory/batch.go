// Package trajectory provides batch containers for particle trajectories with
// explicit axis semantics, plus interpolation helpers for consumers of
// planning results.
package trajectory

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Batch holds NumTrajs trajectories of Len waypoints each. A waypoint is a
// state vector of 2*Dim values laid out as positions followed by velocities.
// The backing store is flat with axes [traj][waypoint][state]; batches are
// replaced between planner iterations, never mutated once published.
type Batch struct {
	NumTrajs int
	Len      int
	Dim      int

	data []float64
}

// NewBatch allocates a zeroed batch.
func NewBatch(numTrajs, trajLen, dim int) (*Batch, error) {
	if numTrajs < 1 || trajLen < 1 || dim < 1 {
		return nil, errors.Errorf("invalid batch shape (%d, %d, %d)", numTrajs, trajLen, dim)
	}
	return &Batch{
		NumTrajs: numTrajs,
		Len:      trajLen,
		Dim:      dim,
		data:     make([]float64, numTrajs*trajLen*2*dim),
	}, nil
}

// StateDim returns the per-waypoint state vector length (positions plus velocities).
func (b *Batch) StateDim() int {
	return 2 * b.Dim
}

// State returns a mutable view of the state vector at waypoint t of trajectory i.
func (b *Batch) State(i, t int) []float64 {
	sd := b.StateDim()
	off := (i*b.Len + t) * sd
	return b.data[off : off+sd : off+sd]
}

// Position returns a view of the position block of the state at (i, t).
func (b *Batch) Position(i, t int) []float64 {
	return b.State(i, t)[:b.Dim]
}

// Velocity returns a view of the velocity block of the state at (i, t).
func (b *Batch) Velocity(i, t int) []float64 {
	return b.State(i, t)[b.Dim:]
}

// SetState copies state into waypoint t of trajectory i.
func (b *Batch) SetState(i, t int, state []float64) {
	copy(b.State(i, t), state)
}

// Clone returns a deep copy of the batch.
func (b *Batch) Clone() *Batch {
	out := &Batch{NumTrajs: b.NumTrajs, Len: b.Len, Dim: b.Dim, data: make([]float64, len(b.data))}
	copy(out.data, b.data)
	return out
}

// AsMatrix returns a (NumTrajs*Len x StateDim) gonum view sharing the batch's
// backing store, one row per waypoint state in trajectory-major order.
func (b *Batch) AsMatrix() *mat.Dense {
	return mat.NewDense(b.NumTrajs*b.Len, b.StateDim(), b.data)
}

// Positions returns the position components of every waypoint as a
// (NumTrajs*Len x Dim) matrix. This is the state-to-position projection used
// by external consumers such as collision checks over results.
func (b *Batch) Positions() *mat.Dense {
	out := mat.NewDense(b.NumTrajs*b.Len, b.Dim, nil)
	row := 0
	for i := 0; i < b.NumTrajs; i++ {
		for t := 0; t < b.Len; t++ {
			out.SetRow(row, b.Position(i, t))
			row++
		}
	}
	return out
}

// Slice returns a view batch over trajectories [from, to). The backing store
// is shared with the parent.
func (b *Batch) Slice(from, to int) (*Batch, error) {
	if from < 0 || to > b.NumTrajs || from >= to {
		return nil, errors.Errorf("invalid trajectory slice [%d, %d) of %d", from, to, b.NumTrajs)
	}
	sd := b.StateDim()
	return &Batch{
		NumTrajs: to - from,
		Len:      b.Len,
		Dim:      b.Dim,
		data:     b.data[from*b.Len*sd : to*b.Len*sd],
	}, nil
}
