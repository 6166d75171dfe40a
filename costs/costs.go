// Package costs defines the cost-evaluator contract consumed by the planner
// and the concrete collision, smoothness, and composite costs from the
// original planning setup.
package costs

import (
	"github.com/pkg/errors"

	"github.com/enfisan/mpot/trajectory"
)

// ScalarField maps a position to a scalar obstacle cost. Implementations must
// be stateless with respect to callers and safe for concurrent reads.
type ScalarField interface {
	Value(pos []float64) float64
}

// Evaluator scores batches of trajectories and batches of waypoint candidates.
// Both operations are pure with respect to their inputs.
type Evaluator interface {
	// Trajectories returns one scalar cost per trajectory in the batch.
	Trajectories(b *trajectory.Batch) ([]float64, error)
	// Waypoints returns one cost per candidate row, scoring each candidate
	// state as a replacement for its waypoint within its current trajectory.
	Waypoints(b *trajectory.Batch, c *Candidates) ([]float64, error)
}

// Candidates is a batch of replacement states for a contiguous waypoint range
// of every trajectory in a batch. The backing store is flat with axes
// [traj][waypoint-First][candidate][state]; the flat row order of Index is the
// order of the cost slices returned by Evaluator.Waypoints.
type Candidates struct {
	NumTrajs     int
	First        int // first waypoint index covered
	NumWaypoints int // number of consecutive waypoints covered
	PerWaypoint  int // candidates per waypoint
	Dim          int // spatial dimension; states are 2*Dim wide

	data []float64
}

// NewCandidates allocates a zeroed candidate batch.
func NewCandidates(numTrajs, first, numWaypoints, perWaypoint, dim int) (*Candidates, error) {
	if numTrajs < 1 || first < 0 || numWaypoints < 1 || perWaypoint < 1 || dim < 1 {
		return nil, errors.Errorf("invalid candidate shape (%d, %d, %d, %d, %d)",
			numTrajs, first, numWaypoints, perWaypoint, dim)
	}
	return &Candidates{
		NumTrajs:     numTrajs,
		First:        first,
		NumWaypoints: numWaypoints,
		PerWaypoint:  perWaypoint,
		Dim:          dim,
		data:         make([]float64, numTrajs*numWaypoints*perWaypoint*2*dim),
	}, nil
}

// NumRows returns the total number of candidate states.
func (c *Candidates) NumRows() int {
	return c.NumTrajs * c.NumWaypoints * c.PerWaypoint
}

// Index returns the flat row index of candidate k for waypoint t (absolute
// index) of trajectory i.
func (c *Candidates) Index(i, t, k int) int {
	return (i*c.NumWaypoints+(t-c.First))*c.PerWaypoint + k
}

// State returns a mutable view of candidate row r.
func (c *Candidates) State(r int) []float64 {
	sd := 2 * c.Dim
	off := r * sd
	return c.data[off : off+sd : off+sd]
}

// Split decomposes a flat row index into (traj, waypoint, candidate).
func (c *Candidates) Split(r int) (i, t, k int) {
	k = r % c.PerWaypoint
	r /= c.PerWaypoint
	t = c.First + r%c.NumWaypoints
	i = r / c.NumWaypoints
	return
}
