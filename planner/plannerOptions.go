package planner

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/enfisan/mpot/ot"
	"github.com/enfisan/mpot/polytope"
)

// default values for planning options.
const (
	// Distance moved along the chosen probe direction per update.
	defaultStepRadius = 0.15

	// Extent of the cost landscape probed beyond the step; must be at least
	// the step radius.
	defaultProbeRadius = 0.15

	// Probe points sampled along each polytope direction.
	defaultNumProbe = 5

	// Annealing rate of the step/probe radii across outer iterations.
	defaultEpsilon = 0.01

	// Entropic regularizer for the local transport solves.
	defaultEntEpsilon = 1e-2

	// Iterations that must run before early stopping is considered.
	defaultMinIterations = 5

	// Hard cap on outer iterations.
	defaultMaxIterations = 100

	// Relative mean-cost change below which the run is considered converged.
	defaultThreshold = 2e-3

	// Initial particle noise scales at the start waypoint, the goal waypoint,
	// and along the trajectory interior.
	defaultSigmaStartInit = 1e-3
	defaultSigmaGoalInit  = 1e-3
	defaultSigmaGPInit    = 1.6
)

// PlannerOptions configures an MPOT planner. Options are validated eagerly at
// construction and immutable afterwards.
type PlannerOptions struct {
	// Dim is the spatial dimension; states are 2*Dim wide (positions then
	// velocities).
	Dim int `json:"dim"`

	// TrajLen is the number of waypoints per trajectory.
	TrajLen int `json:"traj_len"`

	// NumParticlesPerGoal is the population size maintained for each goal.
	NumParticlesPerGoal int `json:"num_particles_per_goal"`

	// Dt is the time between consecutive waypoints in seconds.
	Dt float64 `json:"dt"`

	// StartState is the shared initial state, length 2*Dim.
	StartState []float64 `json:"start_state"`

	// MultiGoalStates holds one goal state per population, each length 2*Dim.
	MultiGoalStates [][]float64 `json:"multi_goal_states"`

	// PosLimits and VelLimits bound every position and velocity component.
	PosLimits [2]float64 `json:"pos_limits"`
	VelLimits [2]float64 `json:"vel_limits"`

	// Polytope selects the probe direction set.
	Polytope polytope.Kind `json:"polytope"`

	// FixedGoal pins each particle's terminal waypoint to its goal for the
	// whole run.
	FixedGoal bool `json:"fixed_goal"`

	// Initialization noise scales; see the defaults above.
	SigmaStartInit float64 `json:"sigma_start_init"`
	SigmaGoalInit  float64 `json:"sigma_goal_init"`
	SigmaGPInit    float64 `json:"sigma_gp_init"`

	// Seed makes particle initialization reproducible.
	Seed uint64 `json:"seed"`

	// Epsilon anneals the step/probe radii as r/(1+k)^epsilon over outer
	// iterations k.
	Epsilon float64 `json:"epsilon"`

	// EntEpsilon schedules the entropic regularizer of the transport solves.
	EntEpsilon *ot.Epsilon `json:"ent_epsilon"`

	// StepRadius and ProbeRadius scale moves and probes; ProbeRadius must be
	// at least StepRadius.
	StepRadius  float64 `json:"step_radius"`
	ProbeRadius float64 `json:"probe_radius"`

	// NumProbe is the number of probe points per polytope direction.
	NumProbe int `json:"num_probe"`

	// MinIterations and MaxIterations bound the outer loop; Threshold is the
	// relative cost-change convergence tolerance.
	MinIterations int     `json:"min_iterations"`
	MaxIterations int     `json:"max_iterations"`
	Threshold     float64 `json:"threshold"`

	// StoreHistory enables per-iteration trajectory snapshots in the
	// optimization state.
	StoreHistory bool `json:"store_history"`
}

// NewBasicPlannerOptions returns options with problem-shape fields zeroed and
// every tuning knob at its default.
func NewBasicPlannerOptions() *PlannerOptions {
	return &PlannerOptions{
		StepRadius:     defaultStepRadius,
		ProbeRadius:    defaultProbeRadius,
		NumProbe:       defaultNumProbe,
		Epsilon:        defaultEpsilon,
		EntEpsilon:     ot.NewEpsilon(defaultEntEpsilon),
		MinIterations:  defaultMinIterations,
		MaxIterations:  defaultMaxIterations,
		Threshold:      defaultThreshold,
		SigmaStartInit: defaultSigmaStartInit,
		SigmaGoalInit:  defaultSigmaGoalInit,
		SigmaGPInit:    defaultSigmaGPInit,
		Polytope:       polytope.Cube,
		FixedGoal:      true,
	}
}

// Validate reports every configuration fault at once, wrapped in
// ErrConfiguration.
func (o *PlannerOptions) Validate() error {
	var faults error
	addFault := func(format string, args ...interface{}) {
		faults = multierr.Combine(faults, errors.Errorf(format, args...))
	}

	if o.Dim < 1 {
		addFault("dim must be positive, got %d", o.Dim)
	}
	if o.TrajLen < 2 {
		addFault("traj_len must be at least 2, got %d", o.TrajLen)
	}
	// with a pinned start and a pinned goal, a 2-waypoint trajectory has
	// nothing left to optimize
	if o.FixedGoal && o.TrajLen < 3 {
		addFault("traj_len must be at least 3 when fixed_goal is set, got %d", o.TrajLen)
	}
	if o.NumParticlesPerGoal < 1 {
		addFault("num_particles_per_goal must be positive, got %d", o.NumParticlesPerGoal)
	}
	if o.Dt <= 0 {
		addFault("dt must be positive, got %v", o.Dt)
	}
	stateDim := 2 * o.Dim
	if o.Dim >= 1 && len(o.StartState) != stateDim {
		addFault("start_state has length %d, want %d", len(o.StartState), stateDim)
	}
	if len(o.MultiGoalStates) == 0 {
		addFault("at least one goal state is required")
	}
	for g, goal := range o.MultiGoalStates {
		if o.Dim >= 1 && len(goal) != stateDim {
			addFault("goal state %d has length %d, want %d", g, len(goal), stateDim)
		}
	}
	if o.PosLimits[0] >= o.PosLimits[1] {
		addFault("pos_limits %v are not an interval", o.PosLimits)
	}
	if o.VelLimits[0] >= o.VelLimits[1] {
		addFault("vel_limits %v are not an interval", o.VelLimits)
	}
	if o.StepRadius <= 0 {
		addFault("step_radius must be positive, got %v", o.StepRadius)
	}
	if o.ProbeRadius < o.StepRadius {
		addFault("probe_radius %v is smaller than step_radius %v", o.ProbeRadius, o.StepRadius)
	}
	if o.NumProbe < 1 {
		addFault("num_probe must be positive, got %d", o.NumProbe)
	}
	if o.Epsilon < 0 || math.IsNaN(o.Epsilon) {
		addFault("epsilon must be nonnegative, got %v", o.Epsilon)
	}
	if o.EntEpsilon == nil || o.EntEpsilon.Target <= 0 {
		addFault("ent_epsilon must have a positive target regularizer")
	}
	if o.MinIterations < 1 {
		addFault("min_iterations must be positive, got %d", o.MinIterations)
	}
	if o.MaxIterations < o.MinIterations {
		addFault("max_iterations %d is smaller than min_iterations %d", o.MaxIterations, o.MinIterations)
	}
	if o.Threshold <= 0 {
		addFault("threshold must be positive, got %v", o.Threshold)
	}
	for _, sigma := range []struct {
		name string
		v    float64
	}{
		{"sigma_start_init", o.SigmaStartInit},
		{"sigma_goal_init", o.SigmaGoalInit},
		{"sigma_gp_init", o.SigmaGPInit},
	} {
		if sigma.v < 0 || math.IsNaN(sigma.v) {
			addFault("%s must be nonnegative, got %v", sigma.name, sigma.v)
		}
	}

	if faults != nil {
		return errors.Wrap(ErrConfiguration, faults.Error())
	}
	return nil
}
