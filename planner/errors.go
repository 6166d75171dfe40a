package planner

import "github.com/pkg/errors"

var (
	// ErrConfiguration wraps every validation fault raised while setting a
	// planner up.
	ErrConfiguration = errors.New("invalid planner configuration")

	// ErrNumerical wraps numerical failures (non-finite costs, degenerate
	// transport marginals) raised during optimization. These indicate a
	// modeling or parameter problem and abort the whole Optimize call; a
	// batched update cannot partially fail without corrupting history.
	ErrNumerical = errors.New("numerical failure during optimization")
)
