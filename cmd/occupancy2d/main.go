// Command occupancy2d runs the batched OT trajectory optimizer on the planar
// occupancy benchmark: one start, three goals, 33 particles per goal.
package main

import (
	"context"
	"time"

	"github.com/edaniels/golog"

	"github.com/enfisan/mpot/costs"
	"github.com/enfisan/mpot/envs"
	"github.com/enfisan/mpot/ot"
	"github.com/enfisan/mpot/planner"
	"github.com/enfisan/mpot/trajectory"
)

const (
	trajLen   = 64
	dt        = 0.1
	numGoals  = 3
	particles = 33

	wColl   = 5e-3
	wSmooth = 1e-7
	sigmaGP = 0.1
)

func main() {
	logger := golog.NewDevelopmentLogger("occupancy2d")

	env := envs.GridOccupancy2D()
	collision, err := costs.NewField(env, 1.0)
	if err != nil {
		logger.Fatal(err)
	}
	smoothness, err := costs.NewGPHolonomic(dt, sigmaGP)
	if err != nil {
		logger.Fatal(err)
	}
	objective, err := costs.NewComposite(
		[]costs.Evaluator{collision, smoothness},
		[]float64{wColl, wSmooth},
	)
	if err != nil {
		logger.Fatal(err)
	}

	solver, err := ot.NewSinkhorn(1e-6, 1, 100, logger)
	if err != nil {
		logger.Fatal(err)
	}

	opts := planner.NewBasicPlannerOptions()
	opts.Dim = 2
	opts.TrajLen = trajLen
	opts.NumParticlesPerGoal = particles
	opts.Dt = dt
	opts.StartState = []float64{-9, -9, 0, 0}
	opts.MultiGoalStates = [][]float64{
		{0, 9, 0, 0},
		{9, 9, 0, 0},
		{9, 0, 0, 0},
	}
	opts.PosLimits = [2]float64{-10, 10}
	opts.VelLimits = [2]float64{-10, 10}
	opts.Seed = uint64(time.Now().UnixNano())
	opts.StoreHistory = true

	mp, err := planner.New(opts, objective, solver, logger)
	if err != nil {
		logger.Fatal(err)
	}

	start := time.Now()
	trajs, state, iters, err := mp.Optimize(context.Background())
	if err != nil {
		logger.Fatal(err)
	}
	elapsed := time.Since(start)

	// Collision-free rate over densified trajectories, the "parallelization
	// quality" statistic of the benchmark.
	dense := trajectory.Interpolate(trajs, 3)
	free := 0
	for i := 0; i < dense.NumTrajs; i++ {
		hit := false
		for t := 0; t < dense.Len; t++ {
			if env.Collides(dense.Position(i, t)) {
				hit = true
				break
			}
		}
		if !hit {
			free++
		}
	}

	minIt, maxIt, total, count := 0, 0, 0, 0
	for _, perGoal := range state.LinearConvergence {
		for _, it := range perGoal {
			if count == 0 || it < minIt {
				minIt = it
			}
			if it > maxIt {
				maxIt = it
			}
			total += it
			count++
		}
	}

	logger.Infof("optimization finished after %d iterations; collision-free rate %.2f%%",
		iters, 100*float64(free)/float64(dense.NumTrajs))
	logger.Infof("time optimizing: %v", elapsed)
	logger.Infof("sinkhorn iterations: mean %.2f, min %d, max %d",
		float64(total)/float64(count), minIt, maxIt)
}
