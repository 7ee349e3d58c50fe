package verb_traj

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/motionplan"
	"go.viam.com/rdk/motionplan/ik"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
)

const defaultIKTimeout = 500 * time.Millisecond

// ModelIKSolver runs rdk's gradient-descent IK over an arm's kinematic model.
// The first attempt starts from the seed and later attempts restart from
// random configurations, so one call returns several solutions for a pose.
// Poses are taken relative to the arm base.
type ModelIKSolver struct {
	Models       map[Side]referenceframe.Frame
	Solver       ik.Solver
	Timeout      time.Duration
	MaxSolutions int
	// Fallback answers for arms without a model and when the solver errors.
	Fallback IKSolver
	Logger   logging.Logger
}

// NewModelIKSolver builds a solver running threads nlopt solvers in parallel.
func NewModelIKSolver(
	models map[Side]referenceframe.Frame,
	threads int,
	timeout time.Duration,
	maxSolutions int,
	fallback IKSolver,
	logger logging.Logger,
) (*ModelIKSolver, error) {
	solver, err := ik.CreateCombinedIKSolver(logger, threads, 0)
	if err != nil {
		return nil, fmt.Errorf("create ik solver: %w", err)
	}
	return &ModelIKSolver{
		Models:       models,
		Solver:       solver,
		Timeout:      timeout,
		MaxSolutions: maxSolutions,
		Fallback:     fallback,
		Logger:       logger,
	}, nil
}

func (m *ModelIKSolver) Solutions(ctx context.Context, side Side, pose spatialmath.Pose, seed []float64) ([][]float64, error) {
	model, ok := m.Models[side]
	if !ok || model == nil || m.Solver == nil {
		return m.fallback(ctx, side, pose, seed, fmt.Errorf("no kinematics for %s arm", side))
	}

	limits := model.DoF()
	if len(seed) != len(limits) {
		seed = make([]float64, len(limits))
	}

	timeout := m.Timeout
	if timeout <= 0 {
		timeout = defaultIKTimeout
	}
	solveCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cost := ik.NewMetricMinFunc(motionplan.NewSquaredNormMetric(pose), model, m.Logger)
	found, _, err := ik.DoSolve(solveCtx, m.Solver, cost, [][]float64{seed}, [][]referenceframe.Limit{limits})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return m.fallback(ctx, side, pose, seed, err)
	}

	var sols [][]float64
	for _, sol := range found {
		sols = appendUnique(sols, sol)
	}
	sort.SliceStable(sols, func(i, j int) bool {
		return jointDistance(seed, sols[i]) < jointDistance(seed, sols[j])
	})
	if m.MaxSolutions > 0 && len(sols) > m.MaxSolutions {
		sols = sols[:m.MaxSolutions]
	}
	return sols, nil
}

func (m *ModelIKSolver) fallback(ctx context.Context, side Side, pose spatialmath.Pose, seed []float64, cause error) ([][]float64, error) {
	if m.Fallback == nil {
		// the solver reports unreachable goals as errors
		m.Logger.Debugf("no ik solution for %s arm: %v", side, cause)
		return nil, nil
	}
	m.Logger.Debugf("%s arm falling back to motion planning: %v", side, cause)
	return m.Fallback.Solutions(ctx, side, pose, seed)
}
