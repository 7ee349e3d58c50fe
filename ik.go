package verb_traj

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"go.viam.com/rdk/spatialmath"
)

const (
	StrategyDefault     = "default"
	StrategyGraphSearch = "graph_search"
	StrategyOpt         = "opt"
)

// IKSolver finds joint configurations that place the gripper of an arm at a pose.
type IKSolver interface {
	// Solutions returns feasible configurations for pose, searched from seed.
	// No solutions and a nil error means the pose is unreachable.
	Solutions(ctx context.Context, side Side, pose spatialmath.Pose, seed []float64) ([][]float64, error)
}

// CollisionChecker reports whether an arm configuration hits the environment.
type CollisionChecker interface {
	InCollision(ctx context.Context, side Side, joints []float64) (bool, error)
}

// IKStrategy turns a sequence of gripper poses into a joint trajectory. An
// empty result means IK failed.
type IKStrategy interface {
	Name() string
	Solve(ctx context.Context, rc *RobotContext, side Side, poses []Pose) ([][]float64, error)
}

// StrategyNames lists the strategies StrategyByName knows.
var StrategyNames = []string{StrategyDefault, StrategyGraphSearch, StrategyOpt}

// StrategyByName returns the strategy registered under name.
func StrategyByName(name string) (IKStrategy, error) {
	switch name {
	case "", StrategyDefault:
		return &DirectIK{}, nil
	case StrategyGraphSearch:
		return &GraphSearchIK{CollisionCost: 100}, nil
	case StrategyOpt:
		return &RemoteOptIK{Stride: 5}, nil
	default:
		return nil, fmt.Errorf("unknown ik strategy %q, expected one of %v", name, StrategyNames)
	}
}

// DirectIK solves each pose seeded by the previous solution and keeps the
// solution closest to that seed. The trajectory stops at the first pose that
// has no solution.
type DirectIK struct{}

func (d *DirectIK) Name() string { return StrategyDefault }

func (d *DirectIK) Solve(ctx context.Context, rc *RobotContext, side Side, poses []Pose) ([][]float64, error) {
	seed, err := rc.CurrentJoints(ctx, side)
	if err != nil {
		return nil, err
	}
	targets := rc.SpatialPoses(poses)
	traj := make([][]float64, 0, len(targets))
	for i, target := range targets {
		sols, err := rc.IK.Solutions(ctx, side, target, seed)
		if err != nil {
			return nil, fmt.Errorf("ik failed at pose %d: %w", i, err)
		}
		if len(sols) == 0 {
			rc.Logger.Warnf("%s arm: no ik solution for pose %d of %d, truncating", side, i, len(targets))
			break
		}
		best := closestTo(seed, sols)
		traj = append(traj, best)
		seed = best
	}
	return traj, nil
}

func closestTo(seed []float64, candidates [][]float64) []float64 {
	best := candidates[0]
	bestDist := jointDistance(seed, best)
	for _, c := range candidates[1:] {
		if d := jointDistance(seed, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// jointDistance is the L2 distance between two configurations. Mismatched
// lengths compare over the shared prefix.
func jointDistance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return floats.Distance(a[:n], b[:n], 2)
}
