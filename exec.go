package verb_traj

import (
	"context"
	"fmt"
	"sync"

	"go.viam.com/rdk/logging"

	"verb_traj/grasp"
)

const (
	// Planned gripper angles under gripperBiasBelow are shifted by gripperBias
	// to compensate for the planner's angle offset.
	gripperBiasBelow = 0.04
	gripperBias      = -0.02

	confirmPrompt = "continue?"
)

// ExecutorOptions tunes an Executor.
type ExecutorOptions struct {
	// EffortThreshold is the effort below which a gripper holds something.
	// Nil uses grasp.DefaultEffortGrabThreshold.
	EffortThreshold *float64
	SmoothingWindow float64
	// DrawOwnArmPath draws each arm's own poses as the executed path. Off by
	// default, in which case the right arm's poses are drawn for both arms.
	DrawOwnArmPath bool
}

// Executor turns verb trajectories into robot motion.
type Executor struct {
	rc        *RobotContext
	follower  *Follower
	confirmer Confirmer
	state     *StateTracker
	opts      ExecutorOptions
	logger    logging.Logger

	mu sync.Mutex
}

func NewExecutor(rc *RobotContext, follower *Follower, confirmer Confirmer, opts ExecutorOptions, logger logging.Logger) *Executor {
	if opts.SmoothingWindow == 0 {
		opts.SmoothingWindow = DefaultSmoothingWindow
	}
	if opts.EffortThreshold == nil {
		threshold := grasp.DefaultEffortGrabThreshold
		opts.EffortThreshold = &threshold
	}
	return &Executor{
		rc:        rc,
		follower:  follower,
		confirmer: confirmer,
		state:     NewStateTracker(),
		opts:      opts,
		logger:    logger,
	}
}

// State returns the tracker recording the latest execution.
func (e *Executor) State() *StateTracker { return e.state }

// ExecTraj plans, corrects, confirms and executes req using strategy. Every
// failure is logged and reported as Success false.
func (e *Executor) ExecTraj(ctx context.Context, req ExecTrajectoryRequest, strategy IKStrategy) ExecTrajectoryResponse {
	if !e.mu.TryLock() {
		e.logger.Warn("rejecting trajectory: another execution is in progress")
		return ExecTrajectoryResponse{Success: false}
	}
	defer e.mu.Unlock()

	id := e.state.Begin(strategy.Name())
	resp := ExecTrajectoryResponse{ExecutionID: id}

	if err := req.Traj.Validate(); err != nil {
		e.fail(err)
		return resp
	}
	if err := e.rc.WaitReady(ctx); err != nil {
		e.fail(err)
		return resp
	}
	if e.rc.Viz != nil {
		if err := e.rc.Viz.ClearCurves(ctx, id); err != nil {
			e.logger.Warnf("failed to clear drawings: %v", err)
		}
	}

	body, err := e.plan(ctx, req.Traj, strategy)
	if err != nil {
		e.fail(err)
		return resp
	}

	e.state.Set(PhaseAwaitingConfirmation)
	ok, err := e.confirmer.Confirm(ctx, confirmPrompt)
	if err != nil {
		e.fail(fmt.Errorf("confirmation failed: %w", err))
		return resp
	}
	if !ok {
		e.logger.Info("trajectory refused by operator")
		e.state.Set(PhaseRefused)
		return resp
	}

	e.state.Set(PhaseGoingToStart)
	if err := e.follower.GoToStart(ctx, body); err != nil {
		e.fail(err)
		return resp
	}
	e.state.Set(PhaseFollowing)
	if err := e.follower.FollowWithGrabs(ctx, body); err != nil {
		e.fail(err)
		return resp
	}
	if err := e.follower.Join(ctx); err != nil {
		e.fail(err)
		return resp
	}

	e.state.Set(PhaseSucceeded)
	resp.Success = true
	return resp
}

// Plan runs the planning half of ExecTraj without asking for confirmation or
// moving the robot.
func (e *Executor) Plan(ctx context.Context, traj VerbTrajectory, strategy IKStrategy) (BodyTrajectory, error) {
	if err := traj.Validate(); err != nil {
		return nil, err
	}
	if err := e.rc.WaitReady(ctx); err != nil {
		return nil, err
	}
	return e.plan(ctx, traj, strategy)
}

func (e *Executor) plan(ctx context.Context, traj VerbTrajectory, strategy IKStrategy) (BodyTrajectory, error) {
	body := BodyTrajectory{}
	for _, side := range Sides {
		poses := traj.Poses(side)
		if len(poses) == 0 {
			continue
		}
		if !e.rc.HasArm(side) {
			return nil, fmt.Errorf("trajectory moves the %s arm but none is configured", side)
		}

		e.logger.Warn("warning! gripper angle hacks")
		angles := grasp.ApplyAngleBias(traj.Angles(side), gripperBiasBelow, gripperBias)

		effort, err := e.rc.GripperEffort(ctx, side)
		if err != nil {
			return nil, err
		}
		gripped := grasp.IsGripped(effort, *e.opts.EffortThreshold)
		e.logger.Debugf("%s gripper effort %.2f, gripped: %v", side, effort, gripped)
		gripperAngles := grasp.CorrectAngles(angles, gripped)

		e.draw(ctx, string(side)+"_planned", poses, ColorPlanned)

		joints, err := strategy.Solve(ctx, e.rc, side, poses)
		if err != nil {
			return nil, fmt.Errorf("%s ik failed: %w", strategy.Name(), err)
		}
		if len(joints) == 0 {
			return nil, fmt.Errorf("%s ik found no trajectory for the %s arm", strategy.Name(), side)
		}

		joints = SmoothJoints(joints, e.opts.SmoothingWindow)
		joints = grasp.CorrectJoints(angles, joints, gripped)

		body[side.ArmLimb()] = joints
		body.SetGripper(side, gripperAngles)

		drawn := traj.RightGripperPoses
		if e.opts.DrawOwnArmPath {
			drawn = poses
		}
		e.draw(ctx, string(side)+"_executed", drawn, ColorExecuted)
	}
	return body, nil
}

func (e *Executor) draw(ctx context.Context, name string, poses []Pose, color string) {
	if e.rc.Viz == nil || len(poses) == 0 {
		return
	}
	if err := e.rc.Viz.DrawCurve(ctx, name, e.rc.SpatialPoses(poses), color); err != nil {
		e.logger.Warnf("failed to draw %s: %v", name, err)
	}
}

func (e *Executor) fail(err error) {
	e.logger.Errorf("trajectory execution failed: %v", err)
	e.state.Fail(err)
}
