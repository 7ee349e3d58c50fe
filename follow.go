package verb_traj

import (
	"context"
	"fmt"
	"slices"
	"time"

	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
)

// Follower drives the arms and grippers through a body trajectory.
type Follower struct {
	Limbs map[Side]*Limb
	// ClosedAngle is the gripper angle at or below which a gripper is closed.
	ClosedAngle  float64
	PollInterval time.Duration
	Logger       logging.Logger
}

// GoToStart moves every arm to its first configuration and sets every gripper
// to its first state.
func (f *Follower) GoToStart(ctx context.Context, body BodyTrajectory) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, side := range Sides {
		rows := body.Arm(side)
		limb := f.Limbs[side]
		if len(rows) == 0 || limb == nil || limb.Arm == nil {
			continue
		}
		g.Go(func() error {
			if err := limb.Arm.MoveToJointPositions(gctx, slices.Clone(rows[0]), nil); err != nil {
				return fmt.Errorf("failed to move %s arm to start: %w", side, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, side := range Sides {
		angles := body.Gripper(side)
		if len(angles) == 0 {
			continue
		}
		if err := f.setGripper(ctx, side, f.isOpen(angles[0])); err != nil {
			return err
		}
	}
	return nil
}

// FollowWithGrabs moves the arms through the trajectory, pausing to open or
// close a gripper wherever its state changes.
func (f *Follower) FollowWithGrabs(ctx context.Context, body BodyTrajectory) error {
	steps := body.Steps()
	if steps == 0 {
		return nil
	}

	states := map[Side][]bool{}
	for _, side := range Sides {
		angles := body.Gripper(side)
		if len(angles) == 0 {
			continue
		}
		s := make([]bool, len(angles))
		for i, a := range angles {
			s[i] = f.isOpen(a)
		}
		states[side] = s
	}

	segStart := 0
	for _, end := range append(gripperFlips(states, steps), steps) {
		if err := f.moveArms(ctx, body, segStart, end); err != nil {
			return err
		}
		if end < steps {
			for _, side := range Sides {
				s := states[side]
				if len(s) == 0 || end >= len(s) || s[end] == s[end-1] {
					continue
				}
				if err := f.setGripper(ctx, side, s[end]); err != nil {
					return err
				}
			}
		}
		segStart = end
	}
	return nil
}

// gripperFlips returns every step at which some gripper changes state.
func gripperFlips(states map[Side][]bool, steps int) []int {
	var flips []int
	for i := 1; i < steps; i++ {
		for _, side := range Sides {
			s := states[side]
			if i < len(s) && s[i] != s[i-1] {
				flips = append(flips, i)
				break
			}
		}
	}
	return flips
}

// moveArms moves every arm through its waypoints in [from, to) concurrently.
func (f *Follower) moveArms(ctx context.Context, body BodyTrajectory, from, to int) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, side := range Sides {
		rows := body.Arm(side)
		limb := f.Limbs[side]
		if limb == nil || limb.Arm == nil || from >= len(rows) {
			continue
		}
		end := min(to, len(rows))
		waypoints := make([][]referenceframe.Input, 0, end-from)
		for _, row := range rows[from:end] {
			waypoints = append(waypoints, slices.Clone(row))
		}
		g.Go(func() error {
			if err := limb.Arm.MoveThroughJointPositions(gctx, waypoints, nil, nil); err != nil {
				return fmt.Errorf("failed to move %s arm through steps %d-%d: %w", side, from, end, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (f *Follower) setGripper(ctx context.Context, side Side, open bool) error {
	limb := f.Limbs[side]
	if limb == nil || limb.Gripper == nil {
		return nil
	}
	if open {
		if err := limb.Gripper.Open(ctx, nil); err != nil {
			return fmt.Errorf("failed to open %s gripper: %w", side, err)
		}
		return nil
	}
	grabbed, err := limb.Gripper.Grab(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to close %s gripper: %w", side, err)
	}
	f.Logger.Debugf("%s gripper closed, grabbed: %v", side, grabbed)
	return nil
}

func (f *Follower) isOpen(angle float64) bool {
	return angle > f.ClosedAngle
}

// Join waits until no arm or gripper reports moving.
func (f *Follower) Join(ctx context.Context) error {
	interval := f.PollInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	for {
		moving, err := f.anyMoving(ctx)
		if err != nil {
			return err
		}
		if !moving {
			return nil
		}
		if !goutils.SelectContextOrWait(ctx, interval) {
			return ctx.Err()
		}
	}
}

func (f *Follower) anyMoving(ctx context.Context) (bool, error) {
	for _, side := range Sides {
		limb := f.Limbs[side]
		if limb == nil {
			continue
		}
		if limb.Arm != nil {
			moving, err := limb.Arm.IsMoving(ctx)
			if err != nil {
				return false, err
			}
			if moving {
				return true, nil
			}
		}
		if limb.Gripper != nil {
			moving, err := limb.Gripper.IsMoving(ctx)
			if err != nil {
				return false, err
			}
			if moving {
				return true, nil
			}
		}
	}
	return false, nil
}
