package verb_traj

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
)

// ArmActuator is the part of arm.Arm the executor drives.
type ArmActuator interface {
	JointPositions(ctx context.Context, extra map[string]interface{}) ([]referenceframe.Input, error)
	MoveToJointPositions(ctx context.Context, positions []referenceframe.Input, extra map[string]interface{}) error
	MoveThroughJointPositions(ctx context.Context, positions [][]referenceframe.Input, options *arm.MoveOptions, extra map[string]interface{}) error
	IsMoving(ctx context.Context) (bool, error)
}

// GripperActuator is the part of gripper.Gripper the executor drives.
type GripperActuator interface {
	Open(ctx context.Context, extra map[string]interface{}) error
	Grab(ctx context.Context, extra map[string]interface{}) (bool, error)
	IsMoving(ctx context.Context) (bool, error)
}

// Limb groups the resources of one side of the robot.
type Limb struct {
	// ArmName is the arm's component name, used as the trajectory key by the motion service.
	ArmName string
	Arm     ArmActuator
	Gripper GripperActuator
	Effort  EffortReader
}

// RobotContext carries everything a trajectory execution needs to know about
// the robot. It is built once per service and shared by every request.
type RobotContext struct {
	Limbs      map[Side]*Limb
	IK         IKSolver
	Collisions CollisionChecker
	Planner    PlannerClient
	Viz        Visualizer
	Params     ParamSource

	// PositionScale converts request positions into millimetres.
	PositionScale float64
	Frame         string
	PollInterval  time.Duration
	MaxSolutions  int

	Logger logging.Logger

	setupOnce sync.Once
	runOnce   sync.Once
	ready     chan struct{}
	setupErr  error
	table     TableBounds
	tableGeom spatialmath.Geometry
}

func (rc *RobotContext) readyChan() chan struct{} {
	rc.setupOnce.Do(func() { rc.ready = make(chan struct{}) })
	return rc.ready
}

// Setup waits for the table bounds, builds the table obstacle and draws it.
// Later calls wait for the first one to finish.
func (rc *RobotContext) Setup(ctx context.Context) error {
	ran := false
	rc.runOnce.Do(func() {
		ran = true
		rc.setupErr = rc.setup(ctx)
		close(rc.readyChan())
	})
	if !ran {
		return rc.WaitReady(ctx)
	}
	return rc.setupErr
}

func (rc *RobotContext) setup(ctx context.Context) error {
	tb, err := WaitForTableBounds(ctx, rc.Params, rc.PollInterval, rc.Logger)
	if err != nil {
		return fmt.Errorf("failed to load table bounds: %w", err)
	}
	geom, err := tb.Geometry(rc.PositionScale)
	if err != nil {
		return err
	}
	rc.table = tb
	rc.tableGeom = geom
	rc.Logger.Infof("table bounds loaded: %+v", tb)

	if rc.Viz != nil {
		if err := rc.Viz.DrawTable(ctx, geom); err != nil {
			rc.Logger.Warnf("failed to draw table: %v", err)
		}
	}
	return nil
}

// WaitReady blocks until Setup has finished.
func (rc *RobotContext) WaitReady(ctx context.Context) error {
	select {
	case <-rc.readyChan():
		return rc.setupErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close clears anything drawn by this context.
func (rc *RobotContext) Close(ctx context.Context) error {
	var err error
	if rc.Viz != nil {
		err = multierr.Combine(err, rc.Viz.ClearCurves(ctx, ""))
		err = multierr.Combine(err, rc.Viz.Close(ctx))
	}
	return err
}

// Table returns the table bounds loaded by Setup.
func (rc *RobotContext) Table() TableBounds { return rc.table }

// TableGeometry returns the table obstacle, in millimetres.
func (rc *RobotContext) TableGeometry() spatialmath.Geometry { return rc.tableGeom }

// WorldState wraps the table in a world state for motion planning.
func (rc *RobotContext) WorldState() (*referenceframe.WorldState, error) {
	if rc.tableGeom == nil {
		return nil, nil
	}
	gif := referenceframe.NewGeometriesInFrame(rc.frame(), []spatialmath.Geometry{rc.tableGeom})
	return referenceframe.NewWorldState([]*referenceframe.GeometriesInFrame{gif}, nil)
}

func (rc *RobotContext) frame() string {
	if rc.Frame == "" {
		return referenceframe.World
	}
	return rc.Frame
}

func (rc *RobotContext) limb(side Side) (*Limb, error) {
	l, ok := rc.Limbs[side]
	if !ok || l == nil || l.Arm == nil {
		return nil, fmt.Errorf("no %s arm configured", side)
	}
	return l, nil
}

// HasArm reports whether side has an arm.
func (rc *RobotContext) HasArm(side Side) bool {
	_, err := rc.limb(side)
	return err == nil
}

// ArmName returns the component name of the arm on side.
func (rc *RobotContext) ArmName(side Side) string {
	if l, err := rc.limb(side); err == nil {
		return l.ArmName
	}
	return ""
}

// ManipulatorName is the planner's name for the arm on side.
func (rc *RobotContext) ManipulatorName(side Side) string {
	return side.String() + "arm"
}

// ToolLink is the planner's name for the gripper tool frame on side.
func (rc *RobotContext) ToolLink(side Side) string {
	return string(side) + "_gripper_tool_frame"
}

// CurrentJoints returns the joint positions of the arm on side.
func (rc *RobotContext) CurrentJoints(ctx context.Context, side Side) ([]float64, error) {
	l, err := rc.limb(side)
	if err != nil {
		return nil, err
	}
	inputs, err := l.Arm.JointPositions(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s arm joints: %w", side, err)
	}
	return inputs, nil
}

// RobotJoints concatenates the joints of every configured arm, left first.
func (rc *RobotContext) RobotJoints(ctx context.Context) ([]float64, error) {
	var all []float64
	for _, side := range Sides {
		if !rc.HasArm(side) {
			continue
		}
		joints, err := rc.CurrentJoints(ctx, side)
		if err != nil {
			return nil, err
		}
		all = append(all, joints...)
	}
	return all, nil
}

// GripperEffort reads the gripper effort on side.
func (rc *RobotContext) GripperEffort(ctx context.Context, side Side) (float64, error) {
	l, err := rc.limb(side)
	if err != nil {
		return 0, err
	}
	if l.Effort == nil {
		return 0, fmt.Errorf("no effort reader for %s gripper", side)
	}
	return l.Effort.Effort(ctx)
}

// SpatialPoses converts request poses into millimetre poses.
func (rc *RobotContext) SpatialPoses(poses []Pose) []spatialmath.Pose {
	out := make([]spatialmath.Pose, len(poses))
	for i, p := range poses {
		out[i] = p.SpatialPose(rc.PositionScale)
	}
	return out
}

func (rc *RobotContext) maxSolutions() int {
	if rc.MaxSolutions <= 0 {
		return 8
	}
	return rc.MaxSolutions
}
