package verb_traj

import (
	"context"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	goutils "go.viam.com/utils"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
)

const planTrajTask = "follow_cart"

// PlanTrajRequest asks the remote trajectory optimizer to follow a Cartesian
// path. Lengths are in millimetres throughout, matching the obstacle protos.
type PlanTrajRequest struct {
	Manip string
	Link  string
	Task  string
	// Obstacles are protojson encoded common.v1.Geometry messages.
	Obstacles   []string
	RobotJoints []float64
	// Goal is the flattened list of [qx qy qz qw x y z] waypoints.
	Goal []float64
}

// PlannerClient talks to the remote trajectory optimizer.
type PlannerClient interface {
	WaitForService(ctx context.Context) error
	PlanTraj(ctx context.Context, req PlanTrajRequest) ([]float64, error)
}

// RemoteOptIK delegates the whole trajectory to the remote optimizer, sending
// every Stride-th pose as a goal.
type RemoteOptIK struct {
	Stride int
}

func (o *RemoteOptIK) Name() string { return StrategyOpt }

func (o *RemoteOptIK) Solve(ctx context.Context, rc *RobotContext, side Side, poses []Pose) ([][]float64, error) {
	if rc.Planner == nil {
		return nil, errors.New("no planner configured for the opt strategy")
	}
	joints, err := rc.CurrentJoints(ctx, side)
	if err != nil {
		return nil, err
	}
	dof := len(joints)

	req, err := o.buildRequest(ctx, rc, side, poses)
	if err != nil {
		return nil, err
	}

	if err := rc.Planner.WaitForService(ctx); err != nil {
		return nil, err
	}
	flat, err := rc.Planner.PlanTraj(ctx, req)
	if err != nil {
		rc.Logger.Errorf("plan_traj failed: %v", err)
		return nil, nil
	}
	return reshapeTrajectory(flat, dof)
}

func (o *RemoteOptIK) buildRequest(ctx context.Context, rc *RobotContext, side Side, poses []Pose) (PlanTrajRequest, error) {
	req := PlanTrajRequest{
		Manip: rc.ManipulatorName(side),
		Link:  rc.ToolLink(side),
		Task:  planTrajTask,
		Goal:  flattenGoal(poses, o.Stride, rc.PositionScale),
	}
	if geom := rc.TableGeometry(); geom != nil {
		encoded, err := protojson.Marshal(geom.ToProtobuf())
		if err != nil {
			return req, errors.Wrap(err, "failed to encode table obstacle")
		}
		req.Obstacles = []string{string(encoded)}
	}
	joints, err := rc.RobotJoints(ctx)
	if err != nil {
		return req, err
	}
	req.RobotJoints = joints
	return req, nil
}

// flattenGoal takes every stride-th pose, starting with the first, as
// [qx qy qz qw x y z] with positions multiplied by scale.
func flattenGoal(poses []Pose, stride int, scale float64) []float64 {
	if stride <= 0 {
		stride = 1
	}
	var goal []float64
	for i := 0; i < len(poses); i += stride {
		p := poses[i]
		goal = append(goal,
			p.Orientation.X, p.Orientation.Y, p.Orientation.Z, p.Orientation.W,
			p.Position.X*scale, p.Position.Y*scale, p.Position.Z*scale)
	}
	return goal
}

// reshapeTrajectory splits a flat joint list into rows of dof values.
func reshapeTrajectory(flat []float64, dof int) ([][]float64, error) {
	if len(flat) == 0 {
		return nil, nil
	}
	if dof <= 0 || len(flat)%dof != 0 {
		return nil, fmt.Errorf("planner returned %d values, not a multiple of %d joints", len(flat), dof)
	}
	rows := make([][]float64, 0, len(flat)/dof)
	for i := 0; i < len(flat); i += dof {
		rows = append(rows, append([]float64(nil), flat[i:i+dof]...))
	}
	return rows, nil
}

// DoCommandPlannerClient reaches the optimizer through a generic service that
// answers {"command": "plan_traj"}.
type DoCommandPlannerClient struct {
	Name         string
	Lookup       func() (resource.Resource, error)
	PollInterval time.Duration
	Logger       logging.Logger
}

func (c *DoCommandPlannerClient) WaitForService(ctx context.Context) error {
	interval := c.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	for {
		_, err := c.Lookup()
		if err == nil {
			return nil
		}
		c.Logger.Warnf("waiting for service %s: %v", c.Name, err)
		if !goutils.SelectContextOrWait(ctx, interval) {
			return ctx.Err()
		}
	}
}

func (c *DoCommandPlannerClient) PlanTraj(ctx context.Context, req PlanTrajRequest) ([]float64, error) {
	planner, err := c.Lookup()
	if err != nil {
		return nil, err
	}
	obstacles := make([]interface{}, len(req.Obstacles))
	for i, o := range req.Obstacles {
		obstacles[i] = o
	}
	resp, err := planner.DoCommand(ctx, map[string]interface{}{
		"command":      "plan_traj",
		"manip":        req.Manip,
		"link":         req.Link,
		"task":         req.Task,
		"obstacles":    obstacles,
		"robot_joints": floatsToAny(req.RobotJoints),
		"goal":         floatsToAny(req.Goal),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "plan_traj on %s", c.Name)
	}
	raw, ok := resp["trajectory"]
	if !ok {
		return nil, fmt.Errorf("plan_traj response missing 'trajectory' key")
	}
	var traj []float64
	if err := mapstructure.Decode(raw, &traj); err != nil {
		return nil, fmt.Errorf("decode trajectory: %w", err)
	}
	return traj, nil
}

func floatsToAny(vals []float64) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
