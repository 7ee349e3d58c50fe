package verb_traj

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.viam.com/api/common/v1"
	"google.golang.org/protobuf/encoding/protojson"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"
)

type fakePlanner struct {
	waitErr error
	planErr error
	result  []float64
	reqs    []PlanTrajRequest
}

func (p *fakePlanner) WaitForService(context.Context) error { return p.waitErr }

func (p *fakePlanner) PlanTraj(_ context.Context, req PlanTrajRequest) ([]float64, error) {
	p.reqs = append(p.reqs, req)
	return p.result, p.planErr
}

func TestFlattenGoal(t *testing.T) {
	poses := make([]Pose, 7)
	for i := range poses {
		poses[i] = Pose{
			Position:    Point{X: float64(i), Y: 1, Z: 2},
			Orientation: Quaternion{X: 0.1, Y: 0.2, Z: 0.3, W: 0.4},
		}
	}

	goal := flattenGoal(poses, 5, 1)
	assert.Equal(t, []float64{
		0.1, 0.2, 0.3, 0.4, 0, 1, 2,
		0.1, 0.2, 0.3, 0.4, 5, 1, 2,
	}, goal)

	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4, 0, 1000, 2000}, flattenGoal(poses[:1], 5, 1000))
	assert.Len(t, flattenGoal(poses, 0, 1), 7*7)
	assert.Empty(t, flattenGoal(nil, 5, 1))
}

func TestReshapeTrajectory(t *testing.T) {
	rows, err := reshapeTrajectory([]float64{1, 2, 3, 4, 5, 6}, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, rows)

	rows, err = reshapeTrajectory(nil, 3)
	require.NoError(t, err)
	assert.Nil(t, rows)

	_, err = reshapeTrajectory([]float64{1, 2, 3, 4}, 3)
	assert.ErrorContains(t, err, "not a multiple")

	_, err = reshapeTrajectory([]float64{1}, 0)
	assert.Error(t, err)
}

func TestRemoteOptIK(t *testing.T) {
	t.Run("sends the table and both arms", func(t *testing.T) {
		tr := newTestRobot(t, SideLeft, SideRight)
		tr.arms[SideRight].joints = []float64{3, 4}
		planner := &fakePlanner{result: []float64{1, 1, 2, 2, 3, 3}}
		tr.rc.Planner = planner

		traj, err := (&RemoteOptIK{Stride: 5}).Solve(context.Background(), tr.rc, SideRight, line(6, 0))
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{1, 1}, {2, 2}, {3, 3}}, traj)

		require.Len(t, planner.reqs, 1)
		req := planner.reqs[0]
		assert.Equal(t, "rightarm", req.Manip)
		assert.Equal(t, "r_gripper_tool_frame", req.Link)
		assert.Equal(t, "follow_cart", req.Task)
		assert.Equal(t, []float64{0, 0, 3, 4}, req.RobotJoints)
		require.Len(t, req.Goal, 2*7)
		// goal positions share the obstacle's millimetres
		assert.InDelta(t, 100, req.Goal[4], 1e-9)
		assert.InDelta(t, 600, req.Goal[11], 1e-9)

		require.Len(t, req.Obstacles, 1)
		var geom commonpb.Geometry
		require.NoError(t, protojson.Unmarshal([]byte(req.Obstacles[0]), &geom))
		assert.Equal(t, "table", geom.GetLabel())
		dims := geom.GetBox().GetDimsMm()
		assert.InDelta(t, 1000, dims.GetX(), 1e-6)
		assert.InDelta(t, 2000, dims.GetY(), 1e-6)
		assert.InDelta(t, 500, dims.GetZ(), 1e-6)
	})

	t.Run("planner failure is an empty trajectory", func(t *testing.T) {
		tr := newTestRobot(t, SideLeft)
		tr.rc.Planner = &fakePlanner{planErr: errors.New("infeasible")}

		traj, err := (&RemoteOptIK{Stride: 5}).Solve(context.Background(), tr.rc, SideLeft, line(3, 0))
		require.NoError(t, err)
		assert.Empty(t, traj)
	})

	t.Run("no planner", func(t *testing.T) {
		tr := newTestRobot(t, SideLeft)
		_, err := (&RemoteOptIK{Stride: 5}).Solve(context.Background(), tr.rc, SideLeft, line(3, 0))
		assert.ErrorContains(t, err, "no planner")
	})

	t.Run("service never appears", func(t *testing.T) {
		tr := newTestRobot(t, SideLeft)
		planner := &fakePlanner{waitErr: context.Canceled}
		tr.rc.Planner = planner
		_, err := (&RemoteOptIK{Stride: 5}).Solve(context.Background(), tr.rc, SideLeft, line(3, 0))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, planner.reqs)
	})
}

type fakePlannerService struct {
	resource.Named
	resource.TriviallyCloseable
	resource.AlwaysRebuild

	cmds []map[string]interface{}
	resp map[string]interface{}
	err  error
}

func (s *fakePlannerService) DoCommand(_ context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	s.cmds = append(s.cmds, cmd)
	return s.resp, s.err
}

func TestDoCommandPlannerClient(t *testing.T) {
	logger := logging.NewTestLogger(t)
	newClient := func(svc *fakePlannerService) *DoCommandPlannerClient {
		return &DoCommandPlannerClient{
			Name:   "trajopt",
			Lookup: func() (resource.Resource, error) { return svc, nil },
			Logger: logger,
		}
	}

	t.Run("plan_traj round trip", func(t *testing.T) {
		svc := &fakePlannerService{
			Named: generic.Named("trajopt").AsNamed(),
			resp:  map[string]interface{}{"trajectory": []interface{}{1.0, 2.0, 3.0}},
		}
		traj, err := newClient(svc).PlanTraj(context.Background(), PlanTrajRequest{
			Manip:       "leftarm",
			Link:        "l_gripper_tool_frame",
			Task:        planTrajTask,
			Obstacles:   []string{`{"label":"table"}`},
			RobotJoints: []float64{0, 1},
			Goal:        []float64{0, 0, 0, 1, 0.1, 0.2, 0.3},
		})
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2, 3}, traj)

		require.Len(t, svc.cmds, 1)
		cmd := svc.cmds[0]
		assert.Equal(t, "plan_traj", cmd["command"])
		assert.Equal(t, "leftarm", cmd["manip"])
		assert.Equal(t, "l_gripper_tool_frame", cmd["link"])
		assert.Equal(t, "follow_cart", cmd["task"])
		assert.Equal(t, []interface{}{`{"label":"table"}`}, cmd["obstacles"])
		assert.Equal(t, []interface{}{0.0, 1.0}, cmd["robot_joints"])
		assert.Len(t, cmd["goal"], 7)
	})

	t.Run("missing trajectory", func(t *testing.T) {
		svc := &fakePlannerService{Named: generic.Named("trajopt").AsNamed(), resp: map[string]interface{}{}}
		_, err := newClient(svc).PlanTraj(context.Background(), PlanTrajRequest{})
		assert.ErrorContains(t, err, "missing 'trajectory'")
	})

	t.Run("do command error is wrapped", func(t *testing.T) {
		svc := &fakePlannerService{Named: generic.Named("trajopt").AsNamed(), err: errors.New("boom")}
		_, err := newClient(svc).PlanTraj(context.Background(), PlanTrajRequest{})
		assert.ErrorContains(t, err, "plan_traj on trajopt: boom")
	})

	t.Run("waits until the service resolves", func(t *testing.T) {
		var lookups int
		c := &DoCommandPlannerClient{
			Name: "trajopt",
			Lookup: func() (resource.Resource, error) {
				lookups++
				if lookups < 3 {
					return nil, errors.New("not found")
				}
				return &fakePlannerService{}, nil
			},
			PollInterval: time.Millisecond,
			Logger:       logger,
		}
		require.NoError(t, c.WaitForService(context.Background()))
		assert.Equal(t, 3, lookups)
	})

	t.Run("wait gives up with the context", func(t *testing.T) {
		c := &DoCommandPlannerClient{
			Name:         "trajopt",
			Lookup:       func() (resource.Resource, error) { return nil, errors.New("not found") },
			PollInterval: time.Millisecond,
			Logger:       logger,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, c.WaitForService(ctx), context.DeadlineExceeded)
	})
}
