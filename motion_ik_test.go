package verb_traj

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
)

type fakeCommander struct {
	cmds []map[string]interface{}
	resp map[string]interface{}
	err  error
}

func (c *fakeCommander) DoCommand(_ context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	c.cmds = append(c.cmds, cmd)
	return c.resp, c.err
}

func TestDecodeTrajectory(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{"left-arm": []interface{}{0.0, 1.0}},
		map[string]interface{}{"left-arm": []interface{}{
			map[string]interface{}{"value": 2.0},
			map[string]interface{}{"Value": 3},
		}},
	}
	traj, err := decodeTrajectory(raw)
	require.NoError(t, err)
	assert.Equal(t, []map[string][]float64{
		{"left-arm": {0, 1}},
		{"left-arm": {2, 3}},
	}, traj)

	t.Run("bad input", func(t *testing.T) {
		_, err := decodeTrajectory([]interface{}{
			map[string]interface{}{"left-arm": []interface{}{"x"}},
		})
		assert.ErrorContains(t, err, "expected a number")
	})

	t.Run("input with no value", func(t *testing.T) {
		_, err := decodeTrajectory([]interface{}{
			map[string]interface{}{"left-arm": []interface{}{map[string]interface{}{"v": 1.0}}},
		})
		assert.ErrorContains(t, err, "has no value")
	})
}

func TestMotionIKSolver(t *testing.T) {
	logger := logging.NewTestLogger(t)
	pose := spatialmath.NewPoseFromPoint(r3.Vector{X: 300, Y: 0, Z: 400})

	newSolver := func(c *fakeCommander) *MotionIKSolver {
		return &MotionIKSolver{
			Motion:     c,
			MotionName: "builtin",
			ArmNames:   map[Side]string{SideLeft: "left-arm"},
			Frame:      referenceframe.World,
			Logger:     logger,
		}
	}

	t.Run("final plan step is the solution", func(t *testing.T) {
		c := &fakeCommander{resp: map[string]interface{}{"plan": []interface{}{
			map[string]interface{}{"left-arm": []interface{}{0.0, 0.0}},
			map[string]interface{}{"left-arm": []interface{}{0.5, -0.5}},
		}}}
		sols, err := newSolver(c).Solutions(context.Background(), SideLeft, pose, []float64{0.1, 0.2})
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{0.5, -0.5}}, sols)

		require.Len(t, c.cmds, 1)
		assert.Contains(t, c.cmds[0], "plan")
		assert.IsType(t, "", c.cmds[0]["plan"])
		assert.Contains(t, c.cmds[0]["plan"], "left-arm")
	})

	t.Run("planning error means unreachable", func(t *testing.T) {
		c := &fakeCommander{err: errors.New("no solution found")}
		sols, err := newSolver(c).Solutions(context.Background(), SideLeft, pose, nil)
		require.NoError(t, err)
		assert.Empty(t, sols)
	})

	t.Run("missing arm in plan", func(t *testing.T) {
		c := &fakeCommander{resp: map[string]interface{}{"plan": []interface{}{
			map[string]interface{}{"other": []interface{}{0.0}},
		}}}
		_, err := newSolver(c).Solutions(context.Background(), SideLeft, pose, nil)
		assert.ErrorContains(t, err, "no configuration for left-arm")
	})

	t.Run("unconfigured side", func(t *testing.T) {
		_, err := newSolver(&fakeCommander{}).Solutions(context.Background(), SideRight, pose, nil)
		assert.ErrorContains(t, err, "no right arm")
	})
}

func TestKinematicsCollisionChecker(t *testing.T) {
	t.Run("nil model", func(t *testing.T) {
		k := &KinematicsCollisionChecker{
			Models:   map[Side]referenceframe.Model{SideLeft: nil},
			Obstacle: func() spatialmath.Geometry { return nil },
		}
		_, err := k.InCollision(context.Background(), SideLeft, []float64{0})
		assert.ErrorContains(t, err, "no kinematics")
	})

	t.Run("missing model", func(t *testing.T) {
		k := &KinematicsCollisionChecker{
			Models:   map[Side]referenceframe.Model{},
			Obstacle: func() spatialmath.Geometry { return nil },
		}
		_, err := k.InCollision(context.Background(), SideRight, []float64{0})
		assert.ErrorContains(t, err, "no kinematics for right arm")
	})
}

func TestDoCommandEffortReader(t *testing.T) {
	t.Run("reads the configured key", func(t *testing.T) {
		c := &fakeCommander{resp: map[string]interface{}{"load": -12.5}}
		r := &DoCommandEffortReader{Gripper: c, Command: "get_load", Key: "load"}
		effort, err := r.Effort(context.Background())
		require.NoError(t, err)
		assert.Equal(t, -12.5, effort)
		assert.Equal(t, map[string]interface{}{"command": "get_load"}, c.cmds[0])
	})

	t.Run("integer value", func(t *testing.T) {
		c := &fakeCommander{resp: map[string]interface{}{"load": 3}}
		effort, err := (&DoCommandEffortReader{Gripper: c, Command: "get_load", Key: "load"}).Effort(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3.0, effort)
	})

	t.Run("missing key", func(t *testing.T) {
		c := &fakeCommander{resp: map[string]interface{}{}}
		_, err := (&DoCommandEffortReader{Gripper: c, Command: "get_load", Key: "load"}).Effort(context.Background())
		assert.ErrorContains(t, err, `missing "load"`)
	})

	t.Run("command error", func(t *testing.T) {
		c := &fakeCommander{err: errors.New("unsupported")}
		_, err := (&DoCommandEffortReader{Gripper: c, Command: "get_load", Key: "load"}).Effort(context.Background())
		assert.ErrorContains(t, err, "unsupported")
	})
}
