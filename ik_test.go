package verb_traj

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/spatialmath"
)

func TestStrategyByName(t *testing.T) {
	for _, name := range []string{"", StrategyDefault, StrategyGraphSearch, StrategyOpt} {
		t.Run("known "+name, func(t *testing.T) {
			s, err := StrategyByName(name)
			require.NoError(t, err)
			if name == "" {
				name = StrategyDefault
			}
			assert.Equal(t, name, s.Name())
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := StrategyByName("trajopt")
		assert.ErrorContains(t, err, "unknown ik strategy")
	})
}

func TestDirectIK(t *testing.T) {
	t.Run("keeps the solution closest to the previous one", func(t *testing.T) {
		tr := newTestRobot(t, SideLeft)
		tr.rc.IK = &fakeIK{solve: func(_ Side, pose spatialmath.Pose, _ []float64) ([][]float64, error) {
			x := pose.Point().X
			return [][]float64{{x, 1000}, {x, 0}, {x, -1000}}, nil
		}}

		traj, err := (&DirectIK{}).Solve(context.Background(), tr.rc, SideLeft, line(3, 0))
		require.NoError(t, err)
		require.Len(t, traj, 3)
		for _, row := range traj {
			assert.Equal(t, 0.0, row[1])
		}
	})

	t.Run("seeds from the current joints then the last solution", func(t *testing.T) {
		tr := newTestRobot(t, SideLeft)
		tr.arms[SideLeft].joints = []float64{7, 7}
		var seeds [][]float64
		tr.rc.IK = &fakeIK{solve: func(_ Side, pose spatialmath.Pose, seed []float64) ([][]float64, error) {
			seeds = append(seeds, seed)
			return [][]float64{{pose.Point().X, 0}}, nil
		}}

		_, err := (&DirectIK{}).Solve(context.Background(), tr.rc, SideLeft, line(2, 0))
		require.NoError(t, err)
		require.Len(t, seeds, 2)
		assert.Equal(t, []float64{7, 7}, seeds[0])
		assert.InDelta(t, 100, seeds[1][0], 1e-9)
	})

	t.Run("truncates at the first unreachable pose", func(t *testing.T) {
		tr := newTestRobot(t, SideLeft)
		tr.rc.IK = &fakeIK{solve: func(_ Side, pose spatialmath.Pose, _ []float64) ([][]float64, error) {
			if pose.Point().X > 250 {
				return nil, nil
			}
			return [][]float64{{pose.Point().X, 0}}, nil
		}}

		traj, err := (&DirectIK{}).Solve(context.Background(), tr.rc, SideLeft, line(5, 0))
		require.NoError(t, err)
		assert.Len(t, traj, 2)
	})

	t.Run("no arm", func(t *testing.T) {
		tr := newTestRobot(t, SideLeft)
		_, err := (&DirectIK{}).Solve(context.Background(), tr.rc, SideRight, line(1, 0))
		assert.ErrorContains(t, err, "no right arm")
	})
}

func TestJointDistance(t *testing.T) {
	assert.InDelta(t, 5, jointDistance([]float64{0, 0}, []float64{3, 4}), 1e-12)
	assert.InDelta(t, 3, jointDistance([]float64{0, 0, 9}, []float64{3, 0}), 1e-12)
	assert.Equal(t, 0.0, jointDistance(nil, []float64{1}))
}
