package verb_traj

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"google.golang.org/protobuf/encoding/protojson"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/services/motion"
	"go.viam.com/rdk/spatialmath"
)

// MotionIKSolver asks the motion service to plan to each pose without moving
// and uses the final configuration of the plan as the solution.
type MotionIKSolver struct {
	Motion     Commander
	MotionName string
	ArmNames   map[Side]string
	Frame      string
	WorldState func() (*referenceframe.WorldState, error)
	Logger     logging.Logger
}

func (m *MotionIKSolver) Solutions(ctx context.Context, side Side, pose spatialmath.Pose, seed []float64) ([][]float64, error) {
	armName, ok := m.ArmNames[side]
	if !ok || armName == "" {
		return nil, fmt.Errorf("no %s arm configured", side)
	}

	var ws *referenceframe.WorldState
	if m.WorldState != nil {
		var err error
		if ws, err = m.WorldState(); err != nil {
			return nil, err
		}
	}
	req := motion.MoveReq{
		ComponentName: armName,
		Destination:   referenceframe.NewPoseInFrame(m.Frame, pose),
		WorldState:    ws,
	}
	if len(seed) > 0 {
		req.Extra = map[string]interface{}{
			"start_state": map[string]interface{}{
				"configuration": map[string]interface{}{armName: floatsToAny(seed)},
			},
		}
	}

	traj, err := m.doPlan(ctx, req)
	if err != nil {
		// the planner reports unreachable goals as errors
		m.Logger.Debugf("no plan for %s arm: %v", side, err)
		return nil, nil
	}
	if len(traj) == 0 {
		return nil, nil
	}
	final, ok := traj[len(traj)-1][armName]
	if !ok || len(final) == 0 {
		return nil, fmt.Errorf("plan has no configuration for %s", armName)
	}
	return [][]float64{final}, nil
}

// doPlan calls the motion service's plan DoCommand, which plans without executing.
func (m *MotionIKSolver) doPlan(ctx context.Context, req motion.MoveReq) ([]map[string][]float64, error) {
	proto, err := req.ToProto(m.MotionName)
	if err != nil {
		return nil, fmt.Errorf("build plan proto: %w", err)
	}
	bytes, err := protojson.Marshal(proto)
	if err != nil {
		return nil, fmt.Errorf("marshal plan request: %w", err)
	}
	resp, err := m.Motion.DoCommand(ctx, map[string]interface{}{
		"plan": string(bytes),
	})
	if err != nil {
		return nil, fmt.Errorf("DoPlan: %w", err)
	}
	raw, ok := resp["plan"]
	if !ok {
		return nil, fmt.Errorf("DoPlan response missing 'plan' key")
	}
	return decodeTrajectory(raw)
}

// decodeTrajectory reads a plan trajectory whose inputs are either bare
// numbers or {"value": n} objects.
func decodeTrajectory(raw interface{}) ([]map[string][]float64, error) {
	var steps []map[string][]interface{}
	if err := mapstructure.Decode(raw, &steps); err != nil {
		return nil, fmt.Errorf("decode trajectory: %w", err)
	}
	out := make([]map[string][]float64, len(steps))
	for i, step := range steps {
		out[i] = make(map[string][]float64, len(step))
		for name, inputs := range step {
			vals := make([]float64, len(inputs))
			for j, in := range inputs {
				v, err := inputValue(in)
				if err != nil {
					return nil, fmt.Errorf("step %d %s input %d: %w", i, name, j, err)
				}
				vals[j] = v
			}
			out[i][name] = vals
		}
	}
	return out, nil
}

func inputValue(in interface{}) (float64, error) {
	switch v := in.(type) {
	case map[string]interface{}:
		for _, key := range []string{"value", "Value"} {
			if n, ok := v[key]; ok {
				return toFloat(n)
			}
		}
		return 0, fmt.Errorf("input has no value: %v", v)
	default:
		return toFloat(in)
	}
}

// KinematicsCollisionChecker places the arm's kinematic geometries at a
// configuration and measures their distance to the table.
type KinematicsCollisionChecker struct {
	Models   map[Side]referenceframe.Model
	Obstacle func() spatialmath.Geometry
	BufferMM float64
}

func (k *KinematicsCollisionChecker) InCollision(ctx context.Context, side Side, joints []float64) (bool, error) {
	model, ok := k.Models[side]
	if !ok || model == nil {
		return false, fmt.Errorf("no kinematics for %s arm", side)
	}
	obstacle := k.Obstacle()
	if obstacle == nil {
		return false, nil
	}
	gif, err := model.Geometries(joints)
	if err != nil {
		return false, err
	}
	for _, g := range gif.Geometries() {
		d, err := g.DistanceFrom(obstacle)
		if err != nil {
			return false, err
		}
		if d < k.BufferMM {
			return true, nil
		}
	}
	return false, nil
}
