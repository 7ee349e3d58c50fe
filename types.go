package verb_traj

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

// Side identifies one of the two arms.
type Side string

const (
	SideLeft  Side = "l"
	SideRight Side = "r"
)

// Sides is the order in which arms are processed.
var Sides = []Side{SideLeft, SideRight}

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "unknown"
	}
}

// ArmLimb and GripperLimb are the body trajectory keys for a side.
func (s Side) ArmLimb() string     { return string(s) + "_arm" }
func (s Side) GripperLimb() string { return string(s) + "_gripper" }

// Point is a position in request units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is an orientation with the scalar part last.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose is a gripper pose as planned by the verb planner.
type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// SpatialPose converts p into a spatialmath pose, multiplying positions by scale.
func (p Pose) SpatialPose(scale float64) spatialmath.Pose {
	q := p.Orientation
	if q.X == 0 && q.Y == 0 && q.Z == 0 && q.W == 0 {
		q.W = 1
	}
	return spatialmath.NewPose(
		r3.Vector{X: p.Position.X * scale, Y: p.Position.Y * scale, Z: p.Position.Z * scale},
		&spatialmath.Quaternion{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z},
	)
}

// VerbTrajectory is the planned end effector motion for both arms.
type VerbTrajectory struct {
	LeftGripperPoses   []Pose    `json:"l_gripper_poses"`
	LeftGripperAngles  []float64 `json:"l_gripper_angles"`
	RightGripperPoses  []Pose    `json:"r_gripper_poses"`
	RightGripperAngles []float64 `json:"r_gripper_angles"`
}

// Poses returns the gripper poses planned for side.
func (t VerbTrajectory) Poses(side Side) []Pose {
	if side == SideLeft {
		return t.LeftGripperPoses
	}
	return t.RightGripperPoses
}

// Angles returns the gripper angles planned for side.
func (t VerbTrajectory) Angles(side Side) []float64 {
	if side == SideLeft {
		return t.LeftGripperAngles
	}
	return t.RightGripperAngles
}

// Validate checks that every arm has one gripper angle per pose.
func (t VerbTrajectory) Validate() error {
	for _, side := range Sides {
		if len(t.Poses(side)) != len(t.Angles(side)) {
			return fmt.Errorf("%s arm has %d poses but %d gripper angles",
				side, len(t.Poses(side)), len(t.Angles(side)))
		}
	}
	return nil
}

// ExecTrajectoryRequest asks for a verb trajectory to be executed.
type ExecTrajectoryRequest struct {
	Traj VerbTrajectory `json:"traj"`
	// IK optionally names the IK strategy; empty uses the configured default.
	IK string `json:"ik,omitempty"`
}

// ExecTrajectoryResponse reports the outcome of an execution.
type ExecTrajectoryResponse struct {
	Success     bool   `json:"success"`
	ExecutionID string `json:"execution_id"`
}

// BodyTrajectory maps a limb name (l_arm, l_gripper, r_arm, r_gripper) to its
// corrected sequence. Gripper limbs hold one single-element row per step.
type BodyTrajectory map[string][][]float64

// Arm returns the joint rows stored for side, or nil.
func (b BodyTrajectory) Arm(side Side) [][]float64 {
	return b[side.ArmLimb()]
}

// Gripper returns the gripper angles stored for side, or nil.
func (b BodyTrajectory) Gripper(side Side) []float64 {
	rows := b[side.GripperLimb()]
	if rows == nil {
		return nil
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		if len(r) > 0 {
			out[i] = r[0]
		}
	}
	return out
}

// SetGripper stores angles for side.
func (b BodyTrajectory) SetGripper(side Side, angles []float64) {
	rows := make([][]float64, len(angles))
	for i, a := range angles {
		rows[i] = []float64{a}
	}
	b[side.GripperLimb()] = rows
}

// Steps is the length of the longest limb sequence.
func (b BodyTrajectory) Steps() int {
	n := 0
	for _, rows := range b {
		if len(rows) > n {
			n = len(rows)
		}
	}
	return n
}

// DecodeRequest builds a request from a DoCommand payload or a parsed JSON
// document. Only the shape is checked; the executor validates the trajectory
// and reports an inconsistent one as a failed execution.
func DecodeRequest(raw map[string]interface{}) (ExecTrajectoryRequest, error) {
	var req ExecTrajectoryRequest
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &req,
	})
	if err != nil {
		return req, err
	}
	if err := decoder.Decode(raw); err != nil {
		return req, fmt.Errorf("failed to decode trajectory request: %w", err)
	}
	return req, nil
}
