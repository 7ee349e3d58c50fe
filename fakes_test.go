package verb_traj

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
)

type fakeArm struct {
	mu       sync.Mutex
	joints   []float64
	moves    [][]float64
	throughs [][][]float64
	moveErr  error
}

func (a *fakeArm) JointPositions(context.Context, map[string]interface{}) ([]referenceframe.Input, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.joints), nil
}

func (a *fakeArm) MoveToJointPositions(_ context.Context, positions []referenceframe.Input, _ map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.moveErr != nil {
		return a.moveErr
	}
	a.joints = slices.Clone(positions)
	a.moves = append(a.moves, a.joints)
	return nil
}

func (a *fakeArm) MoveThroughJointPositions(_ context.Context, positions [][]referenceframe.Input, _ *arm.MoveOptions, _ map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.moveErr != nil {
		return a.moveErr
	}
	batch := make([][]float64, len(positions))
	for i, p := range positions {
		batch[i] = slices.Clone(p)
	}
	a.throughs = append(a.throughs, batch)
	if len(batch) > 0 {
		a.joints = batch[len(batch)-1]
	}
	return nil
}

func (a *fakeArm) IsMoving(context.Context) (bool, error) { return false, nil }

func (a *fakeArm) moved() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.moves) > 0 || len(a.throughs) > 0
}

type fakeGripper struct {
	mu    sync.Mutex
	calls []string
}

func (g *fakeGripper) Open(context.Context, map[string]interface{}) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "open")
	return nil
}

func (g *fakeGripper) Grab(context.Context, map[string]interface{}) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "grab")
	return true, nil
}

func (g *fakeGripper) IsMoving(context.Context) (bool, error) { return false, nil }

func (g *fakeGripper) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

type fakeEffort struct {
	value float64
	reads int
}

func (e *fakeEffort) Effort(context.Context) (float64, error) {
	e.reads++
	return e.value, nil
}

type fakeIK struct {
	solve func(side Side, pose spatialmath.Pose, seed []float64) ([][]float64, error)
}

func (f *fakeIK) Solutions(_ context.Context, side Side, pose spatialmath.Pose, seed []float64) ([][]float64, error) {
	return f.solve(side, pose, seed)
}

// poseIK returns one solution per pose, [x, y] in millimetres.
func poseIK() *fakeIK {
	return &fakeIK{solve: func(_ Side, pose spatialmath.Pose, _ []float64) ([][]float64, error) {
		pt := pose.Point()
		return [][]float64{{pt.X, pt.Y}}, nil
	}}
}

type fakeCollisions struct {
	hit func(side Side, joints []float64) bool
}

func (f *fakeCollisions) InCollision(_ context.Context, side Side, joints []float64) (bool, error) {
	return f.hit(side, joints), nil
}

type drawnCurve struct {
	name  string
	color string
	poses []spatialmath.Pose
}

type recordingViz struct {
	mu      sync.Mutex
	tables  int
	curves  []drawnCurve
	clears  []string
	closeds int
}

func (v *recordingViz) DrawTable(context.Context, spatialmath.Geometry) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tables++
	return nil
}

func (v *recordingViz) DrawCurve(_ context.Context, name string, poses []spatialmath.Pose, color string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.curves = append(v.curves, drawnCurve{name: name, color: color, poses: poses})
	return nil
}

func (v *recordingViz) ClearCurves(_ context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clears = append(v.clears, id)
	v.curves = nil
	return nil
}

func (v *recordingViz) Close(context.Context) error {
	v.closeds++
	return nil
}

type testRobot struct {
	rc       *RobotContext
	arms     map[Side]*fakeArm
	grippers map[Side]*fakeGripper
	efforts  map[Side]*fakeEffort
	viz      *recordingViz
}

// newTestRobot builds a ready robot context with fake limbs on the given sides.
func newTestRobot(t *testing.T, sides ...Side) *testRobot {
	t.Helper()
	tr := &testRobot{
		arms:     map[Side]*fakeArm{},
		grippers: map[Side]*fakeGripper{},
		efforts:  map[Side]*fakeEffort{},
		viz:      &recordingViz{},
	}
	limbs := map[Side]*Limb{}
	for _, side := range sides {
		tr.arms[side] = &fakeArm{joints: []float64{0, 0}}
		tr.grippers[side] = &fakeGripper{}
		tr.efforts[side] = &fakeEffort{}
		limbs[side] = &Limb{
			ArmName: side.String() + "-arm",
			Arm:     tr.arms[side],
			Gripper: tr.grippers[side],
			Effort:  tr.efforts[side],
		}
	}
	tr.rc = &RobotContext{
		Limbs:         limbs,
		IK:            poseIK(),
		Viz:           tr.viz,
		Params:        StaticParams{TableBoundsParam: "0 1 -1 1 0 0.5"},
		PositionScale: 1000,
		Logger:        logging.NewTestLogger(t),
	}
	require.NoError(t, tr.rc.Setup(context.Background()))
	return tr
}

func (tr *testRobot) follower() *Follower {
	return &Follower{Limbs: tr.rc.Limbs, ClosedAngle: 0.02, Logger: tr.rc.Logger}
}

// line returns n poses along x, in metres, with a unit quaternion.
func line(n int, y float64) []Pose {
	poses := make([]Pose, n)
	for i := range poses {
		poses[i] = Pose{
			Position:    Point{X: 0.1 * float64(i+1), Y: y, Z: 0.6},
			Orientation: Quaternion{W: 1},
		}
	}
	return poses
}
