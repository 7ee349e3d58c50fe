package verb_traj

import (
	"context"
	"fmt"

	viz "github.com/viam-labs/motion-tools/client/client"
	"go.uber.org/multierr"

	"go.viam.com/rdk/spatialmath"
)

const (
	// ColorPlanned draws the gripper path as requested.
	ColorPlanned = "yellow"
	// ColorExecuted draws the gripper path that will be executed.
	ColorExecuted = "red"
)

// Visualizer draws debugging output for an execution. Failures are reported
// but never stop an execution.
type Visualizer interface {
	DrawTable(ctx context.Context, table spatialmath.Geometry) error
	DrawCurve(ctx context.Context, name string, poses []spatialmath.Pose, color string) error
	// ClearCurves drops the curves of the previous execution. executionID
	// names the execution whose curves come next.
	ClearCurves(ctx context.Context, executionID string) error
	Close(ctx context.Context) error
}

// NoopVisualizer draws nothing.
type NoopVisualizer struct{}

func (NoopVisualizer) DrawTable(context.Context, spatialmath.Geometry) error { return nil }
func (NoopVisualizer) DrawCurve(context.Context, string, []spatialmath.Pose, string) error {
	return nil
}
func (NoopVisualizer) ClearCurves(context.Context, string) error { return nil }
func (NoopVisualizer) Close(context.Context) error                { return nil }

// MultiVisualizer fans out to several visualizers.
type MultiVisualizer []Visualizer

func (m MultiVisualizer) DrawTable(ctx context.Context, table spatialmath.Geometry) error {
	var err error
	for _, v := range m {
		err = multierr.Combine(err, v.DrawTable(ctx, table))
	}
	return err
}

func (m MultiVisualizer) DrawCurve(ctx context.Context, name string, poses []spatialmath.Pose, color string) error {
	var err error
	for _, v := range m {
		err = multierr.Combine(err, v.DrawCurve(ctx, name, poses, color))
	}
	return err
}

func (m MultiVisualizer) ClearCurves(ctx context.Context, executionID string) error {
	var err error
	for _, v := range m {
		err = multierr.Combine(err, v.ClearCurves(ctx, executionID))
	}
	return err
}

func (m MultiVisualizer) Close(ctx context.Context) error {
	var err error
	for _, v := range m {
		err = multierr.Combine(err, v.Close(ctx))
	}
	return err
}

// MotionToolsVisualizer draws into a running motion-tools visualizer.
type MotionToolsVisualizer struct {
	table spatialmath.Geometry
}

func (m *MotionToolsVisualizer) DrawTable(_ context.Context, table spatialmath.Geometry) error {
	m.table = table
	return viz.DrawGeometry(table, "brown")
}

func (m *MotionToolsVisualizer) DrawCurve(_ context.Context, name string, poses []spatialmath.Pose, color string) error {
	if len(poses) == 0 {
		return nil
	}
	colors := make([]string, len(poses))
	for i := range colors {
		colors[i] = color
	}
	if err := viz.DrawPoses(poses, colors, true); err != nil {
		return fmt.Errorf("draw %s: %w", name, err)
	}
	return nil
}

// ClearCurves removes everything and redraws the table, since motion-tools
// has no per-object removal in this client.
func (m *MotionToolsVisualizer) ClearCurves(_ context.Context, _ string) error {
	if err := viz.RemoveAllSpatialObjects(); err != nil {
		return err
	}
	if m.table != nil {
		return viz.DrawGeometry(m.table, "brown")
	}
	return nil
}

func (m *MotionToolsVisualizer) Close(context.Context) error {
	return viz.RemoveAllSpatialObjects()
}
