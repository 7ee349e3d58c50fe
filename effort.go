package verb_traj

import (
	"context"
	"fmt"
)

// EffortReader reads the current gripper effort. Negative values mean the
// gripper is squeezing.
type EffortReader interface {
	Effort(ctx context.Context) (float64, error)
}

// Commander is anything with a DoCommand, which every Viam resource has.
type Commander interface {
	DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
}

// DoCommandEffortReader reads the effort through a gripper DoCommand such as
// {"command": "get_load"}, taking the number stored under Key.
type DoCommandEffortReader struct {
	Gripper Commander
	Command string
	Key     string
}

func (r *DoCommandEffortReader) Effort(ctx context.Context) (float64, error) {
	resp, err := r.Gripper.DoCommand(ctx, map[string]interface{}{"command": r.Command})
	if err != nil {
		return 0, fmt.Errorf("failed to read gripper effort: %w", err)
	}
	raw, ok := resp[r.Key]
	if !ok {
		return 0, fmt.Errorf("gripper %s response missing %q", r.Command, r.Key)
	}
	return toFloat(raw)
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
