package verb_traj

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/components/gripper"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/rdk/services/motion"

	"verb_traj/grasp"
)

const (
	ConfirmAuto    = "auto"
	ConfirmCommand = "command"
	ConfirmNever   = "never"
)

type ExecTrajConfig struct {
	LeftArm      string `json:"left_arm,omitempty"`
	RightArm     string `json:"right_arm,omitempty"`
	LeftGripper  string `json:"left_gripper,omitempty"`
	RightGripper string `json:"right_gripper,omitempty"`

	// Motion service used by the default IK solver. Defaults to builtin.
	Motion string `json:"motion,omitempty"`
	// Generic service answering plan_traj for the "opt" strategy.
	Planner string `json:"planner,omitempty"`

	IK                string  `json:"ik,omitempty"`
	Confirm           string  `json:"confirm,omitempty"`
	ConfirmTimeoutSec float64 `json:"confirm_timeout_sec,omitempty"`

	EffortCommand       string   `json:"effort_command,omitempty"`
	EffortKey           string   `json:"effort_key,omitempty"`
	GrabEffortThreshold *float64 `json:"grab_effort_threshold,omitempty"`

	GripperClosedAngle float64 `json:"gripper_closed_angle,omitempty"`
	SmoothingWindow    float64 `json:"smoothing_window,omitempty"`
	PositionScale      float64 `json:"position_scale,omitempty"`
	Frame              string  `json:"frame,omitempty"`
	MaxIKSolutions     int     `json:"max_ik_solutions,omitempty"`
	IKThreads          int     `json:"ik_threads,omitempty"`
	IKTimeoutSec       float64 `json:"ik_timeout_sec,omitempty"`

	Params               map[string]string `json:"params,omitempty"`
	ParamsFile           string            `json:"params_file,omitempty"`
	ParamPollIntervalSec float64           `json:"param_poll_interval_sec,omitempty"`

	CollisionBufferMM float64 `json:"collision_buffer_mm,omitempty"`

	PlotDir        string `json:"plot_dir,omitempty"`
	Visualize      bool   `json:"visualize,omitempty"`
	DrawOwnArmPath bool   `json:"draw_own_arm_path,omitempty"`
}

// Validate ensures all parts of the config are valid and fills in defaults
func (cfg *ExecTrajConfig) Validate(path string) ([]string, []string, error) {
	if cfg.LeftArm == "" && cfg.RightArm == "" {
		return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "left_arm")
	}
	if cfg.LeftArm != "" && cfg.LeftGripper == "" {
		return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "left_gripper")
	}
	if cfg.RightArm != "" && cfg.RightGripper == "" {
		return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "right_gripper")
	}

	if cfg.Motion == "" {
		cfg.Motion = "builtin"
	}
	if cfg.IK == "" {
		cfg.IK = StrategyDefault
	}
	if _, err := StrategyByName(cfg.IK); err != nil {
		return nil, nil, err
	}
	if cfg.IK == StrategyOpt && cfg.Planner == "" {
		return nil, nil, fmt.Errorf("ik strategy %q requires a planner", StrategyOpt)
	}

	switch cfg.Confirm {
	case "":
		cfg.Confirm = ConfirmCommand
	case ConfirmAuto, ConfirmCommand, ConfirmNever:
	default:
		return nil, nil, fmt.Errorf("confirm must be one of %q, %q or %q, got %q",
			ConfirmAuto, ConfirmCommand, ConfirmNever, cfg.Confirm)
	}
	if cfg.ConfirmTimeoutSec == 0 {
		cfg.ConfirmTimeoutSec = 120
	}
	if cfg.ConfirmTimeoutSec < 0 {
		return nil, nil, fmt.Errorf("confirm_timeout_sec must be positive, got %.1f", cfg.ConfirmTimeoutSec)
	}

	if cfg.EffortCommand == "" {
		cfg.EffortCommand = "get_load"
	}
	if cfg.EffortKey == "" {
		cfg.EffortKey = "load"
	}
	if cfg.GrabEffortThreshold == nil {
		threshold := grasp.DefaultEffortGrabThreshold
		cfg.GrabEffortThreshold = &threshold
	}
	if cfg.GripperClosedAngle == 0 {
		cfg.GripperClosedAngle = 0.02
	}
	if cfg.SmoothingWindow == 0 {
		cfg.SmoothingWindow = DefaultSmoothingWindow
	}
	if cfg.PositionScale == 0 {
		cfg.PositionScale = 1000
	}
	if cfg.Frame == "" {
		cfg.Frame = "world"
	}
	if cfg.MaxIKSolutions == 0 {
		cfg.MaxIKSolutions = 8
	}
	if cfg.IKThreads == 0 {
		cfg.IKThreads = 2
	}
	if cfg.IKTimeoutSec == 0 {
		cfg.IKTimeoutSec = 0.5
	}
	if cfg.IKThreads < 0 || cfg.IKTimeoutSec < 0 {
		return nil, nil, fmt.Errorf("ik_threads and ik_timeout_sec must be positive")
	}
	if cfg.ParamPollIntervalSec == 0 {
		cfg.ParamPollIntervalSec = 1
	}
	if cfg.CollisionBufferMM == 0 {
		cfg.CollisionBufferMM = 1
	}

	var deps []string
	for _, name := range []string{cfg.LeftArm, cfg.RightArm} {
		if name != "" {
			deps = append(deps, arm.Named(name).String())
		}
	}
	for _, name := range []string{cfg.LeftGripper, cfg.RightGripper} {
		if name != "" {
			deps = append(deps, gripper.Named(name).String())
		}
	}

	optionalDeps := []string{motion.Named(cfg.Motion).String()}
	if cfg.Planner != "" {
		optionalDeps = append(optionalDeps, generic.Named(cfg.Planner).String())
	}

	return deps, optionalDeps, nil
}

// ArmName returns the configured arm for side.
func (cfg *ExecTrajConfig) ArmName(side Side) string {
	if side == SideLeft {
		return cfg.LeftArm
	}
	return cfg.RightArm
}

// GripperName returns the configured gripper for side.
func (cfg *ExecTrajConfig) GripperName(side Side) string {
	if side == SideLeft {
		return cfg.LeftGripper
	}
	return cfg.RightGripper
}

func (cfg *ExecTrajConfig) confirmTimeout() time.Duration {
	return time.Duration(cfg.ConfirmTimeoutSec * float64(time.Second))
}

func (cfg *ExecTrajConfig) ikTimeout() time.Duration {
	return time.Duration(cfg.IKTimeoutSec * float64(time.Second))
}

func (cfg *ExecTrajConfig) paramPollInterval() time.Duration {
	return time.Duration(cfg.ParamPollIntervalSec * float64(time.Second))
}

// ResolveModuleDataPath makes a relative path relative to $VIAM_MODULE_DATA.
func ResolveModuleDataPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	moduleDataDir := os.Getenv("VIAM_MODULE_DATA")
	if moduleDataDir == "" {
		moduleDataDir = "/tmp" // Fallback if VIAM_MODULE_DATA not set
	}
	return filepath.Join(moduleDataDir, p)
}

// ParamSource builds the shared parameter source from the config. A params
// file takes precedence over inline params.
func (cfg *ExecTrajConfig) ParamSource() ParamSource {
	if cfg.ParamsFile != "" {
		return &FileParams{Path: ResolveModuleDataPath(cfg.ParamsFile)}
	}
	return StaticParams(cfg.Params)
}
