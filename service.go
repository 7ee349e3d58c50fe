package verb_traj

import (
	"context"
	"fmt"

	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/components/gripper"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/rdk/services/motion"
	"go.viam.com/rdk/spatialmath"
)

var ExecutorModel = resource.NewModel("devrel", "verb-traj", "executor")

func init() {
	resource.RegisterService(
		generic.API,
		ExecutorModel,
		resource.Registration[resource.Resource, *ExecTrajConfig]{
			Constructor: newExecTrajService,
		},
	)
}

type execTrajService struct {
	resource.Named
	resource.AlwaysRebuild

	logger    logging.Logger
	cfg       *ExecTrajConfig
	rc        *RobotContext
	executor  *Executor
	confirmer *CommandConfirmer

	cancelFunc context.CancelFunc
}

func newExecTrajService(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	cfg, err := resource.NativeConfig[*ExecTrajConfig](rawConf)
	if err != nil {
		return nil, err
	}
	return NewExecTrajService(ctx, deps, rawConf.ResourceName(), cfg, logger)
}

// NewExecTrajService builds the executor service from already resolved
// dependencies. The table is loaded in the background; executions wait for it.
func NewExecTrajService(ctx context.Context, deps resource.Dependencies, name resource.Name, cfg *ExecTrajConfig, logger logging.Logger) (resource.Resource, error) {
	if _, _, err := cfg.Validate(""); err != nil {
		return nil, err
	}

	rc, err := NewRobotContextFromDependencies(ctx, deps, cfg, logger)
	if err != nil {
		return nil, err
	}

	var confirmer Confirmer
	var cmdConfirmer *CommandConfirmer
	switch cfg.Confirm {
	case ConfirmAuto:
		confirmer = AutoConfirmer{Answer: true}
	case ConfirmNever:
		confirmer = AutoConfirmer{Answer: false}
	default:
		cmdConfirmer = NewCommandConfirmer(cfg.confirmTimeout())
		confirmer = cmdConfirmer
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	s := &execTrajService{
		Named:      name.AsNamed(),
		logger:     logger,
		cfg:        cfg,
		rc:         rc,
		executor:   NewExecutor(rc, NewFollower(rc, cfg, logger), confirmer, cfg.ExecutorOptions(), logger),
		confirmer:  cmdConfirmer,
		cancelFunc: cancelFunc,
	}

	go func() {
		if err := rc.Setup(cancelCtx); err != nil {
			logger.Warnf("robot context setup stopped: %v", err)
		}
	}()

	return s, nil
}

// NewRobotContextFromDependencies resolves arms, grippers, motion and planner
// from deps and wires the default collaborators.
func NewRobotContextFromDependencies(ctx context.Context, deps resource.Dependencies, cfg *ExecTrajConfig, logger logging.Logger) (*RobotContext, error) {
	rc := &RobotContext{
		Limbs:         map[Side]*Limb{},
		Params:        cfg.ParamSource(),
		PositionScale: cfg.PositionScale,
		Frame:         cfg.Frame,
		PollInterval:  cfg.paramPollInterval(),
		MaxSolutions:  cfg.MaxIKSolutions,
		Logger:        logger,
	}

	models := map[Side]referenceframe.Model{}
	armNames := map[Side]string{}
	for _, side := range Sides {
		armName := cfg.ArmName(side)
		if armName == "" {
			continue
		}
		a, err := arm.FromDependencies(deps, armName)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s arm %q: %w", side, armName, err)
		}
		g, err := gripper.FromDependencies(deps, cfg.GripperName(side))
		if err != nil {
			return nil, fmt.Errorf("failed to get %s gripper %q: %w", side, cfg.GripperName(side), err)
		}
		rc.Limbs[side] = &Limb{
			ArmName: armName,
			Arm:     a,
			Gripper: g,
			Effort:  &DoCommandEffortReader{Gripper: g, Command: cfg.EffortCommand, Key: cfg.EffortKey},
		}
		armNames[side] = armName

		model, err := a.Kinematics(ctx)
		if err != nil {
			logger.Warnf("no kinematics for %s arm, collision costs disabled: %v", side, err)
			continue
		}
		models[side] = model
	}

	var planIK IKSolver
	if ms, err := motion.FromDependencies(deps, cfg.Motion); err == nil {
		planIK = &MotionIKSolver{
			Motion:     ms,
			MotionName: cfg.Motion,
			ArmNames:   armNames,
			Frame:      cfg.Frame,
			WorldState: rc.WorldState,
			Logger:     logger,
		}
	} else {
		logger.Warnf("motion service %q unavailable, arms without kinematics only work with the opt strategy: %v", cfg.Motion, err)
		planIK = unavailableIK{err: err}
	}
	rc.IK = planIK
	if len(models) > 0 {
		frames := make(map[Side]referenceframe.Frame, len(models))
		for side, model := range models {
			frames[side] = model
		}
		modelIK, err := NewModelIKSolver(frames, cfg.IKThreads, cfg.ikTimeout(), cfg.MaxIKSolutions, planIK, logger)
		if err != nil {
			logger.Warnf("in-process ik unavailable, planning through the motion service: %v", err)
		} else {
			rc.IK = modelIK
		}
	}

	if len(models) > 0 {
		rc.Collisions = &KinematicsCollisionChecker{
			Models:   models,
			Obstacle: rc.TableGeometry,
			BufferMM: cfg.CollisionBufferMM,
		}
	}

	if cfg.Planner != "" {
		plannerName := generic.Named(cfg.Planner)
		rc.Planner = &DoCommandPlannerClient{
			Name:         cfg.Planner,
			Lookup:       func() (resource.Resource, error) { return deps.Lookup(plannerName) },
			PollInterval: cfg.paramPollInterval(),
			Logger:       logger,
		}
	}

	rc.Viz = cfg.visualizer()
	return rc, nil
}

// NewFollower builds the follower for the limbs in rc.
func NewFollower(rc *RobotContext, cfg *ExecTrajConfig, logger logging.Logger) *Follower {
	return &Follower{
		Limbs:       rc.Limbs,
		ClosedAngle: cfg.GripperClosedAngle,
		Logger:      logger,
	}
}

// ExecutorOptions extracts the executor tuning from the config.
func (cfg *ExecTrajConfig) ExecutorOptions() ExecutorOptions {
	opts := ExecutorOptions{
		SmoothingWindow: cfg.SmoothingWindow,
		DrawOwnArmPath:  cfg.DrawOwnArmPath,
		EffortThreshold: cfg.GrabEffortThreshold,
	}
	return opts
}

func (cfg *ExecTrajConfig) visualizer() Visualizer {
	var vs MultiVisualizer
	if cfg.Visualize {
		vs = append(vs, &MotionToolsVisualizer{})
	}
	if cfg.PlotDir != "" {
		vs = append(vs, &PlotVisualizer{Dir: ResolveModuleDataPath(cfg.PlotDir)})
	}
	switch len(vs) {
	case 0:
		return NoopVisualizer{}
	case 1:
		return vs[0]
	default:
		return vs
	}
}

// unavailableIK fails every query; used when no motion service is reachable.
type unavailableIK struct {
	err error
}

func (u unavailableIK) Solutions(context.Context, Side, spatialmath.Pose, []float64) ([][]float64, error) {
	return nil, fmt.Errorf("no ik solver: %w", u.err)
}

func (s *execTrajService) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	switch cmd["command"] {
	case "exec_traj":
		req, err := DecodeRequest(cmd)
		if err != nil {
			return nil, err
		}
		name := req.IK
		if name == "" {
			name = s.cfg.IK
		}
		strategy, err := StrategyByName(name)
		if err != nil {
			return nil, err
		}
		resp := s.executor.ExecTraj(ctx, req, strategy)
		return map[string]interface{}{
			"success":      resp.Success,
			"execution_id": resp.ExecutionID,
		}, nil

	case "confirm", "reject":
		if s.confirmer == nil {
			return nil, fmt.Errorf("confirm mode is %q, not %q", s.cfg.Confirm, ConfirmCommand)
		}
		err := s.confirmer.Deliver(cmd["command"] == "confirm")
		return map[string]interface{}{"delivered": err == nil}, nil

	case "status":
		status := s.executor.State().Snapshot().Map()
		if s.confirmer != nil {
			prompt, pending := s.confirmer.Pending()
			status["confirmation_pending"] = pending
			status["prompt"] = prompt
		}
		return status, nil

	case "strategies":
		names := make([]interface{}, len(StrategyNames))
		for i, n := range StrategyNames {
			names[i] = n
		}
		return map[string]interface{}{"strategies": names, "default": s.cfg.IK}, nil

	default:
		return nil, fmt.Errorf("unknown command: %v", cmd["command"])
	}
}

func (s *execTrajService) Close(ctx context.Context) error {
	s.cancelFunc()
	if s.confirmer != nil {
		// unblock an execution waiting for an answer
		_ = s.confirmer.Deliver(false)
	}
	return s.rc.Close(ctx)
}
