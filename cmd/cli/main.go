package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/components/gripper"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/robot/client"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/rdk/services/motion"
	"go.viam.com/utils/rpc"

	verbtraj "verb_traj"
)

func main() {
	err := realMain()
	if err != nil {
		panic(err)
	}
}

func realMain() error {
	credsPath := flag.String("creds", "", "path to robot credentials JSON file (defaults to VIAM_* env vars)")
	configPath := flag.String("config", "", "path to executor config JSON (the service attributes)")
	requestPath := flag.String("request", "", "path to trajectory request JSON")
	ik := flag.String("ik", "", "ik strategy: default, graph_search or opt")
	planOnly := flag.Bool("plan-only", false, "plan and print the summary without moving")
	flag.Parse()

	logger := logging.NewLogger("verb-traj-cli")

	if *configPath == "" || *requestPath == "" {
		return fmt.Errorf("-config and -request are required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	req, err := loadRequest(*requestPath)
	if err != nil {
		return err
	}
	if *ik != "" {
		req.IK = *ik
	}
	if req.IK == "" {
		req.IK = cfg.IK
	}
	strategy, err := verbtraj.StrategyByName(req.IK)
	if err != nil {
		return err
	}

	printSummary(os.Stdout, req)

	robotCreds, err := loadCreds(*credsPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	machine, err := client.New(
		ctx,
		robotCreds.Address,
		logger,
		client.WithDialOptions(rpc.WithEntityCredentials(
			robotCreds.EntityID,
			rpc.Credentials{
				Type:    rpc.CredentialsTypeAPIKey,
				Payload: robotCreds.APIKey,
			})),
	)
	if err != nil {
		return err
	}
	defer machine.Close(context.Background())

	logger.Info("Connected to robot")

	deps, err := machineDependencies(machine, cfg)
	if err != nil {
		return err
	}

	rc, err := verbtraj.NewRobotContextFromDependencies(ctx, deps, cfg, logger)
	if err != nil {
		return err
	}
	defer rc.Close(context.Background())

	if err := rc.Setup(ctx); err != nil {
		return err
	}

	executor := verbtraj.NewExecutor(rc, verbtraj.NewFollower(rc, cfg, logger),
		verbtraj.TerminalConfirmer{}, cfg.ExecutorOptions(), logger)

	if *planOnly {
		body, err := executor.Plan(ctx, req.Traj, strategy)
		if err != nil {
			return err
		}
		printBodySummary(os.Stdout, body)
		return nil
	}

	resp := executor.ExecTraj(ctx, req, strategy)
	logger.Infof("execution %s finished, success: %v", resp.ExecutionID, resp.Success)
	if !resp.Success {
		status := executor.State().Snapshot()
		return fmt.Errorf("execution %s ended in phase %s: %s", resp.ExecutionID, status.Phase, status.LastError)
	}
	return nil
}

func loadConfig(path string) (*verbtraj.ExecTrajConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg verbtraj.ExecTrajConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if _, _, err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadRequest(path string) (verbtraj.ExecTrajectoryRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return verbtraj.ExecTrajectoryRequest{}, fmt.Errorf("reading request file: %w", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return verbtraj.ExecTrajectoryRequest{}, fmt.Errorf("parsing request file: %w", err)
	}
	req, err := verbtraj.DecodeRequest(raw)
	if err != nil {
		return req, err
	}
	return req, req.Traj.Validate()
}

// machineDependencies looks up every resource the config names on the machine.
func machineDependencies(machine *client.RobotClient, cfg *verbtraj.ExecTrajConfig) (resource.Dependencies, error) {
	var required []resource.Name
	for _, side := range verbtraj.Sides {
		if name := cfg.ArmName(side); name != "" {
			required = append(required, arm.Named(name), gripper.Named(cfg.GripperName(side)))
		}
	}

	deps := resource.Dependencies{}
	for _, name := range required {
		r, err := machine.ResourceByName(name)
		if err != nil {
			return nil, fmt.Errorf("machine has no %s: %w", name, err)
		}
		deps[name] = r
	}

	optional := []resource.Name{motion.Named(cfg.Motion)}
	if cfg.Planner != "" {
		optional = append(optional, generic.Named(cfg.Planner))
	}
	for _, name := range optional {
		if r, err := machine.ResourceByName(name); err == nil {
			deps[name] = r
		}
	}
	return deps, nil
}
