// discovery.go
package verb_traj

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/components/gripper"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/discovery"
	"go.viam.com/rdk/services/generic"
)

var DiscoveryModel = resource.NewModel("devrel", "verb-traj", "discovery")

// defaultParamsFile is looked up in $VIAM_MODULE_DATA when proposing a config.
const defaultParamsFile = "verb_traj_params.json"

func init() {
	resource.RegisterService(
		discovery.API,
		DiscoveryModel,
		resource.Registration[discovery.Service, *DiscoveryConfig]{
			Constructor: newVerbTrajDiscovery,
		})
}

// DiscoveryConfig lists the candidate components to pair into an executor.
type DiscoveryConfig struct {
	Arms     []string `json:"arms"`
	Grippers []string `json:"grippers"`
	Planner  string   `json:"planner,omitempty"`
}

// Validate ensures the config is valid. Candidates are optional dependencies
// so discovery still reports whatever is present.
func (cfg *DiscoveryConfig) Validate(path string) ([]string, []string, error) {
	if len(cfg.Arms) == 0 {
		return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "arms")
	}
	var optional []string
	for _, name := range cfg.Arms {
		optional = append(optional, arm.Named(name).String())
	}
	for _, name := range cfg.Grippers {
		optional = append(optional, gripper.Named(name).String())
	}
	if cfg.Planner != "" {
		optional = append(optional, generic.Named(cfg.Planner).String())
	}
	return nil, optional, nil
}

type verbTrajDiscovery struct {
	resource.Named
	resource.AlwaysRebuild
	resource.TriviallyCloseable
	logger logging.Logger

	cfg  *DiscoveryConfig
	deps resource.Dependencies
}

func newVerbTrajDiscovery(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (discovery.Service, error) {
	cfg, err := resource.NativeConfig[*DiscoveryConfig](conf)
	if err != nil {
		return nil, err
	}

	return &verbTrajDiscovery{
		Named:  conf.ResourceName().AsNamed(),
		logger: logger,
		cfg:    cfg,
		deps:   deps,
	}, nil
}

// limbPair is an arm and the gripper mounted on it.
type limbPair struct {
	Arm     string
	Gripper string
}

// DiscoverResources pairs the candidate arms and grippers that are present
// into a proposed executor configuration.
func (dis *verbTrajDiscovery) DiscoverResources(ctx context.Context, extra map[string]any) ([]resource.Config, error) {
	dis.logger.Info("Starting verb-traj discovery")

	arms := dis.present(dis.cfg.Arms, arm.Named)
	grippers := dis.present(dis.cfg.Grippers, gripper.Named)
	dis.logger.Debugf("Found %d arms and %d grippers", len(arms), len(grippers))

	if err := ctx.Err(); err != nil {
		dis.logger.Info("Discovery cancelled")
		return nil, err
	}

	pairs := pairLimbs(arms, grippers)
	if len(pairs) == 0 {
		dis.logger.Info("No arm and gripper pairs discovered")
		return nil, nil
	}

	planner := ""
	if dis.cfg.Planner != "" {
		if _, err := dis.deps.Lookup(generic.Named(dis.cfg.Planner)); err == nil {
			planner = dis.cfg.Planner
		}
	}

	moduleDataDir := os.Getenv("VIAM_MODULE_DATA")
	if moduleDataDir == "" {
		moduleDataDir = "/tmp"
	}
	paramsFile := findParamsFile(moduleDataDir, dis.logger)

	dis.logger.Infof("Discovered %d limbs", len(pairs))
	return []resource.Config{generateExecutorConfig(pairs, planner, paramsFile)}, nil
}

func (dis *verbTrajDiscovery) present(names []string, named func(string) resource.Name) []string {
	var found []string
	for _, name := range names {
		if _, err := dis.deps.Lookup(named(name)); err != nil {
			dis.logger.Debugf("Skipping %s: %v", name, err)
			continue
		}
		found = append(found, name)
	}
	return found
}

// sideOf guesses which side a component is mounted on from its name.
// "left-arm", "l_gripper" and "arm_left" are left; "right", "r" are right.
func sideOf(name string) (Side, bool) {
	tokens := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == ' ' || r == '/'
	})
	for _, tok := range tokens {
		switch tok {
		case "left", "l", "leftarm", "lgripper":
			return SideLeft, true
		case "right", "r", "rightarm", "rgripper":
			return SideRight, true
		}
	}
	return "", false
}

// pairLimbs assigns arms and grippers to sides. Named sides win; unnamed
// components fill the remaining sides in sorted order, left first.
func pairLimbs(arms, grippers []string) map[Side]limbPair {
	armSides := assignSides(arms)
	gripperSides := assignSides(grippers)

	pairs := map[Side]limbPair{}
	for _, side := range Sides {
		a, ok := armSides[side]
		if !ok {
			continue
		}
		g, ok := gripperSides[side]
		if !ok {
			continue
		}
		pairs[side] = limbPair{Arm: a, Gripper: g}
	}
	return pairs
}

func assignSides(names []string) map[Side]string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	out := map[Side]string{}
	var unsided []string
	for _, name := range sorted {
		side, ok := sideOf(name)
		if !ok {
			unsided = append(unsided, name)
			continue
		}
		if _, taken := out[side]; !taken {
			out[side] = name
		}
	}
	for _, side := range Sides {
		if len(unsided) == 0 {
			break
		}
		if _, taken := out[side]; !taken {
			out[side] = unsided[0]
			unsided = unsided[1:]
		}
	}
	return out
}

// generateExecutorConfig creates the executor service configuration for the
// discovered limbs.
func generateExecutorConfig(pairs map[Side]limbPair, planner, paramsFile string) resource.Config {
	attrs := map[string]interface{}{}
	if p, ok := pairs[SideLeft]; ok {
		attrs["left_arm"] = p.Arm
		attrs["left_gripper"] = p.Gripper
	}
	if p, ok := pairs[SideRight]; ok {
		attrs["right_arm"] = p.Arm
		attrs["right_gripper"] = p.Gripper
	}
	if planner != "" {
		attrs["planner"] = planner
	}
	if paramsFile != "" {
		attrs["params_file"] = paramsFile
	}

	return resource.Config{
		Name:       "verb-traj-executor",
		API:        generic.API,
		Model:      ExecutorModel,
		Attributes: attrs,
	}
}

// findParamsFile looks for the shared parameter file in moduleDataDir.
// Returns just the filename or empty string if not found.
func findParamsFile(moduleDataDir string, logger logging.Logger) string {
	path := filepath.Join(moduleDataDir, defaultParamsFile)
	if _, err := os.Stat(path); err == nil {
		logger.Debugf("Found params file: %s", defaultParamsFile)
		return defaultParamsFile
	}

	logger.Debug("No params file found")
	return ""
}
