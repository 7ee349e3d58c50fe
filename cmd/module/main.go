package main

import (
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/discovery"
	"go.viam.com/rdk/services/generic"

	verbtraj "verb_traj"
)

func main() {
	module.ModularMain(
		resource.APIModel{API: generic.API, Model: verbtraj.ExecutorModel},
		resource.APIModel{API: discovery.API, Model: verbtraj.DiscoveryModel},
	)
}
