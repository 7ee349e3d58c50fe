package verb_traj

import (
	"context"
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// duplicateTolerance is the joint distance under which two solutions are the same.
const duplicateTolerance = 1e-6

// GraphSearchIK collects several IK solutions per pose and picks the cheapest
// path through them. Moving between solutions costs their joint distance and
// visiting a solution in collision costs CollisionCost.
type GraphSearchIK struct {
	CollisionCost float64
}

func (g *GraphSearchIK) Name() string { return StrategyGraphSearch }

func (g *GraphSearchIK) Solve(ctx context.Context, rc *RobotContext, side Side, poses []Pose) ([][]float64, error) {
	start, err := rc.CurrentJoints(ctx, side)
	if err != nil {
		return nil, err
	}

	layers := make([][][]float64, 0, len(poses))
	seeds := [][]float64{start}
	for i, target := range rc.SpatialPoses(poses) {
		var layer [][]float64
		for _, seed := range seeds {
			sols, err := rc.IK.Solutions(ctx, side, target, seed)
			if err != nil {
				return nil, err
			}
			for _, sol := range sols {
				layer = appendUnique(layer, sol)
			}
			if len(layer) >= rc.maxSolutions() {
				layer = layer[:rc.maxSolutions()]
				break
			}
		}
		if len(layer) == 0 {
			rc.Logger.Warnf("%s arm: no ik solutions for pose %d of %d", side, i, len(poses))
			return nil, nil
		}
		layers = append(layers, layer)
		seeds = layer
	}

	costs := make([][]float64, len(layers))
	for i, layer := range layers {
		costs[i] = make([]float64, len(layer))
		if rc.Collisions == nil {
			continue
		}
		for j, sol := range layer {
			hit, err := rc.Collisions.InCollision(ctx, side, sol)
			if err != nil {
				return nil, err
			}
			if hit {
				costs[i][j] = g.CollisionCost
			}
		}
	}

	traj, cost := cheapestPath(start, layers, costs)
	if traj != nil {
		rc.Logger.Infof("lowest cost of initial trajs: %.4f", cost)
	}
	return traj, nil
}

// cheapestPath runs Dijkstra over a layered graph. Layer i holds the candidate
// configurations for timestep i and costs[i][j] is the cost of visiting
// layers[i][j]. A virtual source sits at start and a virtual sink follows the
// last layer.
func cheapestPath(start []float64, layers [][][]float64, costs [][]float64) ([][]float64, float64) {
	if len(layers) == 0 {
		return nil, 0
	}
	g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	source := simple.Node(0)
	g.AddNode(source)

	joints := map[int64][]float64{}
	var next int64 = 1
	prev := []simple.Node{source}
	prevJoints := [][]float64{start}
	for i, layer := range layers {
		cur := make([]simple.Node, len(layer))
		for j, sol := range layer {
			n := simple.Node(next)
			next++
			g.AddNode(n)
			joints[n.ID()] = sol
			cur[j] = n
			for k, p := range prev {
				w := jointDistance(prevJoints[k], sol) + costs[i][j]
				g.SetWeightedEdge(g.NewWeightedEdge(p, n, w))
			}
		}
		prev, prevJoints = cur, layer
	}
	sink := simple.Node(next)
	g.AddNode(sink)
	for _, p := range prev {
		g.SetWeightedEdge(g.NewWeightedEdge(p, sink, 0))
	}

	shortest := path.DijkstraFrom(source, g)
	nodes, weight := shortest.To(sink.ID())
	if len(nodes) < 3 {
		return nil, 0
	}
	traj := make([][]float64, 0, len(nodes)-2)
	for _, n := range nodes[1 : len(nodes)-1] {
		traj = append(traj, joints[n.ID()])
	}
	return traj, weight
}

func appendUnique(set [][]float64, sol []float64) [][]float64 {
	for _, s := range set {
		if len(s) == len(sol) && jointDistance(s, sol) < duplicateTolerance {
			return set
		}
	}
	return append(set, sol)
}
