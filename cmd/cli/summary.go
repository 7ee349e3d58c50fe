package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	verbtraj "verb_traj"
	"verb_traj/grasp"
)

func printSummary(w io.Writer, req verbtraj.ExecTrajectoryRequest) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("trajectory request (ik: %s)", req.IK)
	t.AppendHeader(table.Row{"arm", "poses", "min angle", "max angle", "close idx", "open idx"})
	for _, side := range verbtraj.Sides {
		poses := req.Traj.Poses(side)
		angles := req.Traj.Angles(side)
		if len(poses) == 0 {
			t.AppendRow(table.Row{side.String(), 0, "-", "-", "-", "-"})
			continue
		}
		lo, hi := angles[0], angles[0]
		for _, a := range angles {
			lo, hi = min(lo, a), max(hi, a)
		}
		t.AppendRow(table.Row{
			side.String(), len(poses),
			fmt.Sprintf("%.4f", lo), fmt.Sprintf("%.4f", hi),
			grasp.CloseIndex(angles), grasp.OpenIndex(angles),
		})
	}
	t.Render()
}

func printBodySummary(w io.Writer, body verbtraj.BodyTrajectory) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("planned body trajectory")
	t.AppendHeader(table.Row{"limb", "steps", "first", "last"})
	for _, side := range verbtraj.Sides {
		for _, limb := range []string{side.ArmLimb(), side.GripperLimb()} {
			rows, ok := body[limb]
			if !ok || len(rows) == 0 {
				continue
			}
			t.AppendRow(table.Row{limb, len(rows), formatRow(rows[0]), formatRow(rows[len(rows)-1])})
		}
	}
	t.Render()
}

func formatRow(row []float64) string {
	s := "["
	for i, v := range row {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%.3f", v)
	}
	return s + "]"
}
