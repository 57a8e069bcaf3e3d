package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/condmatlab/gateman/internal/model"
	"github.com/condmatlab/gateman/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printGateTable(g *model.Gate) {
	fmt.Printf("ID:         %s\n", g.ID)
	fmt.Printf("Label:      %s\n", g.Label())
	fmt.Printf("Role:       %s\n", g.Role)
	if g.Writable() {
		fmt.Printf("Write:      channel %d\n", *g.WriteIndex)
	}
	fmt.Printf("Read:       signal %d\n", g.ReadIndex)
	fmt.Printf("Bounds:     [%g V, %g V]\n", g.MinVoltage, g.MaxVoltage)
}

func printGateListTable(gates []*model.Gate) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tROLE\tBOUNDS")
	for _, g := range gates {
		bounds := fmt.Sprintf("[%g, %g]", g.MinVoltage, g.MaxVoltage)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.ID, g.Label(), g.Role, bounds)
	}
	w.Flush()
	fmt.Printf("\n%d gates\n", len(gates))
}

func printRunTable(r *model.Run) {
	fmt.Printf("ID:          %s\n", r.ID)
	fmt.Printf("Kind:        %s\n", r.Kind)
	fmt.Printf("State:       %s\n", ui.RenderState(r.State.String()))
	if r.Device != "" {
		fmt.Printf("Device:      %s\n", r.Device)
	}
	if r.Temperature != "" {
		fmt.Printf("Temperature: %s\n", r.Temperature)
	}
	switch r.Kind {
	case model.KindTime:
		fmt.Printf("Total Time:  %g s\n", r.TotalTime)
		fmt.Printf("Time Step:   %g s\n", r.TimeStep)
	default:
		fmt.Printf("X:           %s %g -> %g step %g %s\n",
			r.X.Label, r.X.Start, r.X.Stop, r.X.Step, r.VoltageUnit)
		if r.Y != nil {
			fmt.Printf("Y:           %s %g -> %g step %g %s\n",
				r.Y.Label, r.Y.Start, r.Y.Stop, r.Y.Step, r.VoltageUnit)
		}
	}
	fmt.Printf("Measured:    %s (%s)\n", r.Measured, r.CurrentUnit)
	if r.Model != "" {
		fmt.Printf("Model:       %s\n", r.Model)
	}
	if r.Comments != "" {
		fmt.Printf("Comments:    %s\n", r.Comments)
	}
	if r.DataFile != "" {
		fmt.Printf("Data File:   %s\n", r.DataFile)
	}
	if r.Error != "" {
		fmt.Printf("Error:       %s\n", r.Error)
	}
	if !r.StartedAt.IsZero() {
		fmt.Printf("Started At:  %s\n", r.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if r.FinishedAt != nil {
		fmt.Printf("Finished At: %s\n", r.FinishedAt.Format("2006-01-02 15:04:05"))
	}
}

func printRunListTable(runs []*model.Run, total int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSTATE\tGATES\tMEASURED\tSTARTED")
	for _, r := range runs {
		gates := r.X.Label
		if r.Kind == model.KindTime {
			gates = "-"
		}
		started := ""
		if !r.StartedAt.IsZero() {
			started = r.StartedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Kind, ui.RenderState(r.State.String()), gates, r.Measured, started)
	}
	w.Flush()
	fmt.Printf("\n%d runs (%d total)\n", len(runs), total)
}

func printPointsTable(points []model.Point) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tX\tY\tVALUE")
	for _, p := range points {
		fmt.Fprintf(w, "%d\t%g\t%g\t%g\n", p.Index, p.X, p.Y, p.Value)
	}
	w.Flush()
	fmt.Printf("\n%d points\n", len(points))
}

func printEventsTable(events []*model.Event) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTOPIC\tACTOR")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Topic, e.Actor)
	}
	w.Flush()
	fmt.Printf("\n%d events\n", len(events))
}
