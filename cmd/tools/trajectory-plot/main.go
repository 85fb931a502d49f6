// Command trajectory-plot renders an exercise profile's reference
// trajectory to a PNG for visual inspection of the stored movement shape.
package main

import (
	"flag"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/formsense/repcount/internal/db"
	"github.com/formsense/repcount/internal/profile"
)

var (
	dbFile   = flag.String("db", "repcount.db", "Path to the sqlite database")
	exercise = flag.String("exercise", "", "Exercise profile id or name to plot")
	output   = flag.String("out", "trajectory.png", "Output PNG path")
)

func main() {
	flag.Parse()

	if *exercise == "" {
		log.Fatal("Exercise id or name is required (-exercise)")
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	registry, err := profile.NewRegistry(database)
	if err != nil {
		log.Fatalf("Failed to load exercise profiles: %v", err)
	}

	prof, fallback := registry.Resolve(*exercise)
	if fallback {
		log.Fatalf("No profile matches %q", *exercise)
	}
	if len(prof.Reference) < 2 {
		log.Fatalf("Profile %s has no reference trajectory", prof.ID)
	}

	p := plot.New()
	p.Title.Text = prof.Name + " - Reference Trajectory"
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Joint angle (deg)"

	pts := make(plotter.XYs, 0, len(prof.Reference))
	for i, angle := range prof.Reference {
		pts = append(pts, plotter.XY{X: float64(i), Y: angle})
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		log.Fatalf("Failed to build line: %v", err)
	}
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add(prof.ID, line)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, *output); err != nil {
		log.Fatalf("Failed to save plot: %v", err)
	}
	log.Printf("Wrote %s (%d reference points)", *output, len(prof.Reference))
}
