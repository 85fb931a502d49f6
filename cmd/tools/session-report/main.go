// Command session-report renders a recorded session's rep history to a
// standalone HTML page: per-rep form scores alongside the angular range of
// each counted cycle.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/formsense/repcount/internal/db"
)

var (
	dbFile    = flag.String("db", "repcount.db", "Path to the sqlite database")
	sessionID = flag.String("session", "", "Session id to report on")
	output    = flag.String("out", "session-report.html", "Output HTML path")
)

func main() {
	flag.Parse()

	if *sessionID == "" {
		log.Fatal("Session id is required (-session)")
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	events, err := database.RepEventsForSession(*sessionID)
	if err != nil {
		log.Fatalf("Failed to query rep events: %v", err)
	}
	if len(events) == 0 {
		log.Fatalf("No rep events recorded for session %s", *sessionID)
	}

	labels := make([]string, 0, len(events))
	formData := make([]opts.LineData, 0, len(events))
	rangeData := make([]opts.BarData, 0, len(events))
	for _, e := range events {
		labels = append(labels, fmt.Sprintf("Rep %d", e.RepNumber))
		formData = append(formData, opts.LineData{Value: e.FormScore})
		rangeData = append(rangeData, opts.BarData{Value: e.CycleRange})
	}

	formChart := charts.NewLine()
	formChart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Form Score per Rep",
			Subtitle: fmt.Sprintf("session=%s exercise=%s reps=%d", *sessionID, events[0].ExerciseID, len(events)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "Score"}),
	)
	formChart.SetXAxis(labels).
		AddSeries("form score", formData, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	rangeChart := charts.NewBar()
	rangeChart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Cycle Range per Rep"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Range (deg)"}),
	)
	rangeChart.SetXAxis(labels).AddSeries("cycle range", rangeData)

	page := components.NewPage()
	page.AddCharts(formChart, rangeChart)

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}
	log.Printf("Wrote %s (%d reps)", *output, len(events))
}
