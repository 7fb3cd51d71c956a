package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/rpalacios/regwatch/internal/db"
)

func main() {
	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool)

	statuses, err := store.ListSourceStatus(ctx)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Source Status")
	t.AppendHeader(table.Row{"Source", "Healthy", "Errors 24h", "Last Success", "Last Error", "Last Digest"})
	for _, st := range statuses {
		health := "OK"
		if st.Degraded {
			health = "DEGRADED"
		}
		t.AppendRow(table.Row{
			st.Source, health, st.ErrorCount24h,
			formatTime(st.LastSuccess), formatTime(st.LastError), formatTime(st.LastDigestSent),
		})
	}
	t.Render()

	runs, err := store.ListRuns(ctx, "", 10)
	if err != nil {
		log.Fatal(err)
	}

	rt := table.NewWriter()
	rt.SetOutputMirror(os.Stdout)
	rt.SetTitle("Recent Runs")
	rt.AppendHeader(table.Row{"Source", "Status", "Found", "Suppressed", "Persisted", "Summarized", "Errors", "Duration", "Started At"})
	for _, r := range runs {
		duration := "Running..."
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		rt.AppendRow(table.Row{
			r.Source, r.Status, r.Found, r.Suppressed, r.Persisted, r.Summarized, r.Errors,
			duration, r.StartedAt.Format("2006-01-02 15:04:05"),
		})
	}
	rt.Render()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
