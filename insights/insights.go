// Package insights derives advisory notices from a store snapshot. It is a
// pure read-only view: it holds no state and never mutates the snapshot.
package insights

import (
	"fmt"
	"math"
	"time"

	"opsboard/store"
)

type Insight struct {
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Compute scans projects, team, clients and orders for anything worth
// surfacing on the dashboard. Always returns at least one entry.
func Compute(snapshot map[string]any) []Insight {
	return compute(snapshot, time.Now())
}

func compute(snapshot map[string]any, now time.Time) []Insight {
	var out []Insight

	for _, p := range records(snapshot, "projects") {
		if str(p, "status") == "completed" {
			continue
		}
		deadline, ok := parseDate(str(p, "deadline"))
		if !ok {
			continue
		}
		daysLeft := int(math.Ceil(deadline.Sub(now).Hours() / 24))
		if daysLeft >= 14 {
			continue
		}
		priority := "medium"
		if daysLeft < 7 {
			priority = "high"
		}
		progress := num(p, "progress")
		note := "On track for closing."
		if progress < 50 {
			note = "Behind schedule!"
		}
		out = append(out, Insight{
			Type:     "deadline",
			Priority: priority,
			Title:    fmt.Sprintf("%q due in %d days", str(p, "name"), daysLeft),
			Description: fmt.Sprintf("Deadline: %s. Progress: %.0f%%. %s",
				str(p, "deadline"), progress, note),
		})
	}

	for _, t := range records(snapshot, "team") {
		if workload := num(t, "workload"); workload > 80 {
			out = append(out, Insight{
				Type:        "workload",
				Priority:    "high",
				Title:       fmt.Sprintf("%s is at %.0f%% workload", str(t, "name"), workload),
				Description: "Redistribute tasks to avoid burnout.",
			})
		}
	}

	for _, c := range records(snapshot, "clients") {
		if str(c, "status") == "pending" {
			out = append(out, Insight{
				Type:        "client",
				Priority:    "medium",
				Title:       fmt.Sprintf("%q awaiting follow-up", str(c, "name")),
				Description: fmt.Sprintf("Potential value: %.2f. Reach out.", num(c, "value")),
			})
		}
	}

	processing := 0
	for _, o := range records(snapshot, "orders") {
		if str(o, "status") == "processing" {
			processing++
		}
	}
	if processing > 0 {
		out = append(out, Insight{
			Type:        "orders",
			Priority:    "medium",
			Title:       fmt.Sprintf("%d shop orders awaiting fulfilment", processing),
			Description: "Orders are in processing state. Check the orders board.",
		})
	}

	if len(out) == 0 {
		out = append(out, Insight{
			Type:        "ok",
			Priority:    "low",
			Title:       "All clear",
			Description: "Nothing needs attention.",
		})
	}
	return out
}

func records(snapshot map[string]any, name string) []store.Record {
	rs, _ := snapshot[name].([]store.Record)
	return rs
}

func str(r store.Record, key string) string {
	s, _ := r[key].(string)
	return s
}

func num(r store.Record, key string) float64 {
	switch n := r[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
