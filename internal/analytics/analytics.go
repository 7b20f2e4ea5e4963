// Package analytics summarizes the event log across runs: how long stages
// take, how often checks pass, how often the gates retry, and how runs end.
package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
}

// StageDuration holds duration stats for a stage, in seconds.
type StageDuration struct {
	Stage string  `json:"stage"`
	Count int     `json:"count"`
	Avg   float64 `json:"avg_seconds"`
	P50   float64 `json:"p50_seconds"`
	P95   float64 `json:"p95_seconds"`
}

// CheckPassRate holds pass stats for one check in one stage.
type CheckPassRate struct {
	Stage     string  `json:"stage"`
	CheckName string  `json:"check_name"`
	Runs      int     `json:"runs"`
	Passed    float64 `json:"passed_pct"`
	FirstPass float64 `json:"first_pass_pct"`
}

// GateDecision counts how often a gate chose a label.
type GateDecision struct {
	Gate  string `json:"gate"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// RunOutcome counts finished runs by outcome.
type RunOutcome struct {
	Outcome string `json:"outcome"`
	Count   int    `json:"count"`
}

// sinceClause appends a timestamp filter when since is set.
func sinceClause(query, since string) (string, []interface{}) {
	if since == "" {
		return query, nil
	}
	return query + ` AND timestamp >= $1`, []interface{}{since}
}

// QueryStageDurations returns average and percentile durations per stage,
// taken from successful stage_finished events.
func QueryStageDurations(database DB, since string) ([]StageDuration, error) {
	query, args := sinceClause(`
		SELECT stage, detail FROM pipeline_events
		WHERE event = 'stage_finished'`, since)

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stage durations: %w", err)
	}
	defer rows.Close()

	stageDurations := make(map[string][]float64)
	for rows.Next() {
		var stage string
		var detail sql.NullString
		if err := rows.Scan(&stage, &detail); err != nil {
			return nil, fmt.Errorf("scan stage duration: %w", err)
		}
		raw, ok := strings.CutPrefix(detail.String, "duration=")
		if !ok {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			continue
		}
		stageDurations[stage] = append(stageDurations[stage], d.Seconds())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []StageDuration
	for stage, durations := range stageDurations {
		sort.Float64s(durations)
		results = append(results, StageDuration{
			Stage: stage,
			Count: len(durations),
			Avg:   avg(durations),
			P50:   percentile(durations, 50),
			P95:   percentile(durations, 95),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Stage < results[j].Stage
	})
	return results, nil
}

// QueryCheckPassRates returns per-check pass rates. FirstPass is the share of
// runs where the check passed on its first attempt.
func QueryCheckPassRates(database DB, since string) ([]CheckPassRate, error) {
	query, args := sinceClause(`
		SELECT stage, check_name,
			COUNT(*) AS runs,
			SUM(CASE WHEN passed THEN 1 ELSE 0 END) AS passed,
			SUM(CASE WHEN passed AND attempt = 1 THEN 1 ELSE 0 END) AS first_pass
		FROM check_runs
		WHERE 1 = 1`, since)
	query += ` GROUP BY stage, check_name ORDER BY stage, check_name`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query check pass rates: %w", err)
	}
	defer rows.Close()

	var results []CheckPassRate
	for rows.Next() {
		var r CheckPassRate
		var passed, firstPass int
		if err := rows.Scan(&r.Stage, &r.CheckName, &r.Runs, &passed, &firstPass); err != nil {
			return nil, fmt.Errorf("scan check pass rate: %w", err)
		}
		r.Passed = pct(passed, r.Runs)
		r.FirstPass = pct(firstPass, r.Runs)
		results = append(results, r)
	}
	return results, rows.Err()
}

// QueryGateDecisions counts gate labels. Details are stored as
// "gate: label -> next".
func QueryGateDecisions(database DB, since string) ([]GateDecision, error) {
	query, args := sinceClause(`
		SELECT detail FROM pipeline_events
		WHERE event = 'gate_decided'`, since)

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query gate decisions: %w", err)
	}
	defer rows.Close()

	type key struct{ gate, label string }
	counts := make(map[key]int)
	for rows.Next() {
		var detail sql.NullString
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("scan gate decision: %w", err)
		}
		gate, rest, ok := strings.Cut(detail.String, ": ")
		if !ok {
			continue
		}
		label, _, _ := strings.Cut(rest, " -> ")
		counts[key{gate, label}]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]GateDecision, 0, len(counts))
	for k, n := range counts {
		results = append(results, GateDecision{Gate: k.gate, Label: k.label, Count: n})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Gate != results[j].Gate {
			return results[i].Gate < results[j].Gate
		}
		return results[i].Label < results[j].Label
	})
	return results, nil
}

// QueryRunOutcomes counts finished runs by outcome.
func QueryRunOutcomes(database DB, since string) ([]RunOutcome, error) {
	query, args := sinceClause(`
		SELECT detail, COUNT(*) FROM pipeline_events
		WHERE event = 'run_finished'`, since)
	query += ` GROUP BY detail ORDER BY detail`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run outcomes: %w", err)
	}
	defer rows.Close()

	var results []RunOutcome
	for rows.Next() {
		var r RunOutcome
		var outcome sql.NullString
		if err := rows.Scan(&outcome, &r.Count); err != nil {
			return nil, fmt.Errorf("scan run outcome: %w", err)
		}
		r.Outcome = outcome.String
		results = append(results, r)
	}
	return results, rows.Err()
}

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

// percentile expects sorted input.
func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return math.Round(sorted[lower]*10) / 10
	}
	weight := rank - float64(lower)
	return math.Round((sorted[lower]*(1-weight)+sorted[upper]*weight)*10) / 10
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
