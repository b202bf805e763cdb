package predictor

import (
	"context"
	"fmt"
	"sort"
)

// AccuracyReport describes how well the top prediction matched the
// operation that actually followed, over the trailing window.
type AccuracyReport struct {
	Window    int     // operations examined
	Evaluated int     // transitions with a prediction available
	Hits      int     // top prediction matched the actual successor
	Percent   float64 // Hits/Evaluated × 100; 0 when nothing evaluated
	Degraded  bool    // true below 70%
}

// Accuracy replays the trailing operation window against the current
// pattern store: for each historical operation with a learned
// successor, it checks whether the highest-count successor matched
// what actually came next. Accuracy below 70% is flagged degraded.
func (p *Predictor) Accuracy(ctx context.Context) (*AccuracyReport, error) {
	ops, err := p.reader.RecentOperations(ctx, p.cfg.LearnWindow)
	if err != nil {
		return nil, fmt.Errorf("load recent operations: %w", err)
	}

	top, err := p.topSuccessors(ctx)
	if err != nil {
		return nil, err
	}

	report := &AccuracyReport{Window: len(ops)}
	for i := 0; i+1 < len(ops); i++ {
		from, actual := opLabel(ops[i]), opLabel(ops[i+1])
		predicted, ok := top[from]
		if !ok {
			continue
		}
		report.Evaluated++
		if predicted == actual {
			report.Hits++
		}
	}
	if report.Evaluated > 0 {
		report.Percent = float64(report.Hits) / float64(report.Evaluated) * 100
	}
	report.Degraded = report.Evaluated > 0 && report.Percent < 70
	return report, nil
}

// topSuccessors maps each from_op to its single highest-count
// successor.
func (p *Predictor) topSuccessors(ctx context.Context) (map[string]string, error) {
	rows, err := p.cfg.DB.QueryContext(ctx,
		`SELECT from_op, to_op, count FROM patterns ORDER BY from_op, count DESC, to_op`)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	top := make(map[string]string)
	for rows.Next() {
		var from, to string
		var count int
		if err := rows.Scan(&from, &to, &count); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		if _, seen := top[from]; !seen {
			top[from] = to
		}
	}
	return top, rows.Err()
}

// Workflow is a recurring chain of operations reconstructed from the
// pattern store by following each step's most likely successor.
type Workflow struct {
	Steps   []string
	Support int // count of the weakest link in the chain
}

// Workflows reconstructs up to five common operation chains (length
// ≤ 3 hops) by starting from the strongest transitions and following
// top successors without revisiting a step.
func (p *Predictor) Workflows(ctx context.Context) ([]Workflow, error) {
	entries, err := p.Patterns(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	top, err := p.topSuccessors(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[[2]string]int, len(entries))
	for _, e := range entries {
		counts[[2]string{e.FromOperation, e.ToOperation}] = e.Count
	}

	var flows []Workflow
	seenStart := make(map[string]bool)
	for _, e := range entries {
		if seenStart[e.FromOperation] {
			continue
		}
		seenStart[e.FromOperation] = true

		steps := []string{e.FromOperation, e.ToOperation}
		support := e.Count
		visited := map[string]bool{e.FromOperation: true, e.ToOperation: true}
		cur := e.ToOperation
		for len(steps) < 4 {
			next, ok := top[cur]
			if !ok || visited[next] {
				break
			}
			support = min(support, counts[[2]string{cur, next}])
			steps = append(steps, next)
			visited[next] = true
			cur = next
		}
		flows = append(flows, Workflow{Steps: steps, Support: support})
		if len(flows) == 5 {
			break
		}
	}

	sort.Slice(flows, func(i, j int) bool { return flows[i].Support > flows[j].Support })
	return flows, nil
}
