// Package predictor learns first-order transition frequencies between
// git operations from the coordinator's event log and advises on
// likely upcoming operations and the lock scope they will need.
// Advice is strictly advisory: no lock is ever warmed up or held on
// behalf of a prediction.
package predictor

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"gitgate/pkg/eventlog"
	"gitgate/pkg/lockscope"
	"gitgate/pkg/protocol"
)

// Config holds Predictor configuration.
type Config struct {
	DB          *sql.DB // state database (required)
	Confidence  float64 // minimum confidence to report (default 0.70)
	Lookahead   int     // max predictions returned (default 3)
	LearnWindow int     // completed operations scanned per learning pass (default 100)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Confidence == 0 {
		out.Confidence = protocol.DefaultConfidenceThreshold
	}
	if out.Lookahead == 0 {
		out.Lookahead = protocol.DefaultLookahead
	}
	if out.LearnWindow == 0 {
		out.LearnWindow = protocol.DefaultLearnWindow
	}
	return out
}

// Predictor learns and serves operation-sequence predictions.
type Predictor struct {
	cfg    Config
	reader *eventlog.Reader
}

// New returns a Predictor over cfg.DB with defaults applied.
func New(cfg Config) *Predictor {
	c := cfg.withDefaults()
	return &Predictor{cfg: c, reader: eventlog.NewReaderFromDB(c.DB)}
}

// opLabel normalizes an operation description ("git status --short")
// to the subcommand label the pattern store keys on ("status").
func opLabel(operation string) string {
	s := strings.TrimPrefix(operation, "git ")
	fields := strings.Fields(s)
	sub, _ := lockscope.SplitSubcommand(fields)
	if sub == "" {
		return ""
	}
	return strings.ToLower(sub)
}

// Learn scans the most recent completed operations, increments each
// adjacent transition count, then prunes entries with fewer than two
// occurrences. Counts accumulate across passes; pruning is the only
// decay. Returns the number of transitions counted and rows pruned.
func (p *Predictor) Learn(ctx context.Context) (learned, pruned int, err error) {
	ops, err := p.reader.RecentOperations(ctx, p.cfg.LearnWindow)
	if err != nil {
		return 0, 0, fmt.Errorf("load recent operations: %w", err)
	}

	for i := 0; i+1 < len(ops); i++ {
		from, to := opLabel(ops[i]), opLabel(ops[i+1])
		if from == "" || to == "" {
			continue
		}
		_, err := p.cfg.DB.ExecContext(ctx,
			`INSERT INTO patterns (from_op, to_op, count) VALUES (?, ?, 1)
			 ON CONFLICT(from_op, to_op) DO UPDATE SET count = count + 1`,
			from, to,
		)
		if err != nil {
			return learned, 0, fmt.Errorf("record transition %s->%s: %w", from, to, err)
		}
		learned++
	}

	res, err := p.cfg.DB.ExecContext(ctx, `DELETE FROM patterns WHERE count < 2`)
	if err != nil {
		return learned, 0, fmt.Errorf("prune patterns: %w", err)
	}
	n, _ := res.RowsAffected()
	return learned, int(n), nil
}

// Predict returns up to Lookahead candidates for the operation likely
// to follow current, each with confidence = count(A→B)/count(A→*),
// descending, and only when confidence meets the threshold.
func (p *Predictor) Predict(ctx context.Context, current string) ([]protocol.Prediction, error) {
	from := opLabel(current)
	if from == "" {
		from = strings.ToLower(strings.TrimSpace(current))
	}

	rows, err := p.cfg.DB.QueryContext(ctx,
		`SELECT to_op, count FROM patterns WHERE from_op = ?`, from)
	if err != nil {
		return nil, fmt.Errorf("query patterns for %s: %w", from, err)
	}
	defer rows.Close()

	type cand struct {
		op    string
		count int
	}
	var cands []cand
	total := 0
	for rows.Next() {
		var c cand
		if err := rows.Scan(&c.op, &c.count); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		cands = append(cands, c)
		total += c.count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	var preds []protocol.Prediction
	for _, c := range cands {
		conf := float64(c.count) / float64(total)
		if conf < p.cfg.Confidence {
			continue
		}
		preds = append(preds, protocol.Prediction{
			Operation:  c.op,
			Confidence: conf,
			Scope:      lockscope.Classify(c.op, nil),
		})
	}
	sort.Slice(preds, func(i, j int) bool {
		if preds[i].Confidence != preds[j].Confidence {
			return preds[i].Confidence > preds[j].Confidence
		}
		return preds[i].Operation < preds[j].Operation
	})
	if len(preds) > p.cfg.Lookahead {
		preds = preds[:p.cfg.Lookahead]
	}
	return preds, nil
}

// Preacquire returns the predictions for current with their resolved
// scopes, for logging by the caller. It performs no lock warm-up: a
// prediction never holds or blocks a lock.
func (p *Predictor) Preacquire(ctx context.Context, current string) ([]protocol.Prediction, error) {
	return p.Predict(ctx, current)
}

// Patterns returns the full pattern store, highest count first.
func (p *Predictor) Patterns(ctx context.Context) ([]protocol.PatternEntry, error) {
	rows, err := p.cfg.DB.QueryContext(ctx,
		`SELECT from_op, to_op, count FROM patterns ORDER BY count DESC, from_op, to_op`)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	var out []protocol.PatternEntry
	for rows.Next() {
		var e protocol.PatternEntry
		if err := rows.Scan(&e.FromOperation, &e.ToOperation, &e.Count); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Reset clears the pattern store.
func (p *Predictor) Reset(ctx context.Context) error {
	if _, err := p.cfg.DB.ExecContext(ctx, `DELETE FROM patterns`); err != nil {
		return fmt.Errorf("reset patterns: %w", err)
	}
	return nil
}
