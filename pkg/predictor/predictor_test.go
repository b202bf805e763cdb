package predictor

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"testing"

	"gitgate/pkg/protocol"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(protocol.SchemaDDL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func insertPattern(t *testing.T, db *sql.DB, from, to string, count int) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO patterns (from_op, to_op, count) VALUES (?, ?, ?)`, from, to, count); err != nil {
		t.Fatalf("insert pattern: %v", err)
	}
}

func insertAcquire(t *testing.T, db *sql.DB, operation string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO events (type, lock_scope, lock_file, operation, duration_ms, pid) VALUES ('acquire', 'worktree', '/locks/x.lock', ?, 1, 1)`,
		operation,
	)
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}
}

func TestPredictConfidenceThreshold(t *testing.T) {
	db := setupDB(t)
	insertPattern(t, db, "add", "commit", 7)
	insertPattern(t, db, "add", "status", 3)

	// Default threshold 0.70: only commit (7/10 = 0.70) qualifies.
	p := New(Config{DB: db})
	preds, err := p.Predict(context.Background(), "add")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(preds) != 1 {
		t.Fatalf("expected 1 prediction at threshold 0.70, got %d: %+v", len(preds), preds)
	}
	if preds[0].Operation != "commit" {
		t.Errorf("predicted %s, want commit", preds[0].Operation)
	}
	if math.Abs(preds[0].Confidence-0.70) > 1e-9 {
		t.Errorf("confidence = %v, want 0.70", preds[0].Confidence)
	}
	if preds[0].Scope != protocol.ScopeWorktree {
		t.Errorf("commit scope = %v, want worktree", preds[0].Scope)
	}

	// Lower threshold: both candidates, ordered by confidence.
	loose := New(Config{DB: db, Confidence: 0.29})
	preds, err = loose.Predict(context.Background(), "add")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(preds) != 2 {
		t.Fatalf("expected 2 predictions at threshold 0.29, got %d", len(preds))
	}
	if preds[0].Operation != "commit" || preds[1].Operation != "status" {
		t.Errorf("order = %s, %s; want commit, status", preds[0].Operation, preds[1].Operation)
	}
}

func TestPredictLookaheadCap(t *testing.T) {
	db := setupDB(t)
	insertPattern(t, db, "commit", "push", 10)
	insertPattern(t, db, "commit", "status", 10)
	insertPattern(t, db, "commit", "diff", 10)
	insertPattern(t, db, "commit", "pull", 10)

	p := New(Config{DB: db, Confidence: 0.01, Lookahead: 3})
	preds, err := p.Predict(context.Background(), "git commit -m x")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(preds) != 3 {
		t.Errorf("expected lookahead cap of 3, got %d", len(preds))
	}
}

func TestPredictResolvesGlobalScope(t *testing.T) {
	db := setupDB(t)
	insertPattern(t, db, "commit", "push", 9)

	p := New(Config{DB: db})
	preds, err := p.Predict(context.Background(), "commit")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(preds) != 1 || preds[0].Scope != protocol.ScopeGlobal {
		t.Errorf("push should resolve to global scope: %+v", preds)
	}
}

func TestPredictUnknownOperation(t *testing.T) {
	p := New(Config{DB: setupDB(t)})
	preds, err := p.Predict(context.Background(), "bisect")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(preds) != 0 {
		t.Errorf("expected no predictions for unseen operation, got %+v", preds)
	}
}

func TestLearnCountsTransitionsAndPrunes(t *testing.T) {
	db := setupDB(t)
	// Sequence: status, add, commit, status, add, commit, push
	for _, op := range []string{
		"git status", "git add .", "git commit -m a",
		"git status", "git add .", "git commit -m b",
		"git push origin main",
	} {
		insertAcquire(t, db, op)
	}

	p := New(Config{DB: db})
	learned, pruned, err := p.Learn(context.Background())
	if err != nil {
		t.Fatalf("Learn failed: %v", err)
	}
	if learned != 6 {
		t.Errorf("learned = %d, want 6 transitions", learned)
	}
	// status->add ×2, add->commit ×2 survive; commit->status ×1 and
	// commit->push ×1 are pruned.
	if pruned != 2 {
		t.Errorf("pruned = %d, want 2", pruned)
	}

	patterns, err := p.Patterns(context.Background())
	if err != nil {
		t.Fatalf("Patterns failed: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("expected 2 surviving patterns, got %+v", patterns)
	}
	for _, e := range patterns {
		if e.Count != 2 {
			t.Errorf("pattern %s->%s count = %d, want 2", e.FromOperation, e.ToOperation, e.Count)
		}
	}
}

func TestLearnAccumulatesAcrossPasses(t *testing.T) {
	db := setupDB(t)
	for _, op := range []string{"git add .", "git commit -m a", "git add x", "git commit -m b"} {
		insertAcquire(t, db, op)
	}

	p := New(Config{DB: db})
	if _, _, err := p.Learn(context.Background()); err != nil {
		t.Fatalf("first Learn failed: %v", err)
	}
	if _, _, err := p.Learn(context.Background()); err != nil {
		t.Fatalf("second Learn failed: %v", err)
	}

	patterns, err := p.Patterns(context.Background())
	if err != nil {
		t.Fatalf("Patterns failed: %v", err)
	}
	found := false
	for _, e := range patterns {
		if e.FromOperation == "add" && e.ToOperation == "commit" {
			found = true
			if e.Count != 4 { // 2 per pass
				t.Errorf("add->commit count = %d, want 4", e.Count)
			}
		}
	}
	if !found {
		t.Fatalf("add->commit not found in %+v", patterns)
	}
}

func TestAccuracy(t *testing.T) {
	db := setupDB(t)
	// History: add, commit, add, commit, add, push
	for _, op := range []string{
		"git add .", "git commit -m a",
		"git add .", "git commit -m b",
		"git add .", "git push",
	} {
		insertAcquire(t, db, op)
	}
	insertPattern(t, db, "add", "commit", 2)
	insertPattern(t, db, "commit", "add", 2)

	p := New(Config{DB: db})
	report, err := p.Accuracy(context.Background())
	if err != nil {
		t.Fatalf("Accuracy failed: %v", err)
	}
	// Evaluated transitions: add->commit (hit), commit->add (hit),
	// add->commit (hit), commit->add (hit), add->push (miss) = 4/5.
	if report.Evaluated != 5 {
		t.Fatalf("evaluated = %d, want 5", report.Evaluated)
	}
	if report.Hits != 4 {
		t.Errorf("hits = %d, want 4", report.Hits)
	}
	if report.Percent != 80 {
		t.Errorf("percent = %v, want 80", report.Percent)
	}
	if report.Degraded {
		t.Error("80%% accuracy should not be degraded")
	}
}

func TestAccuracyDegradedBelow70(t *testing.T) {
	db := setupDB(t)
	for _, op := range []string{"git add .", "git push", "git add .", "git pull"} {
		insertAcquire(t, db, op)
	}
	insertPattern(t, db, "add", "commit", 5)

	p := New(Config{DB: db})
	report, err := p.Accuracy(context.Background())
	if err != nil {
		t.Fatalf("Accuracy failed: %v", err)
	}
	if report.Hits != 0 || !report.Degraded {
		t.Errorf("expected degraded report with 0 hits, got %+v", report)
	}
}

func TestWorkflowsFollowTopSuccessors(t *testing.T) {
	db := setupDB(t)
	insertPattern(t, db, "add", "commit", 10)
	insertPattern(t, db, "commit", "push", 8)
	insertPattern(t, db, "status", "add", 4)

	p := New(Config{DB: db})
	flows, err := p.Workflows(context.Background())
	if err != nil {
		t.Fatalf("Workflows failed: %v", err)
	}
	if len(flows) == 0 {
		t.Fatal("expected at least one workflow")
	}
	top := flows[0]
	want := []string{"add", "commit", "push"}
	if len(top.Steps) != len(want) {
		t.Fatalf("top workflow steps = %v, want %v", top.Steps, want)
	}
	for i := range want {
		if top.Steps[i] != want[i] {
			t.Errorf("step %d = %s, want %s", i, top.Steps[i], want[i])
		}
	}
	if top.Support != 8 { // weakest link commit->push
		t.Errorf("support = %d, want 8", top.Support)
	}
}

func TestReset(t *testing.T) {
	db := setupDB(t)
	insertPattern(t, db, "add", "commit", 5)

	p := New(Config{DB: db})
	if err := p.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	patterns, err := p.Patterns(context.Background())
	if err != nil {
		t.Fatalf("Patterns failed: %v", err)
	}
	if len(patterns) != 0 {
		t.Errorf("expected empty store after reset, got %+v", patterns)
	}
}

func TestOpLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"git status --short", "status"},
		{"git -C /repo push origin main", "push"},
		{"commit", "commit"},
		{"git ", ""},
	}
	for _, tt := range tests {
		if got := opLabel(tt.in); got != tt.want {
			t.Errorf("opLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
