package analysis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"busrisk/internal/backends/git"
	"busrisk/internal/errors"
	"busrisk/internal/slogutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSource serves canned histories and tracks peak concurrency
type fakeSource struct {
	histories map[string][]git.HistoryEntry
	delay     time.Duration

	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeSource) FileHistory(ctx context.Context, path string) ([]git.HistoryEntry, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	h, ok := f.histories[path]
	if !ok {
		return nil, errors.New(errors.GitUnavailable, "Git command failed", fmt.Errorf("unknown path %s", path))
	}
	return h, nil
}

func TestRunner_Run(t *testing.T) {
	source := &fakeSource{
		histories: map[string][]git.HistoryEntry{
			"a.go":   twoCommitHistory,
			"b.go":   twoCommitHistory[:1],
			"bad.go": {{Commit: "c9", Author: "eve", Diff: "@@ -? +? @@\n+x\n"}},
		},
		delay: 5 * time.Millisecond,
	}

	r := NewRunner(newTestAnalyzer(t, ""), source, 2, slogutil.NewDiscardLogger())

	var mu sync.Mutex
	var seen []string
	r.OnFile = func(res *FileResult) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, res.Path)
	}

	result, err := r.Run(context.Background(), []string{"a.go", "missing.go", "bad.go", "b.go"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Files) != 2 || result.Files[0].Path != "a.go" || result.Files[1].Path != "b.go" {
		t.Errorf("Files = %v, want a.go, b.go in input order", paths(result.Files))
	}
	if len(seen) != 2 {
		t.Errorf("OnFile called %d times, want 2", len(seen))
	}

	if len(result.Failures) != 2 {
		t.Fatalf("Failures = %v, want 2", result.Failures)
	}
	if f := result.Failures[0]; f.Path != "missing.go" || f.Code() != errors.GitUnavailable {
		t.Errorf("Failures[0] = %v (%s), want missing.go GIT_UNAVAILABLE", f, f.Code())
	}
	if f := result.Failures[1]; f.Path != "bad.go" || f.Commit != "c9" || f.Code() != errors.ParseError {
		t.Errorf("Failures[1] = %v (%s), want bad.go PARSE_ERROR at c9", f, f.Code())
	}

	if peak := source.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestRunner_WorkerLimit(t *testing.T) {
	histories := map[string][]git.HistoryEntry{}
	var files []string
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("f%02d.go", i)
		histories[name] = twoCommitHistory
		files = append(files, name)
	}
	source := &fakeSource{histories: histories, delay: 10 * time.Millisecond}

	result, err := NewRunner(newTestAnalyzer(t, ""), source, 3, nil).Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Files) != 12 {
		t.Errorf("len(Files) = %d, want 12", len(result.Files))
	}
	if peak := source.peak.Load(); peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	source := &fakeSource{
		histories: map[string][]git.HistoryEntry{"a.go": twoCommitHistory},
		delay:     time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewRunner(newTestAnalyzer(t, ""), source, 1, nil).Run(ctx, []string{"a.go", "a.go"})
	if err != context.Canceled {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if len(result.Files) != 0 {
		t.Errorf("Files = %v, want none", paths(result.Files))
	}
}

func TestNewRunner_ClampsWorkers(t *testing.T) {
	r := NewRunner(newTestAnalyzer(t, ""), &fakeSource{}, 0, nil)
	if r.workers != 1 {
		t.Errorf("workers = %d, want 1", r.workers)
	}
}

func paths(files []*FileResult) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}
