package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sdejongh/contentsync/pkg/events"
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/ratelimit"
	"github.com/sdejongh/contentsync/pkg/storage"
)

// crossDevice forces the copy-then-delete path of a move
type crossDevice struct {
	*storage.Local
	renames int
}

func (c *crossDevice) RenameFrom(ctx context.Context, source storage.Backend, path string) error {
	c.renames++
	return fmt.Errorf("rename %s: %w", path, storage.ErrCrossDevice)
}

type testEnv struct {
	srcRoot string
	dstRoot string
	source  *storage.Local
	target  *storage.Local
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{srcRoot: t.TempDir(), dstRoot: t.TempDir()}
	var err error
	if env.source, err = storage.NewLocal(env.srcRoot); err != nil {
		t.Fatalf("NewLocal(source) error = %v", err)
	}
	if env.target, err = storage.NewLocal(env.dstRoot); err != nil {
		t.Fatalf("NewLocal(target) error = %v", err)
	}
	return env
}

var fixedTime = time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)

// add writes a source file and returns its selection entry
func (env *testEnv) add(t *testing.T, rel, content string) models.SourceEntry {
	t.Helper()
	rel = filepath.FromSlash(rel)
	full := filepath.Join(env.srcRoot, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0640); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(full, fixedTime, fixedTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return models.SourceEntry{
		RelativePath: rel,
		AbsolutePath: full,
		Size:         int64(len(content)),
		ModTime:      fixedTime,
		Permissions:  0640,
		Digest:       models.Digest("d-" + rel),
	}
}

func readTarget(t *testing.T, env *testEnv, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(env.dstRoot, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("target file %s: %v", rel, err)
	}
	return string(data)
}

func sourceExists(env *testEnv, rel string) bool {
	_, err := os.Stat(filepath.Join(env.srcRoot, filepath.FromSlash(rel)))
	return err == nil
}

func newExecutor(t *testing.T, source, target storage.Backend, opts Options, sink events.Sink) *Executor {
	t.Helper()
	x, err := New(source, target, opts, sink)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return x
}

func TestNewRejectsCompare(t *testing.T) {
	env := newEnv(t)
	if _, err := New(env.source, env.target, Options{Mode: models.ModeCompare}, nil); err == nil {
		t.Error("New() should reject compare mode")
	}
}

func TestCopy(t *testing.T) {
	env := newEnv(t)
	selection := models.Selection{
		env.add(t, "a.txt", "alpha"),
		env.add(t, "deep/nested/b.txt", "beta"),
	}
	rec := &events.Recorder{}

	x := newExecutor(t, env.source, env.target, Options{Mode: models.ModeCopy}, rec)
	outcome, failures := x.Execute(context.Background(), selection, 5)

	if len(failures) != 0 {
		t.Fatalf("failures = %+v", failures)
	}
	want := models.Outcome{Transferred: 2, Skipped: 3, Remaining: 5, BytesTransferred: 9}
	if outcome != want {
		t.Errorf("outcome = %+v, want %+v", outcome, want)
	}

	if readTarget(t, env, "a.txt") != "alpha" || readTarget(t, env, "deep/nested/b.txt") != "beta" {
		t.Error("target content mismatch")
	}
	if !sourceExists(env, "a.txt") {
		t.Error("copy must leave the source intact")
	}

	info, err := os.Stat(filepath.Join(env.dstRoot, "a.txt"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !info.ModTime().Equal(fixedTime) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), fixedTime)
	}

	if rec.Count(events.KindFileTransferred) != 2 {
		t.Errorf("file_transferred events = %d, want 2", rec.Count(events.KindFileTransferred))
	}
}

func TestCopyOverwritesDifferentContentAtSamePath(t *testing.T) {
	env := newEnv(t)
	entry := env.add(t, "same.txt", "new content")
	os.WriteFile(filepath.Join(env.dstRoot, "same.txt"), []byte("old"), 0644)

	x := newExecutor(t, env.source, env.target, Options{Mode: models.ModeCopy}, nil)
	if _, failures := x.Execute(context.Background(), models.Selection{entry}, 1); len(failures) != 0 {
		t.Fatalf("failures = %+v", failures)
	}
	if got := readTarget(t, env, "same.txt"); got != "new content" {
		t.Errorf("target = %q, want the source content", got)
	}
}

func TestMove(t *testing.T) {
	env := newEnv(t)
	selection := models.Selection{
		env.add(t, "m1.txt", "one"),
		env.add(t, "sub/m2.txt", "two"),
	}

	x := newExecutor(t, env.source, env.target, Options{Mode: models.ModeMove}, nil)
	outcome, failures := x.Execute(context.Background(), selection, 4)

	if len(failures) != 0 {
		t.Fatalf("failures = %+v", failures)
	}
	if outcome.Transferred != 2 || outcome.Remaining != 2 || outcome.Skipped != 2 {
		t.Errorf("outcome = %+v", outcome)
	}
	if sourceExists(env, "m1.txt") || sourceExists(env, "sub/m2.txt") {
		t.Error("moved files must be gone from the source")
	}
	if readTarget(t, env, "sub/m2.txt") != "two" {
		t.Error("moved content mismatch")
	}
}

func TestMoveCrossDeviceFallback(t *testing.T) {
	env := newEnv(t)
	entry := env.add(t, "x/far.bin", "payload")
	target := &crossDevice{Local: env.target}

	x := newExecutor(t, env.source, target, Options{Mode: models.ModeMove}, nil)
	outcome, failures := x.Execute(context.Background(), models.Selection{entry}, 1)

	if len(failures) != 0 {
		t.Fatalf("failures = %+v", failures)
	}
	if target.renames != 1 {
		t.Errorf("rename attempts = %d, want 1", target.renames)
	}
	if outcome.Transferred != 1 || outcome.Remaining != 0 {
		t.Errorf("outcome = %+v", outcome)
	}
	if sourceExists(env, "x/far.bin") {
		t.Error("fallback must delete the source after copying")
	}
	if readTarget(t, env, "x/far.bin") != "payload" {
		t.Error("fallback content mismatch")
	}
}

func TestFailurePolicies(t *testing.T) {
	tests := []struct {
		name            string
		policy          models.FailurePolicy
		wantTransferred int
		wantFailed      int
		wantSkipped     int
	}{
		{"best effort continues", models.PolicyBestEffort, 2, 1, 0},
		{"abort stops at first failure", models.PolicyAbortOnError, 1, 1, 1},
		{"empty policy is best effort", "", 2, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			selection := models.Selection{
				env.add(t, "1.txt", "one"),
				env.add(t, "2.txt", "two"),
				env.add(t, "3.txt", "three"),
			}
			// Vanishes after hashing
			os.Remove(filepath.Join(env.srcRoot, "2.txt"))

			rec := &events.Recorder{}
			x := newExecutor(t, env.source, env.target, Options{Mode: models.ModeCopy, Policy: tt.policy}, rec)
			outcome, failures := x.Execute(context.Background(), selection, 3)

			if outcome.Transferred != tt.wantTransferred || outcome.Failed != tt.wantFailed || outcome.Skipped != tt.wantSkipped {
				t.Errorf("outcome = %+v", outcome)
			}
			if len(failures) != 1 || failures[0].FilePath != "2.txt" || failures[0].Phase != "copy" {
				t.Errorf("failures = %+v", failures)
			}
			if rec.Count(events.KindTransferFailed) != 1 {
				t.Errorf("transfer_failed events = %d, want 1", rec.Count(events.KindTransferFailed))
			}
			// The file copied before the failure is untouched
			if readTarget(t, env, "1.txt") != "one" {
				t.Error("earlier transfer was affected by the failure")
			}
		})
	}
}

func TestSizeChangeIsAFailure(t *testing.T) {
	env := newEnv(t)
	entry := env.add(t, "grow.txt", "short")
	os.WriteFile(filepath.Join(env.srcRoot, "grow.txt"), []byte("much longer now"), 0644)

	x := newExecutor(t, env.source, env.target, Options{Mode: models.ModeCopy}, nil)
	outcome, _ := x.Execute(context.Background(), models.Selection{entry}, 1)
	if outcome.Failed != 1 {
		t.Errorf("outcome = %+v, want one failure", outcome)
	}
	if _, err := os.Stat(filepath.Join(env.dstRoot, "grow.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Error("a failed copy must not leave a file behind")
	}
}

func TestCancelledBeforeStart(t *testing.T) {
	env := newEnv(t)
	selection := models.Selection{env.add(t, "a", "1"), env.add(t, "b", "2")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	x := newExecutor(t, env.source, env.target, Options{Mode: models.ModeMove}, nil)
	outcome, failures := x.Execute(ctx, selection, 2)
	if outcome.Transferred != 0 || len(failures) != 0 || outcome.Skipped != 2 || outcome.Remaining != 2 {
		t.Errorf("outcome = %+v, failures = %+v", outcome, failures)
	}
}

func TestEmptySelection(t *testing.T) {
	env := newEnv(t)
	x := newExecutor(t, env.source, env.target, Options{Mode: models.ModeCopy}, nil)
	outcome, failures := x.Execute(context.Background(), nil, 7)
	if outcome.Transferred != 0 || outcome.Skipped != 7 || outcome.Remaining != 7 || failures != nil {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestCopyWithLimiterAndProgress(t *testing.T) {
	env := newEnv(t)
	content := make([]byte, 200*1024)
	for i := range content {
		content[i] = byte(i)
	}
	entry := env.add(t, "big.bin", string(content))

	var last int64
	x := newExecutor(t, env.source, env.target, Options{
		Mode:    models.ModeCopy,
		Limiter: ratelimit.NewLimiter(100 << 20),
	}, nil)
	x.SetProgressCallback(func(path string, written, total int64) {
		if written < last {
			t.Errorf("progress went backwards: %d < %d", written, last)
		}
		last = written
	})

	if _, failures := x.Execute(context.Background(), models.Selection{entry}, 1); len(failures) != 0 {
		t.Fatalf("failures = %+v", failures)
	}
	if last != entry.Size {
		t.Errorf("final progress = %d, want %d", last, entry.Size)
	}
}
