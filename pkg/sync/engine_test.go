package sync

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sdejongh/contentsync/pkg/events"
	"github.com/sdejongh/contentsync/pkg/logging"
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/storage"
)

// TestHelper holds the two trees of an end-to-end run
type TestHelper struct {
	t         *testing.T
	SourceDir string
	DestDir   string
	ReportDir string
	Source    *storage.Local
	Dest      *storage.Local
}

func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()
	base := t.TempDir()
	h := &TestHelper{
		t:         t,
		SourceDir: filepath.Join(base, "source"),
		DestDir:   filepath.Join(base, "dest"),
		ReportDir: filepath.Join(base, "reports"),
	}
	for _, dir := range []string{h.SourceDir, h.DestDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	var err error
	if h.Source, err = storage.NewLocal(h.SourceDir); err != nil {
		t.Fatalf("NewLocal(source) error = %v", err)
	}
	if h.Dest, err = storage.NewLocal(h.DestDir); err != nil {
		t.Fatalf("NewLocal(dest) error = %v", err)
	}
	return h
}

func (h *TestHelper) write(root, rel, content string) {
	h.t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		h.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		h.t.Fatalf("write: %v", err)
	}
}

func (h *TestHelper) CreateSourceFile(rel, content string) { h.write(h.SourceDir, rel, content) }
func (h *TestHelper) CreateDestFile(rel, content string)   { h.write(h.DestDir, rel, content) }

func (h *TestHelper) exists(root, rel string) bool {
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	return err == nil
}

func (h *TestHelper) DestContent(rel string) string {
	h.t.Helper()
	data, err := os.ReadFile(filepath.Join(h.DestDir, filepath.FromSlash(rel)))
	if err != nil {
		h.t.Fatalf("read dest %s: %v", rel, err)
	}
	return string(data)
}

func (h *TestHelper) Operation(mode models.RunMode) *models.RunOperation {
	return &models.RunOperation{
		ID:            "test-op",
		SourcePath:    h.SourceDir,
		DestPath:      h.DestDir,
		Mode:          mode,
		Algorithm:     models.HashSHA256,
		FailurePolicy: models.PolicyBestEffort,
		MaxWorkers:    2,
		ReportDir:     h.ReportDir,
	}
}

func (h *TestHelper) Run(op *models.RunOperation, configure ...func(*Engine)) (*models.RunReport, error) {
	engine := NewEngine(h.Source, h.Dest, op, nil, nil)
	for _, c := range configure {
		c(engine)
	}
	return engine.Run(context.Background())
}

type fixedSpace uint64

func (f fixedSpace) FreeSpace(ctx context.Context) (uint64, error) {
	return uint64(f), nil
}

// scenarioTrees: source a.txt "X" and b.txt "Y"; dest holds "X" elsewhere
func scenarioTrees(t *testing.T) *TestHelper {
	h := NewTestHelper(t)
	h.CreateSourceFile("a.txt", "X")
	h.CreateSourceFile("b.txt", "Y")
	h.CreateDestFile("archive/old/x-copy.dat", "X")
	return h
}

func TestScenarioCopy(t *testing.T) {
	h := scenarioTrees(t)

	report, err := h.Run(h.Operation(models.ModeCopy))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := report.Selected.Paths(); len(got) != 1 || got[0] != "b.txt" {
		t.Errorf("selection = %v, want [b.txt]", got)
	}
	if h.DestContent("b.txt") != "Y" {
		t.Error("b.txt was not copied to its relative path")
	}
	if h.DestContent("archive/old/x-copy.dat") != "X" {
		t.Error("existing destination content was modified")
	}
	if h.exists(h.DestDir, "a.txt") {
		t.Error("a.txt content already exists in dest and must not be copied")
	}
	if !h.exists(h.SourceDir, "b.txt") {
		t.Error("copy mode must keep the source file")
	}

	want := models.Outcome{Transferred: 1, Skipped: 1, Remaining: 2, BytesTransferred: 1}
	if report.Outcome != want {
		t.Errorf("outcome = %+v, want %+v", report.Outcome, want)
	}
	if report.Status != models.StatusSuccess || report.Status.ExitCode() != 0 {
		t.Errorf("status = %s", report.Status)
	}
}

func TestScenarioMove(t *testing.T) {
	h := scenarioTrees(t)

	report, err := h.Run(h.Operation(models.ModeMove))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if h.exists(h.SourceDir, "b.txt") {
		t.Error("moved file must be gone from the source")
	}
	if !h.exists(h.SourceDir, "a.txt") {
		t.Error("duplicate must stay in the source")
	}
	if h.DestContent("b.txt") != "Y" {
		t.Error("dest did not gain b.txt")
	}
	if report.Outcome.Remaining != 1 || report.Outcome.Transferred != 1 {
		t.Errorf("outcome = %+v, want remaining 1", report.Outcome)
	}
}

func TestScenarioCompare(t *testing.T) {
	h := scenarioTrees(t)

	report, err := h.Run(h.Operation(models.ModeCompare))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := report.Duplicates.Paths(); len(got) != 1 || got[0] != "a.txt" {
		t.Errorf("duplicates = %v, want [a.txt]", got)
	}
	data, err := os.ReadFile(report.ListingPath)
	if err != nil {
		t.Fatalf("listing not written: %v", err)
	}
	if strings.TrimSpace(string(data)) != filepath.Join(h.SourceDir, "a.txt") {
		t.Errorf("listing = %q", data)
	}
	if report.ArchivePath != "" {
		t.Error("no archive was requested")
	}
	entries, _ := os.ReadDir(h.ReportDir)
	if len(entries) != 1 {
		t.Errorf("report dir holds %d files, want only the listing", len(entries))
	}
	if h.exists(h.DestDir, "b.txt") {
		t.Error("compare mode must not transfer")
	}
	if ratio, ok := report.Stats.DuplicateRatio(); !ok || ratio != 0.5 {
		t.Errorf("DuplicateRatio() = %v, %v", ratio, ok)
	}
}

func TestScenarioCapacityShortfall(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateSourceFile("b.txt", "eleven byte")

	report, err := h.Run(h.Operation(models.ModeCopy), func(e *Engine) {
		e.SetSpaceReporter(fixedSpace(10))
	})
	if !errors.Is(err, models.ErrInsufficientCapacity) {
		t.Fatalf("Run() error = %v, want ErrInsufficientCapacity", err)
	}

	if report.Status != models.StatusCapacityShortfall || report.Status.ExitCode() != 4 {
		t.Errorf("status = %s", report.Status)
	}
	if report.Stats.RequiredBytes != 11 || report.Stats.FreeBytes != 10 {
		t.Errorf("required/free = %d/%d, want 11/10", report.Stats.RequiredBytes, report.Stats.FreeBytes)
	}
	entries, _ := os.ReadDir(h.DestDir)
	if len(entries) != 0 {
		t.Errorf("dest must stay untouched, found %d entries", len(entries))
	}
	if report.Outcome.Transferred != 0 || report.Outcome.Remaining != 1 {
		t.Errorf("outcome = %+v", report.Outcome)
	}
}

func TestCapacityExactFit(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateSourceFile("ten.txt", "0123456789")

	report, err := h.Run(h.Operation(models.ModeCopy), func(e *Engine) {
		e.SetSpaceReporter(fixedSpace(10))
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Outcome.Transferred != 1 {
		t.Errorf("a selection exactly filling the free space must proceed, outcome = %+v", report.Outcome)
	}
}

func TestCopyIsIdempotent(t *testing.T) {
	h := scenarioTrees(t)
	h.CreateSourceFile("nested/deeper/c.bin", "Z")

	if _, err := h.Run(h.Operation(models.ModeCopy)); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := h.Run(h.Operation(models.ModeCopy))
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(second.Selected) != 0 || second.Outcome.Transferred != 0 {
		t.Errorf("second run selected %v", second.Selected.Paths())
	}
}

func TestSameContentUnderManyPathsIsSelectedPerPath(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateSourceFile("one/photo.jpg", "same bytes")
	h.CreateSourceFile("two/photo-copy.jpg", "same bytes")

	report, err := h.Run(h.Operation(models.ModeCopy))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Selected) != 2 {
		t.Errorf("selected = %v, want both paths", report.Selected.Paths())
	}
	if h.DestContent("two/photo-copy.jpg") != "same bytes" {
		t.Error("second path not copied")
	}
}

func TestUnreadableSourceIsNeverSelected(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user/platform")
	}
	h := NewTestHelper(t)
	h.CreateSourceFile("ok.txt", "fine")
	h.CreateSourceFile("locked.txt", "secret")
	locked := filepath.Join(h.SourceDir, "locked.txt")
	os.Chmod(locked, 0)
	defer os.Chmod(locked, 0644)

	for _, mode := range []models.RunMode{models.ModeCopy, models.ModeCompare} {
		t.Run(string(mode), func(t *testing.T) {
			report, err := h.Run(h.Operation(mode))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			for _, p := range append(report.Selected.Paths(), report.Duplicates.Paths()...) {
				if p == "locked.txt" {
					t.Error("unreadable file must be neither selected nor a duplicate")
				}
			}
			if len(report.HashErrors) != 1 || report.Stats.SourceUnreadable != 1 {
				t.Errorf("hash errors = %+v", report.HashErrors)
			}
			if report.Status != models.StatusPartial {
				t.Errorf("status = %s, want partial", report.Status)
			}
		})
	}
}

func TestEmptySource(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateDestFile("x", "anything")

	for _, mode := range []models.RunMode{models.ModeCopy, models.ModeCompare} {
		t.Run(string(mode), func(t *testing.T) {
			report, err := h.Run(h.Operation(mode))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(report.Selected) != 0 || len(report.Duplicates) != 0 {
				t.Error("empty source must give empty results")
			}
			if _, ok := report.Stats.DuplicateRatio(); ok {
				t.Error("ratio is undefined without source files")
			}
		})
	}
}

func TestPreconditionFailures(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		h := NewTestHelper(t)
		h.CreateDestFile("keep", "k")
		os.RemoveAll(h.SourceDir)

		report, err := h.Run(h.Operation(models.ModeCopy))
		if !models.IsPrecondition(err) {
			t.Fatalf("error = %v, want PreconditionError", err)
		}
		if report.Status != models.StatusFailed || report.Stats.TargetFiles != 0 {
			t.Errorf("nothing may be computed, report = %+v", report.Stats)
		}
	})

	t.Run("dest inside source", func(t *testing.T) {
		h := NewTestHelper(t)
		inner := filepath.Join(h.SourceDir, "backup")
		os.MkdirAll(inner, 0755)
		dest, _ := storage.NewLocal(inner)

		engine := NewEngine(h.Source, dest, h.Operation(models.ModeCopy), nil, nil)
		_, err := engine.Run(context.Background())
		if !errors.Is(err, ErrNestedRoots) || !models.IsPrecondition(err) {
			t.Errorf("error = %v, want nested precondition failure", err)
		}
	})

	t.Run("same root", func(t *testing.T) {
		h := NewTestHelper(t)
		engine := NewEngine(h.Source, h.Source, h.Operation(models.ModeCompare), nil, nil)
		_, err := engine.Run(context.Background())
		if !errors.Is(err, ErrSameRoot) {
			t.Errorf("error = %v, want ErrSameRoot", err)
		}
	})
}

func TestInvalidOperation(t *testing.T) {
	h := NewTestHelper(t)
	op := h.Operation(models.ModeCopy)
	op.Archive = models.ArchiveZip

	report, err := h.Run(op)
	var ve *models.ValidationError
	if !errors.As(err, &ve) || report != nil {
		t.Errorf("Run() = %v, %v; want a validation error and no report", report, err)
	}
}

func TestCompareWithArchive(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateSourceFile("a/notes.txt", "shared one")
	h.CreateSourceFile("b/notes.txt", "shared two")
	h.CreateDestFile("1", "shared one")
	h.CreateDestFile("2", "shared two")

	op := h.Operation(models.ModeCompare)
	op.Archive = models.ArchiveTarGz

	report, err := h.Run(op)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.ArchivePath == "" || !strings.HasSuffix(report.ArchivePath, ".tar.gz") {
		t.Fatalf("ArchivePath = %q", report.ArchivePath)
	}
	if _, err := os.Stat(report.ArchivePath); err != nil {
		t.Errorf("archive not written: %v", err)
	}
	if strings.TrimSuffix(report.ArchivePath, ".tar.gz") != strings.TrimSuffix(report.ListingPath, ".txt") {
		t.Error("listing and archive should share their name")
	}
}

func TestRunEmitsEvents(t *testing.T) {
	h := scenarioTrees(t)
	rec := &events.Recorder{}

	engine := NewEngine(h.Source, h.Dest, h.Operation(models.ModeCopy), nil, rec)
	if _, err := engine.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if rec.Count(events.KindIndexBuilt) != 2 {
		t.Errorf("index_built = %d, want one per tree", rec.Count(events.KindIndexBuilt))
	}
	sel := rec.Filter(events.KindSelection)
	if len(sel) != 1 || sel[0].Count != 1 || sel[0].Bytes != 1 {
		t.Errorf("selection events = %+v", sel)
	}
	if rec.Count(events.KindCapacityChecked) != 1 {
		t.Error("capacity must be checked exactly once")
	}
	if rec.Count(events.KindFileTransferred) != 1 {
		t.Error("expected one file_transferred event")
	}
}

func TestRunCancelled(t *testing.T) {
	h := scenarioTrees(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewEngine(h.Source, h.Dest, h.Operation(models.ModeCopy), nil, nil).Run(ctx)
	if err == nil {
		t.Fatal("Run() should fail on a cancelled context")
	}
	if report.Status != models.StatusCancelled || report.Status.ExitCode() != 3 {
		t.Errorf("status = %s, want cancelled", report.Status)
	}
	if h.exists(h.DestDir, "b.txt") {
		t.Error("nothing may be transferred after cancellation")
	}
}

func TestRunLogsWorkersAndSelection(t *testing.T) {
	tests := []struct {
		mode     models.RunMode
		message  string
		wantPath string
	}{
		{models.ModeCopy, "Selection", "paths=[b.txt]"},
		{models.ModeCompare, "Duplicates", "paths=[a.txt]"},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			h := scenarioTrees(t)
			var buf bytes.Buffer
			logger := logging.NewWriterLogger(&buf, logging.FormatText, logging.DebugLevel)

			if _, err := NewEngine(h.Source, h.Dest, h.Operation(tt.mode), logger, nil).Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			out := buf.String()
			if !strings.Contains(out, "Hashing trees") || !strings.Contains(out, "workers=2") {
				t.Errorf("log should report the hashing pool size, got:\n%s", out)
			}
			if !strings.Contains(out, "[DEBUG] "+tt.message) || !strings.Contains(out, tt.wantPath) {
				t.Errorf("log should list %s, got:\n%s", tt.wantPath, out)
			}
		})
	}
}
