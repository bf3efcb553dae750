package logsink

import (
	"strings"
	"sync"
	"testing"
)

func TestFactory_PathShape(t *testing.T) {
	f := NewFactory("/var/lib/terradash/logs")

	apply := f.Path("abc123", RunApply)
	destroy := f.Path("abc123", RunDestroy)

	if !strings.HasSuffix(apply, "job_abc123.log") {
		t.Fatalf("unexpected apply log path: %s", apply)
	}
	if !strings.HasSuffix(destroy, "job_abc123_destroy.log") {
		t.Fatalf("unexpected destroy log path: %s", destroy)
	}
	if apply == destroy {
		t.Fatalf("destroy log must not overwrite apply log")
	}
}

func TestFactory_SnapshotMissingIsEmpty(t *testing.T) {
	f := NewFactory(t.TempDir())

	got, err := f.Snapshot("never-ran", RunApply)
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty snapshot, got %q", got)
	}
}

func TestSink_WritesVisibleBeforeClose(t *testing.T) {
	f := NewFactory(t.TempDir())

	sink, err := f.Open("job-1", RunApply)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer func() { _ = sink.Close() }()

	if err := sink.WriteString(">>> Running: terraform init\n"); err != nil {
		t.Fatalf("WriteString() error: %v", err)
	}

	// Reader polls while the sink is still open.
	got, err := f.Snapshot("job-1", RunApply)
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if !strings.Contains(got, ">>> Running: terraform init") {
		t.Fatalf("snapshot missing written line: %q", got)
	}
}

func TestSink_ConcurrentWritersDoNotInterleaveLines(t *testing.T) {
	f := NewFactory(t.TempDir())

	sink, err := f.Open("job-2", RunApply)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = sink.WriteString("aaaa\n")
			}
		}()
	}
	wg.Wait()
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	got, err := f.Snapshot("job-2", RunApply)
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(got), "\n") {
		if line != "aaaa" {
			t.Fatalf("interleaved line: %q", line)
		}
	}
}

func TestSink_WriteAfterCloseFails(t *testing.T) {
	f := NewFactory(t.TempDir())

	sink, err := f.Open("job-3", RunDestroy)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := sink.WriteString("late"); err == nil {
		t.Fatalf("expected write after close to fail")
	}
}
