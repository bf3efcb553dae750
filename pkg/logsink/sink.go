// Package logsink manages per-run console log artifacts.
//
// Each job run (apply or destroy) owns exactly one append-managed text file
// under the logs root. The file is opened once at the start of the run and
// every write is synced so concurrent readers always observe up-to-date
// content while the run is still in flight.
package logsink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// RunKind distinguishes the apply-phase log from the destroy-phase log.
type RunKind string

const (
	RunApply   RunKind = "apply"
	RunDestroy RunKind = "destroy"
)

// Factory derives log paths and opens sinks beneath a single logs root.
type Factory struct {
	root string
}

func NewFactory(root string) *Factory {
	return &Factory{root: strings.TrimSpace(root)}
}

func (f *Factory) RootDir() string {
	return f.root
}

// Path returns the deterministic log location for a job run.
//
// Destroy runs get a distinguishing suffix so they never overwrite the
// apply log.
func (f *Factory) Path(jobID string, kind RunKind) string {
	name := fmt.Sprintf("job_%s.log", jobID)
	if kind == RunDestroy {
		name = fmt.Sprintf("job_%s_destroy.log", jobID)
	}
	return filepath.Join(f.root, name)
}

// Open creates (truncating any prior artifact for the same run) and returns
// the sink for a job run. The caller owns the sink for the run's duration.
func (f *Factory) Open(jobID string, kind RunKind) (*Sink, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("job id is required")
	}
	if err := os.MkdirAll(f.root, 0755); err != nil {
		return nil, fmt.Errorf("create logs root: %w", err)
	}
	path := f.Path(jobID, kind)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	return &Sink{file: file, path: path}, nil
}

// Snapshot returns the full current contents of a run's log.
//
// A log that does not exist yet reports empty content, not an error; viewers
// poll before the first subprocess has started.
func (f *Factory) Snapshot(jobID string, kind RunKind) (string, error) {
	b, err := os.ReadFile(f.Path(jobID, kind))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read log file: %w", err)
	}
	return string(b), nil
}

// Sink is a single run's append-only log artifact.
//
// Sink is safe for concurrent use; writes are serialized and each write is
// followed by a sync so a reader never sees a stale buffered view.
type Sink struct {
	mu   sync.Mutex
	file *os.File
	path string
}

func (s *Sink) Path() string {
	return s.path
}

// Write appends raw bytes and syncs. Implements io.Writer so a subprocess
// can stream directly into the sink.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return 0, fmt.Errorf("log sink is closed")
	}
	n, err := s.file.Write(p)
	if err != nil {
		return n, err
	}
	return n, s.file.Sync()
}

// WriteString appends a string fragment.
func (s *Sink) WriteString(text string) error {
	_, err := s.Write([]byte(text))
	return err
}

// Close releases the underlying file. Further writes fail.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
