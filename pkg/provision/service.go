// Package provision is the job orchestrator: it turns submitted requests
// into tracked, asynchronously executing external-tool runs.
//
// Each accepted job runs in its own goroutine, detached from the request
// that submitted it. The run communicates solely through the persistent job
// record and the run's log artifact; readers poll both and tolerate
// transient intermediate states.
package provision

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/terradash/terradash/pkg/jobstore"
	"github.com/terradash/terradash/pkg/logsink"
	"github.com/terradash/terradash/pkg/templates"
	"github.com/terradash/terradash/pkg/tfexec"
	"github.com/terradash/terradash/pkg/workspace"
)

var (
	// ErrUnknownTemplate fails a template submission fast, before a job
	// record is created.
	ErrUnknownTemplate = errors.New("unknown template")

	// ErrMissingCredentials reports absent access or secret key.
	ErrMissingCredentials = errors.New("cloud credentials are required")

	// ErrMissingVariables reports required template fields left empty.
	ErrMissingVariables = errors.New("missing required variables")

	// ErrArchiveMissing reports an upload path that does not exist.
	ErrArchiveMissing = errors.New("archive file not found")

	// ErrInvalidJobState reports an operation against a job whose current
	// state does not permit it (e.g. destroy before a successful apply).
	ErrInvalidJobState = errors.New("job is not in a valid state for this operation")
)

// DefaultRegion is used when a submission omits the target region.
const DefaultRegion = "ap-south-1"

// Credentials carries the per-invocation secrets injected into the
// external tool's environment. Values are never validated here beyond
// presence; a bad key surfaces in the tool's own log output.
type Credentials struct {
	AccessKey string
	SecretKey string
	Region    string
}

func (c Credentials) withDefaults() Credentials {
	if strings.TrimSpace(c.Region) == "" {
		c.Region = DefaultRegion
	}
	return c
}

func (c Credentials) validate() error {
	if strings.TrimSpace(c.AccessKey) == "" || strings.TrimSpace(c.SecretKey) == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Env returns the process environment for a tool run: the parent
// environment plus the injected credentials and target region.
func (c Credentials) Env() []string {
	return append(os.Environ(),
		"AWS_ACCESS_KEY_ID="+c.AccessKey,
		"AWS_SECRET_ACCESS_KEY="+c.SecretKey,
		"AWS_DEFAULT_REGION="+c.Region,
	)
}

// Service sequences workspace preparation, variable injection, tool runs,
// and result capture for every job.
type Service struct {
	store      *jobstore.Store
	workspaces *workspace.Manager
	logs       *logsink.Factory
	runner     *tfexec.Runner
	registry   *templates.Registry
	logger     *zap.Logger

	wg sync.WaitGroup
}

func NewService(
	store *jobstore.Store,
	workspaces *workspace.Manager,
	logs *logsink.Factory,
	runner *tfexec.Runner,
	registry *templates.Registry,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		workspaces: workspaces,
		logs:       logs,
		runner:     runner,
		registry:   registry,
		logger:     logger,
	}
}

// Registry exposes the template catalog for read-only callers.
func (s *Service) Registry() *templates.Registry {
	return s.registry
}

// Wait blocks until every dispatched run has finished. Used on shutdown;
// running subprocesses are never aborted.
func (s *Service) Wait() {
	s.wg.Wait()
}

// SubmitTemplateJob validates the submission, records a queued job, and
// dispatches the apply sequence in the background.
func (s *Service) SubmitTemplateJob(userID, templateID string, variables map[string]any, creds Credentials) (string, error) {
	if err := creds.validate(); err != nil {
		return "", err
	}
	creds = creds.withDefaults()

	tmpl, ok := s.registry.Get(templateID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, templateID)
	}
	if missing := tmpl.MissingFields(variables); len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingVariables, strings.Join(missing, ", "))
	}

	vars := tmpl.ApplyDefaults(variables)
	vars["aws_region"] = creds.Region

	job := &jobstore.Job{
		UserID:       userID,
		Mode:         jobstore.ModeTemplate,
		TemplateName: tmpl.ID,
		Status:       jobstore.StatusPending,
	}
	if err := s.store.Create(job); err != nil {
		return "", fmt.Errorf("create job record: %w", err)
	}
	if err := s.transition(job, jobstore.StatusQueued); err != nil {
		return "", err
	}

	jobID := job.ID
	s.dispatch(jobID, func() {
		s.runApply(jobID, creds, tmpl.ID, func() (string, error) {
			dir, err := s.workspaces.PrepareTemplate(jobID, tmpl.ID)
			if err != nil {
				return "", err
			}
			if err := workspace.WriteVariables(dir, vars); err != nil {
				return "", err
			}
			return dir, nil
		})
	})
	return jobID, nil
}

// SubmitArchiveJob records a queued custom job for an uploaded archive and
// dispatches the apply sequence in the background. The archive must already
// be saved at a stable path.
func (s *Service) SubmitArchiveJob(userID, archivePath string, creds Credentials) (string, error) {
	if err := creds.validate(); err != nil {
		return "", err
	}
	creds = creds.withDefaults()

	if _, err := os.Stat(archivePath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrArchiveMissing, archivePath)
	}

	job := &jobstore.Job{
		UserID: userID,
		Mode:   jobstore.ModeCustom,
		Status: jobstore.StatusPending,
	}
	if err := s.store.Create(job); err != nil {
		return "", fmt.Errorf("create job record: %w", err)
	}
	if err := s.transition(job, jobstore.StatusQueued); err != nil {
		return "", err
	}

	jobID := job.ID
	s.dispatch(jobID, func() {
		s.runApply(jobID, creds, "", func() (string, error) {
			return s.workspaces.PrepareArchive(jobID, archivePath)
		})
	})
	return jobID, nil
}

// GetLogSnapshot returns the full current log text for a job run. A log
// that does not exist yet reads as empty, never as an error.
func (s *Service) GetLogSnapshot(jobID string, kind logsink.RunKind) (string, error) {
	if _, err := s.store.Get(jobID); err != nil {
		return "", err
	}
	return s.logs.Snapshot(jobID, kind)
}

// GetOutputs returns the captured outputs mapping, empty when none.
func (s *Service) GetOutputs(jobID string) (tfexec.Outputs, error) {
	job, err := s.store.Get(jobID)
	if err != nil {
		return nil, err
	}
	return job.Outputs(), nil
}

// ListJobs returns a user's jobs, newest first.
func (s *Service) ListJobs(userID string) ([]jobstore.Job, error) {
	return s.store.ListByUser(userID)
}

// GetJob loads one job record.
func (s *Service) GetJob(jobID string) (*jobstore.Job, error) {
	return s.store.Get(jobID)
}

func (s *Service) dispatch(jobID string, run func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("job run panicked",
					zap.String("job_id", jobID),
					zap.Any("panic", r))
				s.failSafely(jobID)
			}
		}()
		run()
	}()
}

// failSafely is the panic backstop: best effort to leave the record in a
// terminal state so the dashboard never shows a forever-Running job.
func (s *Service) failSafely(jobID string) {
	job, err := s.store.Get(jobID)
	if err != nil || job.Status.Terminal() {
		return
	}
	_ = s.transition(job, jobstore.StatusFailed)
}

// transition advances the job through the state machine and persists it.
// finished_at is stamped on every terminal transition.
func (s *Service) transition(job *jobstore.Job, to jobstore.Status) error {
	if !jobstore.CanTransition(job.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidJobState, job.Status, to)
	}
	job.Status = to
	if to.Terminal() {
		now := time.Now().UTC()
		job.FinishedAt = &now
	}
	if err := s.store.Save(job); err != nil {
		return fmt.Errorf("persist %s transition: %w", to, err)
	}
	return nil
}
