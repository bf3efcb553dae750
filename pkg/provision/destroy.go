package provision

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/terradash/terradash/pkg/jobstore"
	"github.com/terradash/terradash/pkg/logsink"
	"github.com/terradash/terradash/pkg/tfexec"
	"github.com/terradash/terradash/pkg/workspace"
)

// Destroy tears down a previously applied job using the exact workspace the
// apply created. It blocks until the destroy subcommand finishes.
//
// The boolean reports the destroy outcome; a resolution failure or nonzero
// exit yields (false, DestroyFailed) rather than an error. The error return
// is reserved for requests that never reach the destroy attempt at all
// (unknown job, invalid starting state, missing credentials). A destroy may
// be retried after DestroyFailed. Prior outputs are never cleared.
func (s *Service) Destroy(ctx context.Context, jobID string, creds Credentials) (bool, string, error) {
	if err := creds.validate(); err != nil {
		return false, "", err
	}
	creds = creds.withDefaults()

	job, err := s.store.Get(jobID)
	if err != nil {
		return false, "", err
	}
	if job.Status != jobstore.StatusSuccess && job.Status != jobstore.StatusDestroyFailed {
		return false, "", fmt.Errorf("%w: cannot destroy job in state %s", ErrInvalidJobState, job.Status)
	}

	dir, err := s.workspaces.Resolve(jobID, workspace.Mode(job.Mode))
	if err != nil {
		// Workspace gone out-of-band: report DestroyFailed, keep outputs.
		s.logger.Warn("destroy workspace resolution failed",
			zap.String("job_id", jobID),
			zap.Error(err))
		s.finishDestroy(job, false)
		return false, "", nil
	}

	sink, err := s.logs.Open(jobID, logsink.RunDestroy)
	if err != nil {
		s.logger.Error("open destroy log", zap.String("job_id", jobID), zap.Error(err))
		s.finishDestroy(job, false)
		return false, "", nil
	}
	defer func() { _ = sink.Close() }()

	job.LogFilePath = sink.Path()
	_ = sink.WriteString(fmt.Sprintf("Destroy Job #%s\n", job.ID))
	_ = sink.WriteString(fmt.Sprintf("Working directory: %s\n", dir))
	_ = sink.WriteString(strings.Repeat("-", 60) + "\n\n")

	code, runErr := s.runner.Run(ctx, tfexec.DestroyArgs(), dir, creds.Env(), sink)
	success := runErr == nil && code == 0
	if runErr != nil {
		s.logger.Error("destroy invocation failed", zap.String("job_id", jobID), zap.Error(runErr))
	}

	s.finishDestroy(job, success)
	return success, sink.Path(), nil
}

func (s *Service) finishDestroy(job *jobstore.Job, success bool) {
	to := jobstore.StatusDestroyFailed
	if success {
		to = jobstore.StatusDestroyed
	}
	if err := s.transition(job, to); err != nil {
		s.logger.Error("persist destroy result", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	s.logger.Info("job destroy finished",
		zap.String("job_id", job.ID),
		zap.Bool("success", success))
}
