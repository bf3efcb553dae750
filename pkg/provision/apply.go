package provision

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/terradash/terradash/pkg/jobstore"
	"github.com/terradash/terradash/pkg/logsink"
	"github.com/terradash/terradash/pkg/tfexec"
)

// runApply drives one job's apply sequence: workspace preparation, then
// init and apply strictly in order, then the outputs query. It runs on its
// own goroutine and communicates only through the job record and log sink.
func (s *Service) runApply(jobID string, creds Credentials, templateID string, prepare func() (string, error)) {
	job, err := s.store.Get(jobID)
	if err != nil {
		s.logger.Error("load job for apply", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if err := s.transition(job, jobstore.StatusRunning); err != nil {
		s.logger.Error("enter running state", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	// Workspace failure is terminal before any subprocess runs; the only
	// user-visible trace is the absence of a log file.
	dir, err := prepare()
	if err != nil {
		s.logger.Warn("workspace preparation failed",
			zap.String("job_id", jobID),
			zap.String("template", templateID),
			zap.Error(err))
		s.finishFailed(job)
		return
	}

	sink, err := s.logs.Open(jobID, logsink.RunApply)
	if err != nil {
		s.logger.Error("open apply log", zap.String("job_id", jobID), zap.Error(err))
		s.finishFailed(job)
		return
	}
	defer func() { _ = sink.Close() }()

	job.LogFilePath = sink.Path()
	if err := s.store.Save(job); err != nil {
		s.logger.Error("persist log path", zap.String("job_id", jobID), zap.Error(err))
	}

	writeRunHeader(sink, job, dir)

	ctx := context.Background()
	env := creds.Env()
	for _, args := range [][]string{tfexec.InitArgs(), tfexec.ApplyArgs()} {
		code, err := s.runner.Run(ctx, args, dir, env, sink)
		if err != nil {
			s.logger.Error("tool invocation failed",
				zap.String("job_id", jobID),
				zap.Strings("args", args),
				zap.Error(err))
			s.finishFailed(job)
			return
		}
		if code != 0 {
			// Stop the sequence; apply never runs after a failed init.
			s.finishFailed(job)
			return
		}
	}

	// Outputs are best-effort and never affect the terminal status.
	outputs := s.runner.QueryOutputs(ctx, dir, env)
	if len(outputs) > 0 {
		if err := job.SetOutputs(outputs); err != nil {
			s.logger.Warn("serialize outputs", zap.String("job_id", jobID), zap.Error(err))
		} else {
			job.PrimaryOutput = s.registry.SelectPrimary(templateID, outputs)
		}
	}

	if err := s.transition(job, jobstore.StatusSuccess); err != nil {
		s.logger.Error("persist success", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	s.logger.Info("job applied",
		zap.String("job_id", jobID),
		zap.String("template", templateID),
		zap.Int("outputs", len(outputs)))
}

func (s *Service) finishFailed(job *jobstore.Job) {
	if err := s.transition(job, jobstore.StatusFailed); err != nil {
		s.logger.Error("persist failure", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func writeRunHeader(sink *logsink.Sink, job *jobstore.Job, dir string) {
	title := fmt.Sprintf("Custom Job #%s\n", job.ID)
	if job.Mode == jobstore.ModeTemplate {
		title = fmt.Sprintf("Job #%s - Template: %s\n", job.ID, job.TemplateName)
	}
	_ = sink.WriteString(title)
	_ = sink.WriteString(fmt.Sprintf("Working directory: %s\n", dir))
	_ = sink.WriteString(strings.Repeat("-", 60) + "\n\n")
}
