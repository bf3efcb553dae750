// Package workspace allocates per-job working directories for the external
// IaC tool.
//
// Layout contract:
//
//	<templates root>/<template_name>/   read-only template sources
//	<template jobs root>/job_<job_id>/  workspaces for template-backed jobs
//	<custom jobs root>/job_<job_id>/    workspaces for archive-backed jobs
//
// A workspace is created at apply time and re-resolved, never recreated, at
// destroy time. Cleanup is an external concern.
package workspace

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Mode selects which jobs root a workspace lives under.
type Mode string

const (
	ModeTemplate Mode = "template"
	ModeCustom   Mode = "custom"
)

var (
	// ErrTemplateNotFound reports an unknown template source directory.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrInvalidArchive reports an upload that is not a readable ZIP container.
	ErrInvalidArchive = errors.New("invalid archive")

	// ErrWorkspaceNotFound reports a destroy against a workspace that no
	// longer exists on disk.
	ErrWorkspaceNotFound = errors.New("workspace not found")
)

// Manager derives and materializes workspace directories.
type Manager struct {
	templatesRoot    string
	templateJobsRoot string
	customJobsRoot   string
}

func NewManager(templatesRoot, templateJobsRoot, customJobsRoot string) *Manager {
	return &Manager{
		templatesRoot:    templatesRoot,
		templateJobsRoot: templateJobsRoot,
		customJobsRoot:   customJobsRoot,
	}
}

// TemplateDir returns the read-only source directory for a template name.
func (m *Manager) TemplateDir(templateName string) string {
	return filepath.Join(m.templatesRoot, templateName)
}

// Dir returns the deterministic workspace path for a job. Apply and destroy
// both derive the path this way, which is what lets destroy find the exact
// directory apply created.
func (m *Manager) Dir(jobID string, mode Mode) string {
	root := m.templateJobsRoot
	if mode == ModeCustom {
		root = m.customJobsRoot
	}
	return filepath.Join(root, "job_"+jobID)
}

// PrepareTemplate materializes a pristine copy of the named template as the
// job's workspace, replacing any prior directory for the same job id.
func (m *Manager) PrepareTemplate(jobID, templateName string) (string, error) {
	templateName = strings.TrimSpace(templateName)
	if templateName == "" || templateName != filepath.Base(templateName) {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, templateName)
	}

	src := m.TemplateDir(templateName)
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, src)
	}

	dir := m.Dir(jobID, ModeTemplate)
	if err := recreateDir(dir); err != nil {
		return "", err
	}
	if err := copyTree(src, dir); err != nil {
		return "", fmt.Errorf("copy template %s: %w", templateName, err)
	}
	return dir, nil
}

// PrepareArchive creates a fresh workspace and extracts the uploaded ZIP
// into it. Only container-level validity is checked; entry contents are the
// external tool's problem.
func (m *Manager) PrepareArchive(jobID, archivePath string) (string, error) {
	dir := m.Dir(jobID, ModeCustom)
	if err := recreateDir(dir); err != nil {
		return "", err
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer func() { _ = reader.Close() }()

	for _, entry := range reader.File {
		if err := extractEntry(dir, entry); err != nil {
			return "", fmt.Errorf("extract %s: %w", entry.Name, err)
		}
	}
	return dir, nil
}

// Resolve recomputes the workspace path for a job without touching it.
func (m *Manager) Resolve(jobID string, mode Mode) (string, error) {
	dir := m.Dir(jobID, mode)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrWorkspaceNotFound, dir)
	}
	return dir, nil
}

func recreateDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove prior workspace: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func extractEntry(dir string, entry *zip.File) error {
	// Reject entries that would escape the workspace.
	target := filepath.Join(dir, filepath.FromSlash(entry.Name))
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
		return fmt.Errorf("entry escapes workspace: %s", entry.Name)
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	perm := entry.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
