package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/terradash/terradash/internal/errors"
	"github.com/terradash/terradash/internal/server/middleware"
	"github.com/terradash/terradash/pkg/logsink"
	"github.com/terradash/terradash/pkg/provision"
)

type credentialsPayload struct {
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
}

func (c credentialsPayload) toCredentials() provision.Credentials {
	return provision.Credentials{
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Region:    c.Region,
	}
}

type submitTemplateRequest struct {
	TemplateID  string             `json:"template_id"`
	Variables   map[string]any     `json:"variables"`
	Credentials credentialsPayload `json:"credentials"`
}

// SubmitTemplate accepts a template-backed provisioning request.
func (h *Handlers) SubmitTemplate(w http.ResponseWriter, r *http.Request) {
	var req submitTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	jobID, err := h.svc.SubmitTemplateJob(userID(r), req.TemplateID, req.Variables, req.Credentials.toCredentials())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// SubmitCustom accepts a multipart upload of an IaC project archive.
//
// Form fields: tf_zip (the archive), access_key, secret_key, region.
func (h *Handlers) SubmitCustom(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			apperrors.WriteJSON(w, http.StatusRequestEntityTooLarge,
				apperrors.CodePayloadTooLarge, "upload exceeds size limit",
				middleware.GetRequestID(r.Context()))
			return
		}
		h.badRequest(w, r, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("tf_zip")
	if err != nil {
		h.badRequest(w, r, "archive file is required (field tf_zip)")
		return
	}
	defer func() { _ = file.Close() }()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".zip") {
		h.badRequest(w, r, "only .zip archives are accepted")
		return
	}

	archivePath, err := h.saveUpload(file, header.Filename)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	creds := provision.Credentials{
		AccessKey: r.FormValue("access_key"),
		SecretKey: r.FormValue("secret_key"),
		Region:    r.FormValue("region"),
	}
	jobID, err := h.svc.SubmitArchiveJob(userID(r), archivePath, creds)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// saveUpload persists the archive to a stable path before the orchestrator
// ever sees it.
func (h *Handlers) saveUpload(src io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(h.uploadsDir, 0755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}
	name := fmt.Sprintf("upload_%s_%s", uuid.New().String(), filepath.Base(filename))
	path := filepath.Join(h.uploadsDir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, out.Close()
}

// Destroy triggers teardown for a previously applied job.
func (h *Handlers) Destroy(w http.ResponseWriter, r *http.Request) {
	var creds credentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		h.badRequest(w, r, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ok, logPath, err := h.svc.Destroy(r.Context(), chi.URLParam(r, "jobID"), creds.toCredentials())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  ok,
		"log_path": logPath,
	})
}

// ListJobs returns the acting user's jobs, newest first.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.svc.ListJobs(userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// GetJob returns one job record.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetLogs returns the current log snapshot as plain text. A run whose log
// does not exist yet reads as an empty body, not an error.
func (h *Handlers) GetLogs(w http.ResponseWriter, r *http.Request) {
	kind := logsink.RunApply
	if r.URL.Query().Get("run") == string(logsink.RunDestroy) {
		kind = logsink.RunDestroy
	}

	content, err := h.svc.GetLogSnapshot(chi.URLParam(r, "jobID"), kind)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, content)
}

// GetOutputs returns the captured outputs mapping, empty when none.
func (h *Handlers) GetOutputs(w http.ResponseWriter, r *http.Request) {
	outputs, err := h.svc.GetOutputs(chi.URLParam(r, "jobID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outputs": outputs})
}

// ListTemplates returns the template catalog.
func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": h.svc.Registry().List()})
}

func (h *Handlers) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	apperrors.WriteJSON(w, http.StatusBadRequest, apperrors.CodeInvalidArgument,
		message, middleware.GetRequestID(r.Context()))
}
