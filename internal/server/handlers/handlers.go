// Package handlers implements the dashboard JSON API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/terradash/terradash/internal/errors"
	"github.com/terradash/terradash/internal/server/middleware"
	"github.com/terradash/terradash/pkg/jobstore"
	"github.com/terradash/terradash/pkg/provision"
)

// Handlers bundles the API's dependencies.
type Handlers struct {
	svc            *provision.Service
	logger         *zap.Logger
	uploadsDir     string
	maxUploadBytes int64
	version        string
}

func New(svc *provision.Service, logger *zap.Logger, uploadsDir string, maxUploadBytes int64, version string) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		svc:            svc,
		logger:         logger,
		uploadsDir:     uploadsDir,
		maxUploadBytes: maxUploadBytes,
		version:        version,
	}
}

// userID resolves the acting user. Session authentication lives in front
// of this service; it forwards the identity it established.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "anonymous"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps a domain error onto the API's error envelope.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeInternal
	switch {
	case errors.Is(err, jobstore.ErrJobNotFound):
		code = apperrors.CodeNotFound
	case errors.Is(err, provision.ErrUnknownTemplate),
		errors.Is(err, provision.ErrMissingVariables),
		errors.Is(err, provision.ErrMissingCredentials),
		errors.Is(err, provision.ErrArchiveMissing):
		code = apperrors.CodeInvalidArgument
	case errors.Is(err, provision.ErrInvalidJobState):
		code = apperrors.CodeConflict
	}

	if code == apperrors.CodeInternal {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	apperrors.WriteJSON(w, apperrors.StatusFor(code), code, err.Error(),
		middleware.GetRequestID(r.Context()))
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Version reports the build version.
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.version})
}
