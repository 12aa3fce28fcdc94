package handler

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-account-api/internal/application/account"
	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/transport/http/metrics"
	"github.com/go-account-api/internal/transport/http/middleware"
)

// ImageHandler handles the profile image of the authenticated account.
type ImageHandler struct {
	svc      account.Service
	maxBytes int64
}

func NewImageHandler(svc account.Service, maxBytes int64) *ImageHandler {
	return &ImageHandler{svc: svc, maxBytes: maxBytes}
}

func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, "attach", http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		h.fail(w, "attach", http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, "attach", http.StatusBadRequest, "missing file field")
		return
	}
	defer f.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}
	img, err := h.svc.AttachImage(r.Context(), a, &domain.ImageUpload{
		Reader:      f,
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		metrics.ImageOperationsTotal.WithLabelValues("attach", metrics.ResultClass(writeServiceError(w, err))).Inc()
		return
	}
	metrics.ImageOperationsTotal.WithLabelValues("attach", "ok").Inc()
	writeJSON(w, http.StatusCreated, img)
}

func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	img, err := h.svc.GetImage(r.Context(), a)
	if err != nil {
		metrics.ImageOperationsTotal.WithLabelValues("get", metrics.ResultClass(writeServiceError(w, err))).Inc()
		return
	}
	metrics.ImageOperationsTotal.WithLabelValues("get", "ok").Inc()
	writeJSON(w, http.StatusOK, img)
}

func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.DeleteImage(r.Context(), a); err != nil {
		metrics.ImageOperationsTotal.WithLabelValues("delete", metrics.ResultClass(writeServiceError(w, err))).Inc()
		return
	}
	metrics.ImageOperationsTotal.WithLabelValues("delete", "ok").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *ImageHandler) fail(w http.ResponseWriter, op string, status int, msg string) {
	metrics.ImageOperationsTotal.WithLabelValues(op, metrics.ResultClass(status)).Inc()
	WriteError(w, status, msg)
}
