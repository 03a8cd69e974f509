package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/padronlabs/padron/images"
	"github.com/padronlabs/padron/importer"
	"github.com/padronlabs/padron/models"
)

// maxUploadBytes bounds the in-memory part of a multipart spreadsheet upload.
const maxUploadBytes = 32 << 20

// BulkUpload runs the spreadsheet import pipeline on the uploaded file.
func (h *APIHandlers) BulkUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		renderJSON(w, http.StatusBadRequest, models.APIError{Code: http.StatusBadRequest, Message: "invalid multipart body: " + err.Error()})

		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		renderJSON(w, http.StatusBadRequest, models.APIError{Code: http.StatusBadRequest, Message: "missing file field"})

		return
	}

	defer file.Close()

	t0 := time.Now()

	rows, err := h.Deps.Importer.Import(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		status := statusForImportError(err)

		h.Deps.Logger.Error("bulk import failed",
			zap.String("filename", header.Filename),
			zap.Int("status", status),
			zap.Error(err),
		)
		renderJSON(w, status, models.APIError{Code: status, Message: err.Error()})

		return
	}

	h.Deps.sendEvent(r, "bulk_import", map[string]any{
		"rows":     rows,
		"duration": time.Since(t0).String(),
	})

	renderJSON(w, http.StatusOK, models.MessageResponse{
		Message: fmt.Sprintf("%d usuarios importados correctamente.", rows),
	})
}

func statusForImportError(err error) int {
	var missing *importer.MissingFieldError

	switch {
	case errors.Is(err, importer.ErrUnsupportedMediaType),
		errors.Is(err, importer.ErrMalformedFile),
		errors.Is(err, importer.ErrEmptyFile),
		errors.Is(err, images.ErrInvalidContentType),
		errors.As(err, &missing):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
