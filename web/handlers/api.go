package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/padronlabs/padron/models"
	"github.com/padronlabs/padron/web"
)

func (h *APIHandlers) Health(w http.ResponseWriter, _ *http.Request) {
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateUser stores a single record. The image address, if present, is only
// sanitized on this path, never fetched or rehosted.
func (h *APIHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var user models.UserRecord
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		renderJSON(w, http.StatusUnprocessableEntity, models.APIError{Code: http.StatusUnprocessableEntity, Message: err.Error()})

		return
	}

	if err := h.Deps.Service.Create(r.Context(), &user); err != nil {
		if errors.Is(err, models.ErrInvalidUser) {
			renderJSON(w, http.StatusBadRequest, models.APIError{Code: http.StatusBadRequest, Message: err.Error()})

			return
		}

		h.Deps.Logger.Error("user creation failed", zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, models.APIError{Code: http.StatusInternalServerError, Message: err.Error()})

		return
	}

	h.Deps.sendEvent(r, "user_created", map[string]any{"via": "api"})

	renderJSON(w, http.StatusOK, models.MessageResponse{Message: "Usuario creado exitosamente"})
}

func (h *APIHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		renderJSON(w, http.StatusBadRequest, models.APIError{Code: http.StatusBadRequest, Message: err.Error()})

		return
	}

	result, err := h.Deps.Service.List(r.Context(), page, limit)
	if err != nil {
		h.Deps.Logger.Error("list failed", zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, models.APIError{Code: http.StatusInternalServerError, Message: err.Error()})

		return
	}

	renderJSON(w, http.StatusOK, result)
}

func (h *APIHandlers) SearchUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		renderJSON(w, http.StatusBadRequest, models.APIError{Code: http.StatusBadRequest, Message: err.Error()})

		return
	}

	filtro := r.URL.Query().Get("filtro")

	result, err := h.Deps.Service.Search(r.Context(), filtro, page, limit)
	if err != nil {
		h.Deps.Logger.Error("search failed", zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, models.APIError{Code: http.StatusInternalServerError, Message: err.Error()})

		return
	}

	// The filter text itself stays out of telemetry.
	h.Deps.sendEvent(r, "search", map[string]any{
		"filtered": filtro != "",
		"results":  result.Total,
	})

	renderJSON(w, http.StatusOK, result)
}

var errInvalidPagination = errors.New("page must be >= 1 and limit between 1 and 100")

func parsePagination(r *http.Request) (page, limit int, err error) {
	page = 1
	limit = web.DefaultLimit

	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, errInvalidPagination
		}
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, errInvalidPagination
		}
	}

	if page < 1 || limit < 1 || limit > web.MaxLimit {
		return 0, 0, errInvalidPagination
	}

	return page, limit, nil
}
