// Package handlers wires the HTTP surface: registration and login against
// the identity provider, user CRUD, search and bulk upload.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/padronlabs/padron/importer"
	"github.com/padronlabs/padron/tlmt"
	"github.com/padronlabs/padron/web"
	"github.com/padronlabs/padron/web/auth"
)

// Dependencies aggregates shared services used by handlers.
type Dependencies struct {
	Logger    *zap.Logger
	Service   *web.Service
	Importer  *importer.Importer
	Provider  auth.IdentityProvider
	Auth      *auth.Middleware
	Telemetry tlmt.Telemetry
}

// HandlerGroup groups all handler categories for routing setup.
type HandlerGroup struct {
	Auth *AuthHandlers
	API  *APIHandlers
}

// NewHandlerGroup constructs a HandlerGroup with initialized handlers.
func NewHandlerGroup(deps Dependencies) *HandlerGroup {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &HandlerGroup{
		Auth: &AuthHandlers{Deps: deps},
		API:  &APIHandlers{Deps: deps},
	}
}

// AuthHandlers contains the public identity routes.
type AuthHandlers struct{ Deps Dependencies }

// APIHandlers contains the authenticated registry routes.
type APIHandlers struct{ Deps Dependencies }

// RegisterRoutes attaches every route to the router. Registry routes are
// guarded by the bearer-token middleware.
func (g *HandlerGroup) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/register", g.Auth.Register).Methods(http.MethodPost)
	router.HandleFunc("/login", g.Auth.Login).Methods(http.MethodPost)
	router.HandleFunc("/health", g.API.Health).Methods(http.MethodGet)

	protected := router.PathPrefix("/users").Subrouter()
	protected.Use(g.API.Deps.Auth.Authenticate)
	protected.HandleFunc("", g.API.CreateUser).Methods(http.MethodPost)
	protected.HandleFunc("", g.API.ListUsers).Methods(http.MethodGet)
	protected.HandleFunc("/search", g.API.SearchUsers).Methods(http.MethodGet)
	protected.HandleFunc("/bulk_upload", g.API.BulkUpload).Methods(http.MethodPost)
}

func renderJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// sendEvent emits a telemetry event; always best-effort.
func (d *Dependencies) sendEvent(r *http.Request, name string, props map[string]any) {
	if d.Telemetry == nil {
		return
	}

	_ = d.Telemetry.Send(r.Context(), tlmt.NewEvent(name, props))
}
