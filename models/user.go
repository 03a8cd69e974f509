package models

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"

	"github.com/padronlabs/padron/pkg/normalize"
)

var ErrInvalidUser = errors.New("invalid user record")

// UserRecord represents a registered person in the registry. It is keyed by
// the identification number and fully replaced on every write.
//
// The JSON names follow the wire contract consumed by the frontend, hence the
// Spanish field names.
type UserRecord struct {
	Nombre               string `json:"nombre" validate:"required"`
	Apellidos            string `json:"apellidos" validate:"required"`
	Email                string `json:"email" validate:"required"`
	NumeroIdentificacion string `json:"numeroIdentificacion" validate:"required"`
	Telefono             string `json:"telefono" validate:"required"`
	FechaNacimiento      string `json:"fecha_nacimiento" validate:"required"`

	// ArchivoURL is the rehosted image address. Optional; omitted when the
	// record has no image.
	ArchivoURL string `json:"archivoUrl,omitempty"`

	// Search fields, recomputed from their source field on every write.
	// Never accepted from callers.
	NombreLower               string `json:"nombre_lower"`
	ApellidosLower            string `json:"apellidos_lower"`
	EmailLower                string `json:"email_lower"`
	NumeroIdentificacionLower string `json:"numeroIdentificacion_lower"`
}

// Normalize recomputes the *_lower search fields from their source fields.
// It must be called before any persistence.
func (u *UserRecord) Normalize() {
	u.NombreLower = normalize.String(u.Nombre)
	u.ApellidosLower = normalize.String(u.Apellidos)
	u.EmailLower = normalize.String(u.Email)
	u.NumeroIdentificacionLower = normalize.String(u.NumeroIdentificacion)
}

// Validate checks that all required fields are present.
func (u *UserRecord) Validate() error {
	if u == nil {
		return ErrInvalidUser
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(u); err != nil {
		return multierr.Append(ErrInvalidUser, err)
	}

	return nil
}

// SanitizeURL keeps url only when it looks like an http(s) address.
// Anything else, including ftp or bare paths, becomes the empty string.
func SanitizeURL(url string) string {
	if strings.HasPrefix(url, "http") {
		return url
	}

	return ""
}

// UserRepository manages the persistent user collection. Implementations
// provide document-store semantics: full-overwrite upserts keyed by the
// identification number and full enumeration with no server-side filtering.
type UserRepository interface {
	// Put upserts the record under id. Last write wins.
	Put(ctx context.Context, id string, user *UserRecord) error

	// All returns every stored record. Enumeration order is whatever the
	// underlying store yields and is not guaranteed stable across calls.
	All(ctx context.Context) ([]UserRecord, error)
}

// UserPage is the envelope returned by the list and search endpoints.
type UserPage struct {
	Data  []UserRecord `json:"data"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Pages int          `json:"pages"`
}
