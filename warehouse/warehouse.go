// Package warehouse replicates accepted registry writes into an analytical
// sink. The registry write is authoritative; everything here is advisory and
// must never fail or delay the primary operation.
package warehouse

import (
	"context"

	"go.uber.org/zap"

	"github.com/padronlabs/padron/models"
)

// MirroredRecord is the fixed projection appended to the warehouse for every
// accepted registry write.
type MirroredRecord struct {
	Nombre               string
	Apellidos            string
	Email                string
	NumeroIdentificacion string
	Telefono             string
	FechaNacimiento      string

	// ArchivoURL is nil when the record has no image.
	ArchivoURL *string
}

// Sink is an append-only analytical store.
type Sink interface {
	Insert(ctx context.Context, rec MirroredRecord) error
	Close() error
}

// Mirror wraps a Sink with the best-effort write policy: failures are logged
// and swallowed, never retried, never surfaced to the caller.
type Mirror struct {
	sink   Sink
	logger *zap.Logger
}

func NewMirror(sink Sink, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Mirror{sink: sink, logger: logger}
}

// Record projects user into a MirroredRecord and attempts a single insert.
func (m *Mirror) Record(ctx context.Context, user *models.UserRecord) {
	rec := MirroredRecord{
		Nombre:               user.Nombre,
		Apellidos:            user.Apellidos,
		Email:                user.Email,
		NumeroIdentificacion: user.NumeroIdentificacion,
		Telefono:             user.Telefono,
		FechaNacimiento:      user.FechaNacimiento,
	}

	if user.ArchivoURL != "" {
		rec.ArchivoURL = &user.ArchivoURL
	}

	if err := m.sink.Insert(ctx, rec); err != nil {
		m.logger.Error("warehouse insert failed",
			zap.String("numero_identificacion", user.NumeroIdentificacion),
			zap.Error(err),
		)
	}
}

func (m *Mirror) Close() error {
	return m.sink.Close()
}
