// Package web contains the registry service: record creation, listing and
// accent-insensitive search over the full user collection.
package web

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/padronlabs/padron/models"
	"github.com/padronlabs/padron/pkg/normalize"
	"github.com/padronlabs/padron/warehouse"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type Service struct {
	repo   models.UserRepository
	mirror *warehouse.Mirror
	logger *zap.Logger
}

func NewService(repo models.UserRepository, mirror *warehouse.Mirror, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:   repo,
		mirror: mirror,
		logger: logger,
	}
}

// Create validates and stores a record, overwriting any previous record with
// the same identification number. The image address is kept only when it
// already looks like an http(s) URL; this path never fetches or rehosts it.
// The warehouse mirror is advisory and cannot fail the write.
func (s *Service) Create(ctx context.Context, user *models.UserRecord) error {
	if err := user.Validate(); err != nil {
		return err
	}

	user.ArchivoURL = models.SanitizeURL(user.ArchivoURL)
	user.Normalize()

	if err := s.repo.Put(ctx, user.NumeroIdentificacion, user); err != nil {
		return err
	}

	s.mirror.Record(ctx, user)

	s.logger.Info("user stored", zap.String("numero_identificacion", user.NumeroIdentificacion))

	return nil
}

// Store persists an already-mapped record without revalidating it. Used by
// the bulk importer, which performs its own header-level validation.
func (s *Service) Store(ctx context.Context, user *models.UserRecord) error {
	user.Normalize()

	if err := s.repo.Put(ctx, user.NumeroIdentificacion, user); err != nil {
		return err
	}

	s.mirror.Record(ctx, user)

	return nil
}

// List enumerates the whole registry and paginates it in store order.
func (s *Service) List(ctx context.Context, page, limit int) (models.UserPage, error) {
	users, err := s.repo.All(ctx)
	if err != nil {
		return models.UserPage{}, err
	}

	return paginate(users, page, limit), nil
}

// Search keeps the records whose normalized fields (or raw phone, birth date
// and image address) contain the normalized filter, then paginates. The empty
// filter matches every record.
func (s *Service) Search(ctx context.Context, filtro string, page, limit int) (models.UserPage, error) {
	users, err := s.repo.All(ctx)
	if err != nil {
		return models.UserPage{}, err
	}

	needle := normalize.String(filtro)

	matched := make([]models.UserRecord, 0, len(users))

	for i := range users {
		if matchesFilter(&users[i], needle) {
			matched = append(matched, users[i])
		}
	}

	return paginate(matched, page, limit), nil
}

func matchesFilter(u *models.UserRecord, needle string) bool {
	return strings.Contains(u.NombreLower, needle) ||
		strings.Contains(u.ApellidosLower, needle) ||
		strings.Contains(u.EmailLower, needle) ||
		strings.Contains(u.NumeroIdentificacionLower, needle) ||
		strings.Contains(u.Telefono, needle) ||
		strings.Contains(u.FechaNacimiento, needle) ||
		strings.Contains(u.ArchivoURL, needle)
}

func paginate(users []models.UserRecord, page, limit int) models.UserPage {
	total := len(users)
	pages := (total + limit - 1) / limit

	start := (page - 1) * limit
	if start > total {
		start = total
	}

	end := start + limit
	if end > total {
		end = total
	}

	return models.UserPage{
		Data:  users[start:end],
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: pages,
	}
}
