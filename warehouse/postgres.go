package warehouse

import (
	"context"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mirrorRow is the warehouse table shape. Rows are append-only; there is no
// primary-key reuse across writes for the same person.
type mirrorRow struct {
	ID                   uint    `gorm:"primarykey"`
	Nombre               string  `gorm:"column:nombre"`
	Apellidos            string  `gorm:"column:apellidos"`
	Email                string  `gorm:"column:email"`
	NumeroIdentificacion string  `gorm:"column:numero_identificacion;index"`
	Telefono             string  `gorm:"column:telefono"`
	FechaNacimiento      string  `gorm:"column:fecha_nacimiento"`
	ArchivoURL           *string `gorm:"column:archivo_url"`
}

func (mirrorRow) TableName() string {
	return "user_mirror"
}

// PostgresSink appends mirrored records to a Postgres analytics table.
type PostgresSink struct {
	db *gorm.DB
}

func NewPostgresSink(dsn string) (*PostgresSink, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&mirrorRow{}); err != nil {
		return nil, err
	}

	return &PostgresSink{db: db}, nil
}

func (s *PostgresSink) Insert(ctx context.Context, rec MirroredRecord) error {
	row := mirrorRow{
		Nombre:               rec.Nombre,
		Apellidos:            rec.Apellidos,
		Email:                rec.Email,
		NumeroIdentificacion: rec.NumeroIdentificacion,
		Telefono:             rec.Telefono,
		FechaNacimiento:      rec.FechaNacimiento,
		ArchivoURL:           rec.ArchivoURL,
	}

	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *PostgresSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
