// Package importer ingests spreadsheet uploads into the registry: it parses
// CSV or XLSX content, validates the header row up front, and processes rows
// sequentially through image rehosting, persistence and warehouse mirroring.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/padronlabs/padron/images"
	"github.com/padronlabs/padron/models"
)

// XLSXContentType is the spreadsheet media type accepted next to text/csv.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	ErrUnsupportedMediaType = errors.New("unsupported file type: use Excel (.xlsx) or CSV")
	ErrMalformedFile        = errors.New("could not parse file")
	ErrEmptyFile            = errors.New("file has no header row")
)

// MissingFieldError reports the first required column absent from the header
// row. It aborts the whole import before any row is processed.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing required column: " + e.Field
}

// requiredColumns are matched case-insensitively against trimmed header names.
var requiredColumns = []string{
	"nombre",
	"apellidos",
	"email",
	"numeroidentificacion",
	"telefono",
	"fecha_nacimiento",
}

const imageColumn = "archivourl"

// ImageResolver validates and rehosts remote image addresses.
type ImageResolver interface {
	ValidateURL(ctx context.Context, rawURL string) bool
	Ingest(ctx context.Context, rawURL string) (string, error)
}

// Recorder persists a mapped record and mirrors it to the warehouse.
type Recorder interface {
	Store(ctx context.Context, user *models.UserRecord) error
}

type Importer struct {
	recorder Recorder
	imgs     ImageResolver
	logger   *zap.Logger
}

func New(recorder Recorder, imgs ImageResolver, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Importer{
		recorder: recorder,
		imgs:     imgs,
		logger:   logger,
	}
}

// Import runs the whole pipeline for one uploaded file and returns the number
// of data rows read from the source. Rows are processed sequentially and are
// not transactional: rows stored before a later failure stay stored.
func (imp *Importer) Import(ctx context.Context, filename, contentType string, r io.Reader) (int, error) {
	kind, err := detectKind(filename, contentType)
	if err != nil {
		return 0, err
	}

	var rows [][]string

	switch kind {
	case kindCSV:
		rows, err = parseCSV(r)
	case kindXLSX:
		rows, err = parseXLSX(r)
	}

	if err != nil {
		return 0, err
	}

	if len(rows) == 0 {
		return 0, ErrEmptyFile
	}

	columns, err := validateHeaders(rows[0])
	if err != nil {
		return 0, err
	}

	dataRows := rows[1:]

	for i, row := range dataRows {
		if err := imp.importRow(ctx, columns, row); err != nil {
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	imp.logger.Info("bulk import finished", zap.Int("rows", len(dataRows)))

	return len(dataRows), nil
}

func (imp *Importer) importRow(ctx context.Context, columns map[string]int, row []string) error {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}

		return strings.TrimSpace(row[idx])
	}

	user := models.UserRecord{
		Nombre:               cell("nombre"),
		Apellidos:            cell("apellidos"),
		Email:                cell("email"),
		NumeroIdentificacion: cell("numeroidentificacion"),
		Telefono:             cell("telefono"),
		FechaNacimiento:      cell("fecha_nacimiento"),
	}

	archivoURL, err := imp.resolveImage(ctx, cell(imageColumn))
	if err != nil {
		return err
	}

	user.ArchivoURL = archivoURL

	return imp.recorder.Store(ctx, &user)
}

// resolveImage turns a raw image cell into a rehosted public address. Blank
// cells, unreachable URLs and URLs that turn out not to be images all yield
// an absent image rather than a row failure; only fetch or storage failures
// abort the row.
func (imp *Importer) resolveImage(ctx context.Context, rawURL string) (string, error) {
	if rawURL == "" {
		return "", nil
	}

	if !imp.imgs.ValidateURL(ctx, rawURL) {
		return "", nil
	}

	hosted, err := imp.imgs.Ingest(ctx, rawURL)
	if err != nil {
		if errors.Is(err, images.ErrInvalidContentType) {
			imp.logger.Warn("image column does not point to an image, skipping",
				zap.String("url", rawURL))

			return "", nil
		}

		return "", err
	}

	return hosted, nil
}

const (
	kindCSV  = "csv"
	kindXLSX = "xlsx"
)

func detectKind(filename, contentType string) (string, error) {
	mt := contentType
	if mt != "" {
		if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
			mt = parsed
		}
	}

	switch mt {
	case "text/csv":
		return kindCSV, nil
	case XLSXContentType:
		return kindXLSX, nil
	}

	// multipart clients often send a generic part type; fall back to the
	// file extension in that case only
	if mt == "" || mt == "application/octet-stream" {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".csv":
			return kindCSV, nil
		case ".xlsx":
			return kindXLSX, nil
		}
	}

	return "", ErrUnsupportedMediaType
}

func parseCSV(r io.Reader) ([][]string, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedFile, err)
	}

	return rows, nil
}

func parseXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedFile, err)
	}

	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformedFile)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedFile, err)
	}

	return rows, nil
}

// validateHeaders matches the header row against the required columns,
// case-insensitively and ignoring surrounding whitespace. The returned map
// resolves a column name to its index in every data row.
func validateHeaders(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))

	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))

		if _, ok := columns[key]; !ok {
			columns[key] = i
		}
	}

	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, &MissingFieldError{Field: required}
		}
	}

	return columns, nil
}
