package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/padronlabs/padron/images"
	"github.com/padronlabs/padron/models"
)

type fakeRecorder struct {
	stored []models.UserRecord
	failOn string
}

func (f *fakeRecorder) Store(_ context.Context, user *models.UserRecord) error {
	if f.failOn != "" && user.NumeroIdentificacion == f.failOn {
		return errors.New("store failed")
	}

	f.stored = append(f.stored, *user)

	return nil
}

type fakeResolver struct {
	valid    map[string]bool
	hosted   map[string]string
	notImage map[string]bool
	fetchErr map[string]bool
}

func (f *fakeResolver) ValidateURL(_ context.Context, rawURL string) bool {
	return f.valid[rawURL]
}

func (f *fakeResolver) Ingest(_ context.Context, rawURL string) (string, error) {
	if f.notImage[rawURL] {
		return "", images.ErrInvalidContentType
	}

	if f.fetchErr[rawURL] {
		return "", images.ErrUpstreamFetch
	}

	return f.hosted[rawURL], nil
}

const validHeader = "nombre,apellidos,email,numeroIdentificacion,telefono,fecha_nacimiento,archivoUrl\n"

func TestImport_CSV(t *testing.T) {
	rec := &fakeRecorder{}
	res := &fakeResolver{
		valid:  map[string]bool{"https://img.example.com/a.png": true},
		hosted: map[string]string{"https://img.example.com/a.png": "https://cdn.example.com/uploads/tok_a.png"},
	}

	file := validHeader +
		"María,García,maria@example.com,X1,600111222,1990-04-01,https://img.example.com/a.png\n" +
		"Pedro,Ruiz,pedro@example.com,X2,600333444,1985-12-24,\n"

	n, err := New(rec, res, nil).Import(context.Background(), "usuarios.csv", "text/csv", strings.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, rec.stored, 2)

	assert.Equal(t, "María", rec.stored[0].Nombre)
	assert.Equal(t, "https://cdn.example.com/uploads/tok_a.png", rec.stored[0].ArchivoURL,
		"the stored address must be the rehosted one, never the source URL")
	assert.Empty(t, rec.stored[1].ArchivoURL)
}

func TestImport_CSV_HeaderMatchingIsLenient(t *testing.T) {
	rec := &fakeRecorder{}

	file := "  NOMBRE , Apellidos ,EMAIL, numeroidentificacion ,Telefono, FECHA_NACIMIENTO \n" +
		"Ana,Pons,ana@example.com,A1,600,2001-02-03\n"

	n, err := New(rec, &fakeResolver{}, nil).Import(context.Background(), "u.csv", "text/csv; charset=utf-8", strings.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, rec.stored, 1)
	assert.Equal(t, "Ana", rec.stored[0].Nombre)
}

func TestImport_MissingColumnFailsBeforeAnyRow(t *testing.T) {
	rec := &fakeRecorder{}

	file := "nombre,apellidos,numeroIdentificacion,telefono,fecha_nacimiento\n" +
		"Ana,Pons,A1,600,2001-02-03\n"

	_, err := New(rec, &fakeResolver{}, nil).Import(context.Background(), "u.csv", "text/csv", strings.NewReader(file))

	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "email", missing.Field)
	assert.Empty(t, rec.stored)
}

func TestImport_UnsupportedMediaType(t *testing.T) {
	body := &strings.Reader{}

	_, err := New(&fakeRecorder{}, &fakeResolver{}, nil).Import(context.Background(), "u.pdf", "application/pdf", body)
	require.ErrorIs(t, err, ErrUnsupportedMediaType)
}

func TestImport_MalformedCSV(t *testing.T) {
	file := validHeader + "unquoted \"quote,in,the,middle\n,too,few\n"

	_, err := New(&fakeRecorder{}, &fakeResolver{}, nil).Import(context.Background(), "u.csv", "text/csv", strings.NewReader(file))
	require.ErrorIs(t, err, ErrMalformedFile)
}

func TestImport_NonImageURLIsDropped(t *testing.T) {
	rec := &fakeRecorder{}
	res := &fakeResolver{
		valid:    map[string]bool{"https://example.com/page.html": true},
		notImage: map[string]bool{"https://example.com/page.html": true},
	}

	file := validHeader + "Luz,Vega,luz@example.com,L1,600,1999-09-09,https://example.com/page.html\n"

	n, err := New(rec, res, nil).Import(context.Background(), "u.csv", "text/csv", strings.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, rec.stored, 1)
	assert.Empty(t, rec.stored[0].ArchivoURL)
}

func TestImport_UnreachableURLIsDropped(t *testing.T) {
	rec := &fakeRecorder{}
	res := &fakeResolver{} // ValidateURL false for everything

	file := validHeader + "Luz,Vega,luz@example.com,L1,600,1999-09-09,https://down.example.com/x.png\n"

	n, err := New(rec, res, nil).Import(context.Background(), "u.csv", "text/csv", strings.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, rec.stored, 1)
	assert.Empty(t, rec.stored[0].ArchivoURL)
}

func TestImport_FetchFailureAbortsRow(t *testing.T) {
	rec := &fakeRecorder{}
	res := &fakeResolver{
		valid:    map[string]bool{"https://img.example.com/b.png": true},
		fetchErr: map[string]bool{"https://img.example.com/b.png": true},
	}

	file := validHeader + "Luz,Vega,luz@example.com,L1,600,1999-09-09,https://img.example.com/b.png\n"

	_, err := New(rec, res, nil).Import(context.Background(), "u.csv", "text/csv", strings.NewReader(file))
	require.ErrorIs(t, err, images.ErrUpstreamFetch)
	assert.Empty(t, rec.stored)
}

func TestImport_PartialFailureKeepsEarlierRows(t *testing.T) {
	rec := &fakeRecorder{failOn: "X2"}

	file := validHeader +
		"María,García,maria@example.com,X1,600111222,1990-04-01,\n" +
		"Pedro,Ruiz,pedro@example.com,X2,600333444,1985-12-24,\n" +
		"Ana,Pons,ana@example.com,X3,600555666,2001-02-03,\n"

	_, err := New(rec, &fakeResolver{}, nil).Import(context.Background(), "u.csv", "text/csv", strings.NewReader(file))
	require.Error(t, err)

	// No rollback: the first row stays stored, the third is never reached.
	require.Len(t, rec.stored, 1)
	assert.Equal(t, "X1", rec.stored[0].NumeroIdentificacion)
}

func TestImport_XLSX(t *testing.T) {
	f := excelize.NewFile()

	rows := [][]interface{}{
		{"nombre", "apellidos", "email", "numeroIdentificacion", "telefono", "fecha_nacimiento"},
		{"María", "García", "maria@example.com", "X1", "600111222", "1990-04-01"},
		{"Pedro", "Ruiz", "pedro@example.com", "X2", "600333444", "1985-12-24"},
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rec := &fakeRecorder{}

	n, err := New(rec, &fakeResolver{}, nil).Import(context.Background(), "usuarios.xlsx", XLSXContentType, buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, rec.stored, 2)
	assert.Equal(t, "X2", rec.stored[1].NumeroIdentificacion)
}

func TestImport_MalformedXLSX(t *testing.T) {
	_, err := New(&fakeRecorder{}, &fakeResolver{}, nil).Import(context.Background(), "u.xlsx", XLSXContentType, strings.NewReader("this is not a zip archive"))
	require.ErrorIs(t, err, ErrMalformedFile)
}

func TestDetectKind_ExtensionFallback(t *testing.T) {
	kind, err := detectKind("usuarios.CSV", "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, kindCSV, kind)

	kind, err = detectKind("usuarios.xlsx", "")
	require.NoError(t, err)
	assert.Equal(t, kindXLSX, kind)

	_, err = detectKind("usuarios.txt", "application/octet-stream")
	require.ErrorIs(t, err, ErrUnsupportedMediaType)
}

func TestDetectKind_OnlyDeclaredTypesAccepted(t *testing.T) {
	// A declared media type is taken at face value; the extension fallback
	// only applies when the client sent nothing usable.
	_, err := detectKind("usuarios.csv", "application/csv")
	require.ErrorIs(t, err, ErrUnsupportedMediaType)

	_, err = detectKind("usuarios.csv", "application/pdf")
	require.ErrorIs(t, err, ErrUnsupportedMediaType)
}
