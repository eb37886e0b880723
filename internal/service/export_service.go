package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
	"github.com/yptunaskarya/perpus-api/pkg/export"
	"github.com/yptunaskarya/perpus-api/pkg/storage"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatPDF  ExportFormat = "pdf"
)

// ContentType returns the MIME type of the rendered file.
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return export.XLSXContentType
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Filename     string
	Format       ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders tabular datasets into downloadable files and hands out
// signed, expiring download links.
type ExportService struct {
	storage fileStorage
	csv     csvRenderer
	xlsx    xlsxRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		storage: store,
		csv:     export.NewCSVExporter(),
		xlsx:    export.NewXLSXExporter(),
		pdf:     export.NewPDFExporter(),
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate renders the dataset in the requested format, stores the file, and
// returns a signed download link.
func (s *ExportService) Generate(ctx context.Context, name string, data export.Dataset, format ExportFormat) (*ExportResult, error) {
	var payload []byte
	var err error
	switch format {
	case FormatCSV:
		payload, err = s.csv.Render(data)
	case FormatXLSX:
		payload, err = s.xlsx.Render(data, titleCase(name))
	case FormatPDF:
		payload, err = s.pdf.Render(data, titleCase(name))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	ref := uuid.NewString()
	filename := fmt.Sprintf("%s-%s.%s", name, time.Now().UTC().Format("20060102-150405"), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(ref, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	s.logger.Info("export generated",
		zap.String("name", name),
		zap.String("format", string(format)),
		zap.String("path", relPath))

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download?token=%s", s.cfg.APIPrefix, token),
		Filename:     filename,
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// Download validates a signed token and returns the stored file.
func (s *ExportService) Download(ctx context.Context, token string) (string, []byte, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link")
	}

	payload, err := s.storage.Read(relPath)
	if err != nil {
		return "", nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	return relPath, payload, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Cleanup removes expired export files. Intended to run periodically.
func (s *ExportService) Cleanup() {
	removed, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
}
