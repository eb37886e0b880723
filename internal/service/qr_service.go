package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yptunaskarya/perpus-api/pkg/jobs"
	"github.com/yptunaskarya/perpus-api/pkg/qrcode"
)

type qrBookRepository interface {
	UpdateQRCodeURL(ctx context.Context, id, url string) error
}

type qrStorage interface {
	Save(filename string, data []byte) (string, error)
}

// QRService renders and stores per-title QR codes. It runs as the handler of the
// background job queue so catalog writes never block on image generation.
type QRService struct {
	books         qrBookRepository
	storage       qrStorage
	generator     *qrcode.Generator
	logger        *zap.Logger
	publicBaseURL string
}

// NewQRService constructs a QRService.
func NewQRService(books qrBookRepository, store qrStorage, generator *qrcode.Generator, logger *zap.Logger, publicBaseURL string) *QRService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QRService{books: books, storage: store, generator: generator, logger: logger, publicBaseURL: publicBaseURL}
}

// HandleJob processes one queued QR generation job. The job ref is the book id.
func (s *QRService) HandleJob(ctx context.Context, job jobs.Job) error {
	bookID := job.Ref
	if bookID == "" {
		return fmt.Errorf("qr job %s: missing book id", job.ID)
	}

	png, err := s.generator.PNG(bookID)
	if err != nil {
		return fmt.Errorf("render qr for book %s: %w", bookID, err)
	}

	filename := fmt.Sprintf("qr-%s.png", bookID)
	relPath, err := s.storage.Save(filename, png)
	if err != nil {
		return fmt.Errorf("store qr for book %s: %w", bookID, err)
	}

	url := fmt.Sprintf("%s/%s", s.publicBaseURL, relPath)
	if err := s.books.UpdateQRCodeURL(ctx, bookID, url); err != nil {
		return fmt.Errorf("record qr url for book %s: %w", bookID, err)
	}

	s.logger.Info("book qr generated",
		zap.String("book_id", bookID),
		zap.String("url", url))
	return nil
}
