package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yptunaskarya/perpus-api/internal/dto"
	"github.com/yptunaskarya/perpus-api/internal/models"
	"github.com/yptunaskarya/perpus-api/internal/repository"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
	"github.com/yptunaskarya/perpus-api/pkg/export"
	"github.com/yptunaskarya/perpus-api/pkg/jobs"
)

const (
	// JobTypeBookQR labels background jobs that render and store a title's QR code.
	JobTypeBookQR = "book_qr"

	bookCachePattern = "books:*"
)

type bookRepository interface {
	List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error)
	Search(ctx context.Context, q string, limit int) ([]models.Book, error)
	FindByID(ctx context.Context, id string) (*models.Book, error)
	FindByTitle(ctx context.Context, title string) (*models.Book, error)
	Create(ctx context.Context, book *models.Book, items []models.Item) error
	Update(ctx context.Context, book *models.Book) error
	DeleteCascade(ctx context.Context, id string) (int, error)
	AddCopies(ctx context.Context, bookID string, items []models.Item) (int, error)
	ReduceCopies(ctx context.Context, bookID string, quantity int, status models.ItemStatus, notes string) ([]string, int, error)
}

// BookService implements catalog use cases: listing, dedup-aware creation, and the
// two stock funnels every copy-count mutation goes through.
type BookService struct {
	repo      bookRepository
	cache     *CacheService
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
	branchID  string
}

// NewBookService constructs a BookService.
func NewBookService(repo bookRepository, cache *CacheService, queue *jobs.Queue, validate *validator.Validate, logger *zap.Logger, branchID string) *BookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookService{repo: repo, cache: cache, queue: queue, validator: validate, logger: logger, branchID: branchID}
}

// List returns a catalog page.
func (s *BookService) List(ctx context.Context, filter models.BookFilter) (*dto.BookListResponse, error) {
	books, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list books")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return &dto.BookListResponse{
		Books:      books,
		Pagination: models.Pagination{Page: page, PageSize: size, TotalCount: total},
	}, nil
}

// Search performs a title/author lookup, cached when caching is enabled.
func (s *BookService) Search(ctx context.Context, q string, limit int) ([]models.Book, error) {
	cacheKey := fmt.Sprintf("books:search:%s:%d", q, limit)
	var cached []models.Book
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	books, err := s.repo.Search(ctx, q, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search books")
	}
	if err := s.cache.Set(ctx, cacheKey, books, 0); err != nil {
		s.logger.Warn("failed to cache book search", zap.Error(err))
	}
	return books, nil
}

// Get fetches one title.
func (s *BookService) Get(ctx context.Context, id string) (*models.Book, error) {
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch book")
	}
	return book, nil
}

// Create registers a title with its opening copies. When a title with the same name
// already exists the request folds into a stock addition on that title instead of
// creating a duplicate.
func (s *BookService) Create(ctx context.Context, req dto.CreateBookRequest) (*models.Book, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid book payload")
	}

	existing, err := s.repo.FindByTitle(ctx, req.Title)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check title")
	}
	if existing != nil {
		if req.Copies > 0 {
			items := s.buildItems(existing.ID, req.Copies, req.Location)
			total, err := s.repo.AddCopies(ctx, existing.ID, items)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add copies")
			}
			existing.TotalCopies = total
		}
		s.invalidateCatalogCache(ctx)
		return existing, nil
	}

	book := &models.Book{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Author:      req.Author,
		Category:    req.Category,
		Year:        req.Year,
		Publisher:   req.Publisher,
		CoverURL:    req.CoverURL,
		Location:    req.Location,
		TotalCopies: req.Copies,
	}
	items := s.buildItems(book.ID, req.Copies, req.Location)
	if err := s.repo.Create(ctx, book, items); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create book")
	}

	s.enqueueQRJob(book.ID)
	s.invalidateCatalogCache(ctx)
	return book, nil
}

// Update mutates descriptive fields of a title.
func (s *BookService) Update(ctx context.Context, id string, req dto.UpdateBookRequest) (*models.Book, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid book payload")
	}

	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	book.Title = req.Title
	book.Author = req.Author
	book.Category = req.Category
	book.Year = req.Year
	book.Publisher = req.Publisher
	book.CoverURL = req.CoverURL
	book.Location = req.Location

	if err := s.repo.Update(ctx, book); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update book")
	}
	s.invalidateCatalogCache(ctx)
	return book, nil
}

// Delete removes a title and all its exemplars.
func (s *BookService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.DeleteCascade(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete book")
	}
	s.logger.Info("book deleted", zap.String("book_id", id), zap.Int("items_removed", deleted))
	s.invalidateCatalogCache(ctx)
	return nil
}

// AddStock adds physical copies of an existing title and returns the new count.
func (s *BookService) AddStock(ctx context.Context, id string, req dto.AddStockRequest) (*models.Book, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid stock payload")
	}

	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	items := s.buildItems(book.ID, req.Quantity, book.Location)
	total, err := s.repo.AddCopies(ctx, book.ID, items)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add stock")
	}
	book.TotalCopies = total
	s.invalidateCatalogCache(ctx)
	return book, nil
}

// ReduceStock withdraws copies from circulation. Only available exemplars are
// eligible; asking for more than are available fails with a conflict.
func (s *BookService) ReduceStock(ctx context.Context, id string, req dto.ReduceStockRequest) (*models.Book, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid stock payload")
	}

	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	_, total, err := s.repo.ReduceCopies(ctx, book.ID, req.Quantity, req.Reason.ItemStatus(), req.Notes)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, appErrors.Clone(appErrors.ErrInsufficientStock, "not enough available copies")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reduce stock")
	}
	book.TotalCopies = total
	s.invalidateCatalogCache(ctx)
	return book, nil
}

// Import ingests a spreadsheet of titles. Rows are keyed by title; existing titles
// fold into stock additions the same way Create does.
func (s *BookService) Import(ctx context.Context, raw []byte) (*dto.ImportResult, error) {
	data, err := export.Parse(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable spreadsheet")
	}

	cols := columnIndex(data.Headers)
	result := &dto.ImportResult{}
	for i, row := range data.Rows {
		title := cell(row, cols.lookup("title"))
		if title == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: missing title", i+2))
			continue
		}
		copies, _ := strconv.Atoi(cell(row, cols.lookup("copies")))
		req := dto.CreateBookRequest{
			Title:     title,
			Author:    cell(row, cols.lookup("author")),
			Category:  cell(row, cols.lookup("category")),
			Year:      cell(row, cols.lookup("year")),
			Publisher: cell(row, cols.lookup("publisher")),
			Location:  cell(row, cols.lookup("location")),
			Copies:    copies,
		}
		if _, err := s.Create(ctx, req); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+2, err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

// ExportDataset flattens the catalog into a tabular dataset for the export formats.
func (s *BookService) ExportDataset(ctx context.Context) (export.Dataset, error) {
	books, _, err := s.repo.List(ctx, models.BookFilter{PageSize: 100, Page: 1})
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load books")
	}
	data := export.Dataset{
		Headers: []string{"title", "author", "category", "year", "publisher", "location", "copies"},
	}
	for _, b := range books {
		data.Rows = append(data.Rows, []string{
			b.Title, b.Author, b.Category, b.Year, b.Publisher, b.Location, strconv.Itoa(b.TotalCopies),
		})
	}
	return data, nil
}

// EnqueueQR schedules QR regeneration for one title.
func (s *BookService) EnqueueQR(bookID string) {
	s.enqueueQRJob(bookID)
}

func (s *BookService) enqueueQRJob(bookID string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{
		ID:   uuid.NewString(),
		Kind: JobTypeBookQR,
		Ref:  bookID,
	}); err != nil {
		s.logger.Warn("failed to enqueue qr job", zap.String("book_id", bookID), zap.Error(err))
	}
}

func (s *BookService) invalidateCatalogCache(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, bookCachePattern); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}

// buildItems mints exemplar rows with sequential unique codes.
func (s *BookService) buildItems(bookID string, count int, location string) []models.Item {
	ts := time.Now().UTC().UnixMilli()
	items := make([]models.Item, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, models.Item{
			ID:         uuid.NewString(),
			BookID:     bookID,
			UniqueCode: fmt.Sprintf("BOOK-%s-%d-%d", bookID, ts, i+1),
			Status:     models.ItemStatusAvailable,
			Location:   location,
			BranchID:   s.branchID,
		})
	}
	return items
}

type headerIndex map[string]int

func columnIndex(headers []string) headerIndex {
	idx := make(headerIndex, len(headers))
	for i, h := range headers {
		idx[normalizeHeader(h)] = i
	}
	return idx
}

// lookup returns the column position or -1 when the header is absent.
func (h headerIndex) lookup(name string) int {
	if i, ok := h[name]; ok {
		return i
	}
	return -1
}

func normalizeHeader(h string) string {
	out := make([]rune, 0, len(h))
	for _, r := range h {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '_' || r == '-':
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
