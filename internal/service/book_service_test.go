package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yptunaskarya/perpus-api/internal/dto"
	"github.com/yptunaskarya/perpus-api/internal/models"
	"github.com/yptunaskarya/perpus-api/internal/repository"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
)

type mockBookRepo struct {
	books         map[string]*models.Book
	byTitle       map[string]*models.Book
	created       *models.Book
	createdItems  []models.Item
	addedItems    []models.Item
	reducedQty    int
	reducedStatus models.ItemStatus
	reduceErr     error
	totalAfter    int
	deleted       int
}

func (m *mockBookRepo) List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	out := make([]models.Book, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (m *mockBookRepo) Search(ctx context.Context, q string, limit int) ([]models.Book, error) {
	return nil, nil
}

func (m *mockBookRepo) FindByID(ctx context.Context, id string) (*models.Book, error) {
	if b, ok := m.books[id]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookRepo) FindByTitle(ctx context.Context, title string) (*models.Book, error) {
	if b, ok := m.byTitle[title]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookRepo) Create(ctx context.Context, book *models.Book, items []models.Item) error {
	m.created = book
	m.createdItems = items
	return nil
}

func (m *mockBookRepo) Update(ctx context.Context, book *models.Book) error {
	if _, ok := m.books[book.ID]; !ok {
		return sql.ErrNoRows
	}
	m.books[book.ID] = book
	return nil
}

func (m *mockBookRepo) DeleteCascade(ctx context.Context, id string) (int, error) {
	if _, ok := m.books[id]; !ok {
		return 0, sql.ErrNoRows
	}
	delete(m.books, id)
	return m.deleted, nil
}

func (m *mockBookRepo) AddCopies(ctx context.Context, bookID string, items []models.Item) (int, error) {
	m.addedItems = items
	return m.totalAfter, nil
}

func (m *mockBookRepo) ReduceCopies(ctx context.Context, bookID string, quantity int, status models.ItemStatus, notes string) ([]string, int, error) {
	if m.reduceErr != nil {
		return nil, 0, m.reduceErr
	}
	m.reducedQty = quantity
	m.reducedStatus = status
	return nil, m.totalAfter, nil
}

func newBookService(repo *mockBookRepo) *BookService {
	return NewBookService(repo, nil, nil, validator.New(), zap.NewNop(), "pusat")
}

func TestBookServiceCreateNewTitle(t *testing.T) {
	repo := &mockBookRepo{books: map[string]*models.Book{}, byTitle: map[string]*models.Book{}}
	svc := newBookService(repo)

	book, err := svc.Create(context.Background(), dto.CreateBookRequest{
		Title:    "Laskar Pelangi",
		Author:   "Andrea Hirata",
		Location: "Rak A1",
		Copies:   3,
	})
	require.NoError(t, err)
	require.NotNil(t, repo.created)

	assert.NotEmpty(t, book.ID)
	assert.Equal(t, 3, book.TotalCopies)
	require.Len(t, repo.createdItems, 3)
	for _, item := range repo.createdItems {
		assert.True(t, strings.HasPrefix(item.UniqueCode, "BOOK-"+book.ID))
		assert.Equal(t, models.ItemStatusAvailable, item.Status)
		assert.Equal(t, "pusat", item.BranchID)
		assert.Equal(t, "Rak A1", item.Location)
	}
}

func TestBookServiceCreateFoldsIntoExistingTitle(t *testing.T) {
	existing := &models.Book{ID: "book-1", Title: "Laskar Pelangi", TotalCopies: 2}
	repo := &mockBookRepo{
		books:      map[string]*models.Book{"book-1": existing},
		byTitle:    map[string]*models.Book{"Laskar Pelangi": existing},
		totalAfter: 4,
	}
	svc := newBookService(repo)

	book, err := svc.Create(context.Background(), dto.CreateBookRequest{Title: "Laskar Pelangi", Copies: 2})
	require.NoError(t, err)

	assert.Nil(t, repo.created, "existing titles must not create a duplicate row")
	assert.Equal(t, "book-1", book.ID)
	assert.Equal(t, 4, book.TotalCopies)
	assert.Len(t, repo.addedItems, 2)
}

func TestBookServiceCreateExistingWithoutCopies(t *testing.T) {
	existing := &models.Book{ID: "book-1", Title: "Bumi Manusia", TotalCopies: 1}
	repo := &mockBookRepo{
		books:   map[string]*models.Book{"book-1": existing},
		byTitle: map[string]*models.Book{"Bumi Manusia": existing},
	}
	svc := newBookService(repo)

	book, err := svc.Create(context.Background(), dto.CreateBookRequest{Title: "Bumi Manusia"})
	require.NoError(t, err)
	assert.Equal(t, 1, book.TotalCopies)
	assert.Nil(t, repo.addedItems)
}

func TestBookServiceGetMissing(t *testing.T) {
	repo := &mockBookRepo{books: map[string]*models.Book{}}
	svc := newBookService(repo)

	_, err := svc.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBookServiceAddStock(t *testing.T) {
	repo := &mockBookRepo{
		books:      map[string]*models.Book{"book-1": {ID: "book-1", Title: "Bumi Manusia", Location: "Rak B2", TotalCopies: 1}},
		totalAfter: 3,
	}
	svc := newBookService(repo)

	book, err := svc.AddStock(context.Background(), "book-1", dto.AddStockRequest{Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, book.TotalCopies)
	require.Len(t, repo.addedItems, 2)
	assert.Equal(t, "Rak B2", repo.addedItems[0].Location)
}

func TestBookServiceReduceStockMapsReason(t *testing.T) {
	repo := &mockBookRepo{
		books:      map[string]*models.Book{"book-1": {ID: "book-1", TotalCopies: 5}},
		totalAfter: 3,
	}
	svc := newBookService(repo)

	book, err := svc.ReduceStock(context.Background(), "book-1", dto.ReduceStockRequest{Quantity: 2, Reason: models.ReduceReasonWithdrawn})
	require.NoError(t, err)
	assert.Equal(t, 3, book.TotalCopies)
	assert.Equal(t, 2, repo.reducedQty)
	assert.Equal(t, models.ItemStatusDamaged, repo.reducedStatus)
}

func TestBookServiceReduceStockInsufficient(t *testing.T) {
	repo := &mockBookRepo{
		books:     map[string]*models.Book{"book-1": {ID: "book-1", TotalCopies: 1}},
		reduceErr: repository.ErrInsufficientStock,
	}
	svc := newBookService(repo)

	_, err := svc.ReduceStock(context.Background(), "book-1", dto.ReduceStockRequest{Quantity: 5, Reason: models.ReduceReasonLost})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInsufficientStock.Code, appErrors.FromError(err).Code)
}

func TestBookServiceUpdateMissing(t *testing.T) {
	repo := &mockBookRepo{books: map[string]*models.Book{}}
	svc := newBookService(repo)

	_, err := svc.Update(context.Background(), "ghost", dto.UpdateBookRequest{Title: "Judul Baru"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
