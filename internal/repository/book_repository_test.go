package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yptunaskarya/perpus-api/internal/models"
)

func newBookMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func bookRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "title", "author", "category", "year", "publisher", "cover_url", "total_copies", "qr_code_url", "location", "created_at", "updated_at",
	}).AddRow("book-1", "Laskar Pelangi", "Andrea Hirata", "fiksi", 2005, "Bentang", "", 3, "", "Rak A1", now, now)
}

func TestBookRepositoryList(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM books WHERE 1=1 ORDER BY title ASC LIMIT 20 OFFSET 0").
		WillReturnRows(bookRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM books WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	books, total, err := repo.List(context.Background(), models.BookFilter{})
	require.NoError(t, err)
	assert.Len(t, books, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryCreateWithItems(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO books").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	book := &models.Book{Title: "Laskar Pelangi"}
	items := []models.Item{{UniqueCode: "BOOK-1-1-1"}, {UniqueCode: "BOOK-1-1-2"}}
	err := repo.Create(context.Background(), book, items)
	require.NoError(t, err)
	assert.Equal(t, 2, book.TotalCopies)
	assert.NotEmpty(t, book.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryAddCopies(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE books SET total_copies = total_copies + $2, updated_at = $3 WHERE id = $1 RETURNING total_copies")).
		WithArgs("book-1", 1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"total_copies"}).AddRow(4))
	mock.ExpectCommit()

	total, err := repo.AddCopies(context.Background(), "book-1", []models.Item{{UniqueCode: "BOOK-1-2-1"}})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryReduceCopies(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM items WHERE book_id = $1 AND status = $2 ORDER BY created_at LIMIT $3 FOR UPDATE")).
		WithArgs("book-1", models.ItemStatusAvailable, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("item-1").AddRow("item-2"))
	mock.ExpectExec("UPDATE items SET status").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE books SET total_copies = total_copies + $2, updated_at = $3 WHERE id = $1 RETURNING total_copies")).
		WithArgs("book-1", -2, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"total_copies"}).AddRow(1))
	mock.ExpectCommit()

	ids, total, err := repo.ReduceCopies(context.Background(), "book-1", 2, models.ItemStatusDamaged, "rusak air")
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryReduceCopiesInsufficient(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM items WHERE book_id = $1 AND status = $2 ORDER BY created_at LIMIT $3 FOR UPDATE")).
		WithArgs("book-1", models.ItemStatusAvailable, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("item-1"))
	mock.ExpectRollback()

	_, _, err := repo.ReduceCopies(context.Background(), "book-1", 5, models.ItemStatusLost, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryDeleteCascade(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM items WHERE book_id = $1")).
		WithArgs("book-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM books WHERE id = $1")).
		WithArgs("book-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	deleted, err := repo.DeleteCascade(context.Background(), "book-1")
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
