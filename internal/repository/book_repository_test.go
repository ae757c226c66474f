package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookColumns = []string{"id", "uuid", "title", "slug", "description", "isbn", "publisher",
	"published_date", "pages", "language", "price", "stock_quantity",
	"cover_image", "cover_image_url", "categories", "authors",
	"rating", "rating_count", "user_id", "created_at", "updated_at", "deleted_at"}

func TestBookQuery_WhereTitleBeatsSearch(t *testing.T) {
	minPrice := 10.0
	cond, args := BookQuery{Title: "Dune", Search: "ignored", Category: "Sci-Fi", MinPrice: &minPrice}.where()
	assert.Equal(t, "b.deleted_at IS NULL AND b.title = ? AND JSON_CONTAINS(b.categories, JSON_QUOTE(?)) AND b.price >= ?", cond)
	assert.Equal(t, []any{"Dune", "Sci-Fi", 10.0}, args)
}

func TestBookQuery_OrderByWhitelist(t *testing.T) {
	assert.Equal(t, "b.created_at DESC", BookQuery{SortBy: "password; DROP TABLE books"}.orderBy())
	assert.Equal(t, "b.price ASC", BookQuery{SortBy: "price", SortOrder: "ASC"}.orderBy())
	assert.Equal(t, "b.title DESC", BookQuery{SortBy: "title", SortOrder: "sideways"}.orderBy())
}

func TestBookRepo_Search(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM books b WHERE b.deleted_at IS NULL AND b.language = ?")).
		WithArgs("en").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY b.rating ASC")).
		WithArgs("en", 5, 5).
		WillReturnRows(sqlmock.NewRows(bookColumns).
			AddRow(6, "uuid-6", "Dune", "dune", "Spice", "9780441013593", "Ace",
				now, 412, "en", 9.99, 3,
				nil, nil, []byte(`["Sci-Fi"]`), []byte(`["Frank Herbert"]`),
				4.5, 20, 1, now, now, nil).
			AddRow(7, "uuid-7", "Untitled", "untitled", nil, nil, nil,
				nil, nil, "en", nil, 0,
				nil, nil, nil, nil,
				0.0, 0, 1, now, now, nil))

	books, total, err := NewBookRepo(db).Search(context.Background(), BookQuery{
		Language: "en", SortBy: "rating", SortOrder: "asc", Page: 2, PerPage: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, books, 2)

	assert.Equal(t, "Dune", books[0].Title)
	require.NotNil(t, books[0].Price)
	assert.Equal(t, 9.99, *books[0].Price)
	assert.JSONEq(t, `["Frank Herbert"]`, string(books[0].Authors))

	assert.Nil(t, books[1].Description)
	assert.Nil(t, books[1].Price)
	assert.JSONEq(t, `[]`, string(books[1].Categories))
}
