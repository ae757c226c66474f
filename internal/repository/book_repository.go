package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iliyamo/bookshelf-auth/internal/model"
)

// BookSortFields lists the columns a listing may be ordered by.
var BookSortFields = []string{"id", "title", "isbn", "publisher", "price", "rating", "created_at", "updated_at"}

// BookQuery defines filters, ordering and pagination for the catalog.
// Title is an exact match and takes priority over Search, which matches
// title, description or an author name.
type BookQuery struct {
	Search    string
	Title     string
	Author    string
	Category  string
	Language  string
	Publisher string
	MinPrice  *float64
	MaxPrice  *float64
	SortBy    string
	SortOrder string
	Page      int
	PerPage   int
}

// BookRepo reads the catalog.
type BookRepo struct{ db *sql.DB }

func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{db: db} }

func (q BookQuery) where() (string, []any) {
	where := []string{"b.deleted_at IS NULL"}
	args := []any{}

	if q.Title != "" {
		where = append(where, "b.title = ?")
		args = append(args, q.Title)
	} else if q.Search != "" {
		where = append(where, "(b.title LIKE ? OR b.description LIKE ? OR JSON_CONTAINS(b.authors, JSON_QUOTE(?)))")
		like := "%" + q.Search + "%"
		args = append(args, like, like, q.Search)
	}
	if q.Author != "" {
		where = append(where, "JSON_CONTAINS(b.authors, JSON_QUOTE(?))")
		args = append(args, q.Author)
	}
	if q.Category != "" {
		where = append(where, "JSON_CONTAINS(b.categories, JSON_QUOTE(?))")
		args = append(args, q.Category)
	}
	if q.Language != "" {
		where = append(where, "b.language = ?")
		args = append(args, q.Language)
	}
	if q.Publisher != "" {
		where = append(where, "b.publisher LIKE ?")
		args = append(args, "%"+q.Publisher+"%")
	}
	if q.MinPrice != nil {
		where = append(where, "b.price >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		where = append(where, "b.price <= ?")
		args = append(args, *q.MaxPrice)
	}
	return strings.Join(where, " AND "), args
}

// orderBy only ever emits whitelisted identifiers.
func (q BookQuery) orderBy() string {
	col := "created_at"
	for _, f := range BookSortFields {
		if f == q.SortBy {
			col = f
			break
		}
	}
	dir := "DESC"
	if strings.EqualFold(q.SortOrder, "asc") {
		dir = "ASC"
	}
	return "b." + col + " " + dir
}

// Search returns one page of books and the total number of matches.
func (r *BookRepo) Search(ctx context.Context, q BookQuery) ([]model.Book, int64, error) {
	cond, args := q.where()

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books b WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	dataSQL := `SELECT b.id, b.uuid, b.title, b.slug, b.description, b.isbn, b.publisher,
			b.published_date, b.pages, b.language, b.price, b.stock_quantity,
			b.cover_image, b.cover_image_url, b.categories, b.authors,
			b.rating, b.rating_count, b.user_id, b.created_at, b.updated_at, b.deleted_at
		FROM books b
		WHERE ` + cond + `
		ORDER BY ` + q.orderBy() + `
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), q.PerPage, (q.Page-1)*q.PerPage)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	out := make([]model.Book, 0, q.PerPage)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func scanBook(rows *sql.Rows) (model.Book, error) {
	var (
		b                                      model.Book
		desc, isbn, publisher, cover, coverURL sql.NullString
		published, deleted                     sql.NullTime
		pages                                  sql.NullInt64
		price                                  sql.NullFloat64
		categories, authors                    []byte
	)
	if err := rows.Scan(&b.ID, &b.PublicID, &b.Title, &b.Slug, &desc, &isbn, &publisher,
		&published, &pages, &b.Language, &price, &b.StockQuantity,
		&cover, &coverURL, &categories, &authors,
		&b.Rating, &b.RatingCount, &b.UserID, &b.CreatedAt, &b.UpdatedAt, &deleted); err != nil {
		return model.Book{}, err
	}
	b.Description = nullString(desc)
	b.ISBN = nullString(isbn)
	b.Publisher = nullString(publisher)
	b.CoverImage = nullString(cover)
	b.CoverImageURL = nullString(coverURL)
	if published.Valid {
		t := published.Time
		b.PublishedDate = &t
	}
	if deleted.Valid {
		t := deleted.Time
		b.DeletedAt = &t
	}
	if pages.Valid {
		n := int(pages.Int64)
		b.Pages = &n
	}
	if price.Valid {
		p := price.Float64
		b.Price = &p
	}
	b.Categories = jsonArray(categories)
	b.Authors = jsonArray(authors)
	return b, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func jsonArray(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("[]")
	}
	return json.RawMessage(raw)
}
