package handler

import (
	"context"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bookshelf-auth/internal/apperr"
	"github.com/iliyamo/bookshelf-auth/internal/model"
	"github.com/iliyamo/bookshelf-auth/internal/repository"
)

// maxPage keeps (page-1)*per_page inside a MySQL OFFSET at the largest
// per_page.
const maxPage = math.MaxInt32 / 100

// BookSearcher is implemented by repository.BookRepo.
type BookSearcher interface {
	Search(ctx context.Context, q repository.BookQuery) ([]model.Book, int64, error)
}

type BookHandler struct {
	Books BookSearcher
}

func NewBookHandler(books BookSearcher) *BookHandler {
	return &BookHandler{Books: books}
}

type pagination struct {
	CurrentPage      int   `json:"current_page"`
	PerPage          int   `json:"per_page"`
	Total            int64 `json:"total"`
	LastPage         int   `json:"last_page"`
	From             *int  `json:"from"`
	To               *int  `json:"to"`
	HasMorePages     bool  `json:"has_more_pages"`
	HasPreviousPages bool  `json:"has_previous_pages"`
}

type sorting struct {
	SortBy              string   `json:"current_sort_by"`
	SortOrder           string   `json:"current_sort_order"`
	AvailableSortFields []string `json:"available_sort_fields"`
}

type bookFilters struct {
	Title     *string  `json:"title"`
	Search    *string  `json:"search"`
	Author    *string  `json:"author"`
	Category  *string  `json:"category"`
	Language  *string  `json:"language"`
	Publisher *string  `json:"publisher"`
	MinPrice  *float64 `json:"min_price"`
	MaxPrice  *float64 `json:"max_price"`
}

type bookListBody struct {
	Success    bool         `json:"success"`
	Message    string       `json:"message"`
	Data       []model.Book `json:"data"`
	Pagination pagination   `json:"pagination"`
	Meta       struct {
		Sorting sorting     `json:"sorting"`
		Filters bookFilters `json:"filters"`
	} `json:"meta"`
}

// List: GET /books
// sort_by falls back to created_at and sort_order to desc when the values
// are not recognised; per_page is clamped to 1..100 and page to
// 1..maxPage.
func (h *BookHandler) List(c echo.Context) error {
	minPrice, err := priceParam(c, "min_price")
	if err != nil {
		return err
	}
	maxPrice, err := priceParam(c, "max_price")
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	per, _ := strconv.Atoi(c.QueryParam("per_page"))
	if per < 1 {
		per = 10
	}
	if per > 100 {
		per = 100
	}
	sortBy := c.QueryParam("sort_by")
	if !slices.Contains(repository.BookSortFields, sortBy) {
		sortBy = "created_at"
	}
	sortOrder := strings.ToLower(c.QueryParam("sort_order"))
	if sortOrder != "asc" {
		sortOrder = "desc"
	}

	q := repository.BookQuery{
		Search:    strings.TrimSpace(c.QueryParam("search")),
		Title:     strings.TrimSpace(c.QueryParam("title")),
		Author:    strings.TrimSpace(c.QueryParam("author")),
		Category:  strings.TrimSpace(c.QueryParam("category")),
		Language:  strings.TrimSpace(c.QueryParam("language")),
		Publisher: strings.TrimSpace(c.QueryParam("publisher")),
		MinPrice:  minPrice,
		MaxPrice:  maxPrice,
		SortBy:    sortBy,
		SortOrder: sortOrder,
		Page:      page,
		PerPage:   per,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, total, err := h.Books.Search(ctx, q)
	if err != nil {
		return apperr.Unexpected(err)
	}

	var body bookListBody
	body.Success = true
	body.Message = "Books retrieved successfully"
	body.Data = items
	body.Pagination = paginate(page, per, total, len(items))
	body.Meta.Sorting = sorting{SortBy: sortBy, SortOrder: sortOrder, AvailableSortFields: repository.BookSortFields}
	body.Meta.Filters = bookFilters{
		Title:     optional(q.Title),
		Search:    optional(q.Search),
		Author:    optional(q.Author),
		Category:  optional(q.Category),
		Language:  optional(q.Language),
		Publisher: optional(q.Publisher),
		MinPrice:  minPrice,
		MaxPrice:  maxPrice,
	}
	return c.JSON(http.StatusOK, body)
}

func paginate(page, per int, total int64, count int) pagination {
	last := int((total + int64(per) - 1) / int64(per))
	if last < 1 {
		last = 1
	}
	p := pagination{
		CurrentPage:      page,
		PerPage:          per,
		Total:            total,
		LastPage:         last,
		HasMorePages:     page < last,
		HasPreviousPages: page > 1,
	}
	if count > 0 {
		from := (page-1)*per + 1
		to := from + count - 1
		p.From, p.To = &from, &to
	}
	return p
}

func priceParam(c echo.Context, name string) (*float64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, apperr.Validation(apperr.Fields{name: {"The " + strings.ReplaceAll(name, "_", " ") + " field must be a non-negative number."}})
	}
	return &v, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
