package httpserver

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/search"
	"github.com/civicdesk/civicdesk/internal/util"
)

type Searcher interface {
	Search(ctx context.Context, query string, from, size int) (int64, []search.Document, error)
}

type SearchHTTP struct {
	// Searcher is nil when Elasticsearch is not configured.
	Searcher Searcher
}

func (h *SearchHTTP) Complaints(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "search.complaints")

	if h.Searcher == nil {
		return fail(l, "search_failed", apperr.New(apperr.NotFound, "search is not configured"))
	}
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return fail(l, "search_failed", apperr.New(apperr.InvalidInput, "q is required"))
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	offset, limit := util.Calculate(page, util.ParseIntDefault(c.QueryParam("size"), util.DefaultLimit))
	total, docs, err := h.Searcher.Search(ctx, q, offset, limit)
	if err != nil {
		return fail(l, "search_failed", apperr.Wrap(apperr.Internal, err, "search complaints"))
	}
	return okPage(c, docs, pageMeta{Page: util.Page(offset, limit), Limit: limit, Total: total})
}
