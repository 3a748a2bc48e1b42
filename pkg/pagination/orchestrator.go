package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Sternrassler/rally-wsapi-client/pkg/client"
	"github.com/Sternrassler/rally-wsapi-client/pkg/envelope"
	"github.com/Sternrassler/rally-wsapi-client/pkg/logging"
	"github.com/rs/zerolog"
)

// Query parameters controlling WSAPI paging.
const (
	ParamPageSize = "pagesize"
	ParamStart    = "start"
)

const (
	// DefaultPageSize is the page size requested when Options.PageSize is zero.
	DefaultPageSize = 200

	// DefaultLimit is the conventional "fetch everything" limit.
	DefaultLimit = 99999
)

// Conn is the part of *client.Connection the fetcher needs.
type Conn interface {
	Send(ctx context.Context, req client.Request) (*envelope.Document, error)
	Workers() int
}

// Options controls a paged fetch.
type Options struct {
	// PageSize is the number of results per page (0 selects DefaultPageSize).
	// A pagesize request parameter overrides it.
	PageSize int

	// Limit caps the number of results returned. Zero or negative means no cap.
	Limit int
}

// DefaultOptions returns page size 200 and limit 99999.
func DefaultOptions() Options {
	return Options{
		PageSize: DefaultPageSize,
		Limit:    DefaultLimit,
	}
}

// Fetcher runs paged queries over a connection.
type Fetcher struct {
	conn   Conn
	logger zerolog.Logger
}

// NewFetcher creates a fetcher for conn.
func NewFetcher(conn Conn) *Fetcher {
	return &Fetcher{
		conn:   conn,
		logger: logging.NewLogger("pagination"),
	}
}

// FetchAll fetches every page of the query described by req and returns the
// first page's document with the results of all pages merged into it.
//
// The request is always sent as GET. Any page failure aborts the fetch and
// is returned unchanged.
func (f *Fetcher) FetchAll(ctx context.Context, req client.Request, opts Options) (*envelope.Document, error) {
	start := time.Now()

	base, pageSize, err := pagedRequest(req, opts)
	if err != nil {
		return nil, err
	}

	first, err := f.conn.Send(ctx, base)
	if err != nil {
		return nil, err
	}
	pagesFetchedTotal.Inc()
	if err := requireQuery(base.URL, first); err != nil {
		return nil, err
	}

	total := first.Envelope.TotalResultCount
	stop := total
	if opts.Limit > 0 && opts.Limit < stop {
		stop = opts.Limit
	}

	tasks := pageTasks(base, pageSize, stop)

	f.logger.Debug().
		Str("url", base.URL).
		Int("total", total).
		Int("stop", stop).
		Int("page_size", pageSize).
		Int("remaining_pages", len(tasks)).
		Msg("Starting paged fetch")

	pages, err := f.RunAll(ctx, tasks)
	if err != nil {
		return nil, err
	}

	results := make([]json.RawMessage, 0, stop)
	results = append(results, first.Envelope.Results...)
	for _, page := range pages {
		if err := requireQuery(base.URL, page.Document); err != nil {
			return nil, err
		}
		results = append(results, page.Document.Envelope.Results...)
	}
	if stop >= 0 && len(results) > stop {
		results = results[:stop]
	}

	if err := first.SetResults(results); err != nil {
		return nil, fmt.Errorf("merge page results: %w", err)
	}

	duration := time.Since(start)
	fetchDuration.Observe(duration.Seconds())
	f.logger.Info().
		Str("url", base.URL).
		Int("pages", len(pages)+1).
		Int("results", len(results)).
		Int("total", total).
		Dur("duration", duration).
		Msg("Paged fetch complete")

	return first, nil
}

// pagedRequest builds the first-page request: pagesize and start=1 under
// the caller's parameters, method forced to GET.
func pagedRequest(req client.Request, opts Options) (client.Request, int, error) {
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	defaults := map[string]string{
		ParamPageSize: strconv.Itoa(pageSize),
		ParamStart:    "1",
	}
	base := client.NewRequest(req.URL, defaults).WithParams(req.Params)

	pageSize, err := strconv.Atoi(base.Params[ParamPageSize])
	if err != nil || pageSize <= 0 {
		return client.Request{}, 0, fmt.Errorf("page size must be a positive integer (got %q)", base.Params[ParamPageSize])
	}
	return base, pageSize, nil
}

// pageTasks returns one task per remaining page, starting at pageSize+1 and
// numbered from 2.
func pageTasks(base client.Request, pageSize, stop int) []PageTask {
	if stop <= pageSize {
		return nil
	}

	tasks := make([]PageTask, 0, (stop-1)/pageSize)
	seq := 2
	for start := pageSize + 1; start <= stop; start += pageSize {
		tasks = append(tasks, PageTask{
			Seq:     seq,
			Start:   start,
			Request: base.WithParams(map[string]string{ParamStart: strconv.Itoa(start)}),
		})
		seq++
	}
	return tasks
}

func requireQuery(rawURL string, doc *envelope.Document) error {
	if doc != nil && doc.Envelope.Kind == envelope.KindQuery {
		return nil
	}
	keys := "none"
	if doc != nil {
		keys = fmt.Sprint(doc.Keys())
	}
	return &client.MalformedResponseError{
		URL:  rawURL,
		Body: "top-level keys: " + keys,
		Err:  client.ErrNoQueryResult,
	}
}
