package source

import (
	"context"
	"io"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/observability"
	"github.com/ajitpratap0/nebula-restclient/pkg/record"
	"github.com/ajitpratap0/nebula-restclient/pkg/splitter"
	"github.com/ajitpratap0/nebula-restclient/pkg/timestamp"
)

// Fetcher returns the body of a successful GET
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// HTTPOptions configures an HTTPSource
type HTTPOptions struct {
	URL string
	// Window is sent as BeginParam and EndParam, rendered by WindowFormatter
	Window          splitter.Window
	WindowFormatter *timestamp.Formatter
	BeginParam      string
	EndParam        string
	// RecordsPath locates the records in a page; the root when empty
	RecordsPath record.Path
	// NextPath locates the next page link or cursor. Without it the first
	// page is the only one.
	NextPath *record.Path
	// CursorParam sends the value at NextPath as a query parameter of URL
	// instead of following it as a link
	CursorParam   string
	PageSize      int
	PageSizeParam string
	// MaxPages stops paging early; zero means no limit
	MaxPages int
	Logger   *zap.Logger
}

// HTTPSource pages through a JSON API for one window
type HTTPSource struct {
	fetcher Fetcher
	opts    HTTPOptions
	base    *url.URL
	next    string
	pending []*record.Record
	pages   int
	done    bool
	// fetched holds every page URL requested so far
	fetched map[string]struct{}
	// failed is reported once the records already read are consumed
	failed error
}

// NewHTTPSource prepares the first page request
func NewHTTPSource(fetcher Fetcher, opts HTTPOptions) (*HTTPSource, error) {
	base, err := url.Parse(opts.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid source url")
	}
	if opts.WindowFormatter == nil {
		opts.WindowFormatter = timestamp.MustNew("rfc3339", "")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &HTTPSource{fetcher: fetcher, opts: opts, base: base, fetched: make(map[string]struct{})}
	s.next = s.pageURL(nil)
	return s, nil
}

// pageURL adds the window, page size and optional cursor to the base URL
func (s *HTTPSource) pageURL(cursor *string) string {
	u := *s.base
	q := u.Query()
	if s.opts.BeginParam != "" {
		q.Set(s.opts.BeginParam, s.opts.WindowFormatter.Format(s.opts.Window.Begin))
	}
	if s.opts.EndParam != "" {
		q.Set(s.opts.EndParam, s.opts.WindowFormatter.Format(s.opts.Window.End))
	}
	if s.opts.PageSizeParam != "" && s.opts.PageSize > 0 {
		q.Set(s.opts.PageSizeParam, strconv.Itoa(s.opts.PageSize))
	}
	if cursor != nil {
		q.Set(s.opts.CursorParam, *cursor)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *HTTPSource) Next(ctx context.Context) (*record.Record, error) {
	for len(s.pending) == 0 {
		if s.failed != nil {
			return nil, s.failed
		}
		if s.done {
			return nil, io.EOF
		}
		if err := s.fetch(ctx); err != nil {
			return nil, err
		}
	}
	r := s.pending[0]
	s.pending = s.pending[1:]
	return r, nil
}

func (s *HTTPSource) fetch(ctx context.Context) (err error) {
	current := s.next
	ctx, span := observability.StartSpan(ctx, "source.page",
		attribute.String("http.url", current),
		attribute.Int("page", s.pages))
	defer func() { observability.EndSpan(span, err) }()

	body, err := s.fetcher.Get(ctx, current)
	if err != nil {
		return err
	}
	s.pages++
	s.fetched[current] = struct{}{}

	page, err := record.Parse(body)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "malformed page").WithDetail("url", current)
	}
	located, err := s.opts.RecordsPath.Locate(page)
	if err != nil {
		return err
	}
	s.pending = elements(located)
	span.SetAttributes(attribute.Int("records", len(s.pending)))

	s.done = true
	if len(s.pending) == 0 || s.opts.NextPath == nil {
		return nil
	}
	if s.opts.MaxPages > 0 && s.pages >= s.opts.MaxPages {
		s.opts.Logger.Debug("page limit reached", zap.Int("pages", s.pages))
		return nil
	}

	v, err := s.opts.NextPath.Locate(page)
	if err != nil || v.IsMissing() {
		return err
	}
	link, err := v.Text()
	if err != nil || link == "" {
		return err
	}

	if s.opts.CursorParam != "" {
		s.next = s.pageURL(&link)
	} else {
		ref, err := url.Parse(link)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "invalid next page link").WithDetail("link", link)
		}
		s.next = s.base.ResolveReference(ref).String()
	}
	// A service whose links lead back to a page already read would be paged
	// forever and its records imported twice.
	if _, seen := s.fetched[s.next]; seen {
		s.failed = errors.New(errors.ErrorTypeData, "next page link leads back to a page already fetched").
			WithDetail("url", s.next).
			WithDetail("pages", s.pages)
		return nil
	}
	s.done = false
	return nil
}

// Pages returns how many pages were fetched
func (s *HTTPSource) Pages() int { return s.pages }

func (s *HTTPSource) Close() error { return nil }
