package ephemeris

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/star/orbitgo/internal/metrics"
)

// DefaultSourceURL is the JPL Horizons batch interface.
const DefaultSourceURL = "https://ssd.jpl.nasa.gov/horizons_batch.cgi"

// maxBodyBytes caps a single Horizons response.
const maxBodyBytes = 50 << 20

// ErrBodyTooLarge is returned when a response exceeds the byte limit.
var ErrBodyTooLarge = errors.New("response exceeds byte limit")

// Fetcher retrieves raw Horizons vector tables. The response text is opaque
// to this package; it is returned and cached verbatim.
type Fetcher struct {
	sourceURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the given source URL.
func NewFetcher(sourceURL string, logger *slog.Logger) *Fetcher {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	return &Fetcher{
		sourceURL: sourceURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Query builds the Horizons batch parameters for a heliocentric
// (solar system barycenter) vector table in the ecliptic plane.
func Query(id string, span Span) url.Values {
	q := url.Values{}
	q.Set("batch", "1")
	q.Set("MAKE_EPHEM", "YES")
	q.Set("COMMAND", quote(id))
	q.Set("EPHEM_TYPE", quote("VECTORS"))
	q.Set("CENTER", quote("500@0"))
	q.Set("START_TIME", quote(span.Start.UTC().Format(DateLayout)))
	q.Set("STOP_TIME", quote(span.Stop.UTC().Format(DateLayout)))
	q.Set("STEP_SIZE", quote(span.Step))
	q.Set("VEC_TABLE", quote("3"))
	q.Set("REF_SYSTEM", quote("ICRF"))
	q.Set("REF_PLANE", quote("ECLIPTIC"))
	q.Set("VEC_CORR", quote("NONE"))
	q.Set("CAL_TYPE", quote("M"))
	q.Set("OUT_UNITS", quote("KM-S"))
	q.Set("VEC_LABELS", quote("YES"))
	q.Set("VEC_DELTA_T", quote("NO"))
	q.Set("CSV_FORMAT", quote("NO"))
	q.Set("OBJ_DATA", quote("YES"))
	return q
}

func quote(s string) string {
	return "'" + s + "'"
}

// Fetch performs an HTTP GET for one body's vector table.
func (f *Fetcher) Fetch(ctx context.Context, id string, span Span) ([]byte, error) {
	if err := span.Validate(); err != nil {
		return nil, err
	}

	u, err := url.Parse(f.sourceURL)
	if err != nil {
		return nil, fmt.Errorf("parsing source url: %w", err)
	}
	u.RawQuery = Query(id, span).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching ephemeris for %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s for %s", resp.StatusCode, f.sourceURL, id)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("ephemeris for %s exceeds %d byte limit: %w", id, maxBodyBytes, ErrBodyTooLarge)
	}

	return body, nil
}

// Result is the outcome of fetching one body.
type Result struct {
	ID   string
	Data []byte
	Err  error
}

// FetchAll fetches every id with at most limit requests in flight.
// A failing body does not stop the others; results keep the input order.
func (f *Fetcher) FetchAll(ctx context.Context, ids []string, span Span, limit int) []Result {
	if limit < 1 {
		limit = 1
	}
	results := make([]Result, len(ids))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			data, err := f.Fetch(ctx, id, span)
			metrics.RecordEphemerisFetch(err)
			if err != nil {
				f.logger.Warn("ephemeris fetch failed", "horizons_id", id, "error", err)
			}
			results[i] = Result{ID: id, Data: data, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
