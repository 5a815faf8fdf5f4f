package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_jobpreview/internal/engine"
)

// jsearchResponse is the envelope of the /search endpoint; only data is read.
type jsearchResponse struct {
	Status string           `json:"status"`
	Data   []engine.Listing `json:"data"`
}

var (
	searchGroup singleflight.Group

	limiterMu   sync.Mutex
	limiter     *rate.Limiter
	limiterRate float64
)

// SearchListings derives search parameters from text and queries the job API.
// It never fails: a missing key, transport error, non-200 status or malformed body
// is logged and yields an empty result. Concurrent identical searches share one request.
func SearchListings(ctx context.Context, text string, pages int) []engine.Listing {
	if pages <= 0 {
		pages = 1
	}
	query := BuildSearchQuery(ParseQuery(text))
	key := engine.CacheKey("jsearch", query, strconv.Itoa(pages))

	if cached, ok := engine.CacheLoadJSON[[]engine.Listing](ctx, key); ok {
		return cached
	}

	v, _, _ := searchGroup.Do(key, func() (any, error) {
		listings, err := fetchJSearch(ctx, query, pages)
		if err != nil {
			engine.IncrSearchErrors()
			slog.Warn("jsearch: search failed", slog.String("query", query), slog.Any("error", err))
			return []engine.Listing{}, nil
		}
		if len(listings) > 0 {
			engine.CacheStoreJSON(ctx, key, listings)
		}
		return listings, nil
	})
	return v.([]engine.Listing)
}

// fetchJSearch issues one GET /search request.
func fetchJSearch(ctx context.Context, query string, pages int) ([]engine.Listing, error) {
	engine.IncrSearchRequests()

	if engine.Cfg.JSearchAPIKey == "" {
		return nil, fmt.Errorf("JSEARCH_API_KEY is not set")
	}

	u, err := url.Parse(strings.TrimRight(engine.Cfg.JSearchBaseURL, "/") + "/search")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("query", query)
	q.Set("page", "1")
	q.Set("num_pages", strconv.Itoa(pages))
	q.Set("country", "us")
	q.Set("date_posted", "all")
	u.RawQuery = q.Encode()
	apiURL := u.String()

	if err := waitRate(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, engine.Cfg.FetchTimeout)
	defer cancel()

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, engine.Cfg.HTTPClient, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-rapidapi-key", engine.Cfg.JSearchAPIKey)
		req.Header.Set("x-rapidapi-host", engine.Cfg.JSearchAPIHost)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", engine.UserAgentBot)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("job API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	listings, err := parseJSearchResponse(body)
	if err != nil {
		return nil, err
	}

	slog.Debug("jsearch: search complete", slog.String("query", query), slog.Int("count", len(listings)))
	return listings, nil
}

// parseJSearchResponse extracts the data array; a missing array is an empty result.
func parseJSearchResponse(body []byte) ([]engine.Listing, error) {
	var r jsearchResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("jsearch parse error: %w", err)
	}
	if r.Data == nil {
		return []engine.Listing{}, nil
	}
	return r.Data, nil
}

// waitRate blocks on the shared limiter; the limiter is rebuilt when the configured rate changes.
func waitRate(ctx context.Context) error {
	limiterMu.Lock()
	perSec := engine.Cfg.JSearchRatePerSec
	if perSec <= 0 {
		limiterMu.Unlock()
		return nil
	}
	if limiter == nil || limiterRate != perSec {
		limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		limiterRate = perSec
	}
	lim := limiter
	limiterMu.Unlock()
	return lim.Wait(ctx)
}
