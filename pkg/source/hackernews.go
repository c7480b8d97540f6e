package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elonfeng/hnpipe/internal/metrics"
	"github.com/elonfeng/hnpipe/pkg/table"
)

const (
	// DefaultBaseURL is the public Hacker News Firebase API.
	DefaultBaseURL = "https://hacker-news.firebaseio.com/v0"
	// DefaultTimeout bounds each request to the API.
	DefaultTimeout = 5 * time.Second
)

// HackerNews fetches live items from the Hacker News Firebase API.
type HackerNews struct {
	client  *http.Client
	baseURL string
}

// NewHackerNews creates a live client. Empty baseURL and zero timeout fall
// back to the public API and a 5s per-request timeout.
func NewHackerNews(baseURL string, timeout time.Duration) *HackerNews {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HackerNews{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Fields returns the item columns, see Fields.
func (h *HackerNews) Fields() []table.Column { return Fields() }

// FetchItemByID returns Unknown for ids the API has no item for.
func (h *HackerNews) FetchItemByID(ctx context.Context, id int64) (item Item, err error) {
	defer func(start time.Time) { metrics.ObserveSourceRequest("item", start, err) }(time.Now())

	url := fmt.Sprintf("%s/item/%d.json", h.baseURL, id)
	var raw *Item
	if err := h.getJSON(ctx, url, &raw); err != nil {
		return Unknown, fmt.Errorf("fetch hn item %d: %w", id, err)
	}

	// The API answers unknown ids with a JSON null.
	if raw == nil {
		return Unknown, nil
	}
	return *raw, nil
}

// FetchMaxItemID returns the newest item id.
func (h *HackerNews) FetchMaxItemID(ctx context.Context) (maxID int64, err error) {
	defer func(start time.Time) { metrics.ObserveSourceRequest("maxitem", start, err) }(time.Now())

	if err := h.getJSON(ctx, h.baseURL+"/maxitem.json", &maxID); err != nil {
		return 0, fmt.Errorf("fetch hn max item: %w", err)
	}
	return maxID, nil
}

func (h *HackerNews) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "hnpipe/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
