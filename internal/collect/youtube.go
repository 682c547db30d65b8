package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://youtube.googleapis.com/youtube/v3"

	// MaxBatchSize is the largest id list the videos endpoint accepts per call.
	MaxBatchSize = 50
)

// Item is one video as returned by the videos endpoint. The payload fragments
// stay as raw JSON so they can be stored verbatim.
type Item struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	Etag           string          `json:"etag"`
	Snippet        json.RawMessage `json:"snippet"`
	ContentDetails json.RawMessage `json:"contentDetails"`
	Statistics     json.RawMessage `json:"statistics"`
}

// FetchError is returned when the platform answers with a non-2xx status.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

// maxErrorBody bounds how many bytes of a response body an error message quotes.
const maxErrorBody = 200

func (e *FetchError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		n := maxErrorBody
		for n > 0 && !utf8.RuneStart(body[n]) {
			n--
		}
		body = body[:n] + "..."
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Endpoint, e.StatusCode, body)
}

// ClientConfig configures a YouTubeClient.
type ClientConfig struct {
	BaseURL    string
	PlaylistID string
	APIKey     string
	PageSize   int
	BatchSize  int

	// Delay is the minimum spacing between listing page fetches.
	Delay time.Duration

	HTTPClient *http.Client
}

// YouTubeClient pages through an uploads playlist and looks up video details.
type YouTubeClient struct {
	baseURL    string
	playlistID string
	apiKey     string
	pageSize   int
	batchSize  int
	client     *http.Client
	limiter    *rate.Limiter
}

// NewYouTubeClient creates a new client.
func NewYouTubeClient(cfg ClientConfig) *YouTubeClient {
	c := &YouTubeClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		playlistID: cfg.PlaylistID,
		apiKey:     cfg.APIKey,
		pageSize:   cfg.PageSize,
		batchSize:  cfg.BatchSize,
		client:     cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.pageSize <= 0 || c.pageSize > MaxBatchSize {
		c.pageSize = MaxBatchSize
	}
	if c.batchSize <= 0 || c.batchSize > MaxBatchSize {
		c.batchSize = MaxBatchSize
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Delay > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return c
}

// IsConfigured returns whether the API key and playlist are available.
func (c *YouTubeClient) IsConfigured() bool {
	return c.apiKey != "" && c.playlistID != ""
}

// FetchAllItems walks every page of the uploads playlist and returns the
// detailed items in page order. A video id is returned at most once.
func (c *YouTubeClient) FetchAllItems(ctx context.Context) ([]Item, error) {
	var all []Item
	seen := make(map[string]struct{})
	pageToken := ""

	for page := 1; ; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}

		ids, next, err := c.listPage(ctx, pageToken)
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", page, err)
		}

		fresh := make([]string, 0, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			fresh = append(fresh, id)
		}

		items, err := c.FetchDetails(ctx, fresh)
		if err != nil {
			return nil, fmt.Errorf("fetching details for page %d: %w", page, err)
		}
		all = append(all, items...)

		log.Printf("Got %d videos from page %d (%d total)", len(items), page, len(all))
		if oldest := oldestPublished(items); oldest != "" {
			log.Printf("Oldest video on page %d published %s", page, oldest)
		}

		if next == "" {
			break
		}
		pageToken = next
	}

	return all, nil
}

// FetchDetails looks up snippet, contentDetails and statistics for the given
// ids, batchSize ids per request.
func (c *YouTubeClient) FetchDetails(ctx context.Context, ids []string) ([]Item, error) {
	var items []Item
	for start := 0; start < len(ids); start += c.batchSize {
		end := start + c.batchSize
		if end > len(ids) {
			end = len(ids)
		}

		params := url.Values{
			"part": {"snippet,contentDetails,statistics"},
			"id":   {strings.Join(ids[start:end], ",")},
			"key":  {c.apiKey},
		}

		var resp struct {
			Items []Item `json:"items"`
		}
		if err := c.get(ctx, "videos", params, &resp); err != nil {
			return nil, err
		}
		items = append(items, resp.Items...)
	}
	return items, nil
}

func (c *YouTubeClient) listPage(ctx context.Context, pageToken string) ([]string, string, error) {
	params := url.Values{
		"part":       {"id,snippet,contentDetails,status"},
		"playlistId": {c.playlistID},
		"key":        {c.apiKey},
		"maxResults": {strconv.Itoa(c.pageSize)},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var resp struct {
		NextPageToken string `json:"nextPageToken"`
		Items         []struct {
			ContentDetails struct {
				VideoID string `json:"videoId"`
			} `json:"contentDetails"`
		} `json:"items"`
	}
	if err := c.get(ctx, "playlistItems", params, &resp); err != nil {
		return nil, "", err
	}

	ids := make([]string, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ContentDetails.VideoID != "" {
			ids = append(ids, it.ContentDetails.VideoID)
		}
	}
	return ids, resp.NextPageToken, nil
}

func (c *YouTubeClient) get(ctx context.Context, endpoint string, params url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &FetchError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}

func oldestPublished(items []Item) string {
	if len(items) == 0 {
		return ""
	}
	var snippet struct {
		PublishedAt string `json:"publishedAt"`
	}
	if err := json.Unmarshal(items[len(items)-1].Snippet, &snippet); err != nil {
		return ""
	}
	return snippet.PublishedAt
}
