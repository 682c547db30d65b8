package collect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

// fakeYouTube serves a canned playlistItems page per token and echoes a
// minimal video for every requested id.
type fakeYouTube struct {
	pages       map[string]string // pageToken -> JSON body
	videoStatus int
	videoCalls  atomic.Int32

	mu         sync.Mutex
	batchSizes []int
}

func (f *fakeYouTube) batches() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.batchSizes...)
}

func (f *fakeYouTube) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/playlistItems"):
		body, ok := f.pages[r.URL.Query().Get("pageToken")]
		if !ok {
			http.Error(w, `{"error":"bad token"}`, http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, body)
	case strings.HasSuffix(r.URL.Path, "/videos"):
		f.videoCalls.Add(1)
		if f.videoStatus != 0 {
			http.Error(w, `{"error":"quota"}`, f.videoStatus)
			return
		}
		ids := strings.Split(r.URL.Query().Get("id"), ",")
		f.mu.Lock()
		f.batchSizes = append(f.batchSizes, len(ids))
		f.mu.Unlock()
		var items []string
		for _, id := range ids {
			items = append(items, fmt.Sprintf(
				`{"kind":"youtube#video","etag":"e-%s","id":"%s","snippet":{"title":"Video %s","publishedAt":"2022-01-01T00:00:00Z"},"contentDetails":{"duration":"PT1M"},"statistics":{"viewCount":"10"}}`,
				id, id, id))
		}
		fmt.Fprintf(w, `{"items":[%s]}`, strings.Join(items, ","))
	default:
		http.NotFound(w, r)
	}
}

func playlistPage(next string, ids ...string) string {
	var items []string
	for _, id := range ids {
		items = append(items, fmt.Sprintf(`{"contentDetails":{"videoId":"%s"}}`, id))
	}
	if next == "" {
		return fmt.Sprintf(`{"items":[%s]}`, strings.Join(items, ","))
	}
	return fmt.Sprintf(`{"nextPageToken":"%s","items":[%s]}`, next, strings.Join(items, ","))
}

func newTestClient(t *testing.T, fake *fakeYouTube, batch int) *YouTubeClient {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewYouTubeClient(ClientConfig{
		BaseURL:    srv.URL,
		PlaylistID: "UUtest",
		APIKey:     "key",
		BatchSize:  batch,
		HTTPClient: srv.Client(),
	})
}

func itemIDs(items []Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func TestFetchAllItemsTwoPages(t *testing.T) {
	fake := &fakeYouTube{pages: map[string]string{
		"":      playlistPage("page2", "a", "b", "c"),
		"page2": playlistPage("", "d", "e"),
	}}
	client := newTestClient(t, fake, 50)

	items, err := client.FetchAllItems(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, itemIDs(items))
	require.Equal(t, "e-d", items[3].Etag)
	require.JSONEq(t, `{"viewCount":"10"}`, string(items[3].Statistics))
}

func TestFetchAllItemsSkipsRepeatedIDs(t *testing.T) {
	fake := &fakeYouTube{pages: map[string]string{
		"":      playlistPage("page2", "a", "b"),
		"page2": playlistPage("", "b", "c"),
	}}
	client := newTestClient(t, fake, 50)

	items, err := client.FetchAllItems(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, itemIDs(items))
}

func TestFetchAllItemsSinglePage(t *testing.T) {
	fake := &fakeYouTube{pages: map[string]string{
		"": playlistPage("", "only"),
	}}
	client := newTestClient(t, fake, 50)

	items, err := client.FetchAllItems(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"only"}, itemIDs(items))
}

func TestFetchDetailsBatches(t *testing.T) {
	fake := &fakeYouTube{}
	client := newTestClient(t, fake, 2)

	items, err := client.FetchDetails(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	require.Len(t, items, 5)
	require.Equal(t, []int{2, 2, 1}, fake.batches())
}

func TestFetchAllItemsListingError(t *testing.T) {
	fake := &fakeYouTube{pages: map[string]string{
		"": playlistPage("missing", "a"),
	}}
	client := newTestClient(t, fake, 50)

	_, err := client.FetchAllItems(context.Background())
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, "playlistItems", fetchErr.Endpoint)
	require.Equal(t, http.StatusBadRequest, fetchErr.StatusCode)
}

func TestFetchAllItemsDetailError(t *testing.T) {
	fake := &fakeYouTube{
		pages:       map[string]string{"": playlistPage("", "a")},
		videoStatus: http.StatusForbidden,
	}
	client := newTestClient(t, fake, 50)

	_, err := client.FetchAllItems(context.Background())
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, "videos", fetchErr.Endpoint)
	require.EqualValues(t, 1, fake.videoCalls.Load())
}

func TestNewYouTubeClientClampsSizes(t *testing.T) {
	c := NewYouTubeClient(ClientConfig{PageSize: 500, BatchSize: -1})
	require.Equal(t, MaxBatchSize, c.pageSize)
	require.Equal(t, MaxBatchSize, c.batchSize)
	require.False(t, c.IsConfigured())
}

func TestFetchErrorTruncatesOnRuneBoundary(t *testing.T) {
	// 199 ASCII bytes put the 200-byte cut inside the first multibyte rune.
	body := strings.Repeat("x", 199) + strings.Repeat("é", 50)
	err := &FetchError{Endpoint: "videos", StatusCode: http.StatusForbidden, Body: body}

	msg := err.Error()
	require.True(t, utf8.ValidString(msg), "message is not valid UTF-8: %q", msg)
	require.True(t, strings.HasSuffix(msg, strings.Repeat("x", 199)+"..."), msg)

	short := &FetchError{Endpoint: "videos", StatusCode: http.StatusForbidden, Body: "quotaExceeded"}
	require.Equal(t, "videos returned HTTP 403: quotaExceeded", short.Error())
}
