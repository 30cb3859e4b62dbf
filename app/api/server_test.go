package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/tube-comb/app/database"
	"github.com/lysyi3m/tube-comb/app/fetch"
	"github.com/lysyi3m/tube-comb/app/mirror"
	"github.com/lysyi3m/tube-comb/app/normalize"
	"github.com/lysyi3m/tube-comb/app/proxy"
	"github.com/lysyi3m/tube-comb/app/stream"
	"github.com/lysyi3m/tube-comb/app/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	err       error
	lastQuery string
	lastPage  int
}

func (f *fakeService) Search(ctx context.Context, query string, page int) ([]normalize.Summary, error) {
	f.lastQuery, f.lastPage = query, page
	if f.err != nil {
		return nil, f.err
	}
	return []normalize.Summary{normalize.VideoSummary{Type: normalize.KindVideo, ID: "v1", Title: "Hit"}}, nil
}

func (f *fakeService) Trending(ctx context.Context, region string) ([]normalize.VideoSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []normalize.VideoSummary{{Type: normalize.KindVideo, ID: "t-" + region}}, nil
}

func (f *fakeService) Video(ctx context.Context, videoID string) (*normalize.VideoDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &normalize.VideoDetail{Title: "Video " + videoID, Related: []normalize.Summary{}}, nil
}

func (f *fakeService) Comments(ctx context.Context, videoID, continuation string) (*normalize.CommentPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &normalize.CommentPage{Comments: []normalize.Comment{}, Continuation: continuation + "-next"}, nil
}

func (f *fakeService) Playlist(ctx context.Context, playlistID string) (*normalize.PlaylistDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &normalize.PlaylistDetail{ID: playlistID, Videos: []normalize.VideoSummary{}}, nil
}

func (f *fakeService) Channel(ctx context.Context, channelID string) (*normalize.ChannelDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &normalize.ChannelDetail{ID: channelID, Videos: []normalize.VideoSummary{}, Shorts: []normalize.VideoSummary{}}, nil
}

func (f *fakeService) Suggestions(ctx context.Context, query string) []string {
	if query == "" || f.err != nil {
		return []string{}
	}
	return []string{query + " song"}
}

type fakeStreams struct {
	err error
}

func (f *fakeStreams) Resolve360p(ctx context.Context, videoID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example/" + videoID + "/360", nil
}

func (f *fakeStreams) ResolveHighestQuality(ctx context.Context, videoID string) (*stream.Stream, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stream.Stream{URL: "https://cdn.example/hq.m3u8", Title: "1920x1080 Clip", Resolution: "1920x1080"}, nil
}

type fakeBBS struct {
	err      error
	clientIP string
	body     string
}

func (f *fakeBBS) Posts(ctx context.Context) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`[{"body":"hello"}]`), nil
}

func (f *fakeBBS) Post(ctx context.Context, body []byte, clientIP string) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.clientIP, f.body = clientIP, string(body)
	return json.RawMessage(`{"ok":true}`), nil
}

type fakeThumbnails struct{}

func (fakeThumbnails) Fetch(ctx context.Context, rawURL string) (*proxy.Image, error) {
	switch {
	case rawURL == "":
		return nil, proxy.ErrNoImage
	case strings.Contains(rawURL, "evil"):
		return nil, fmt.Errorf("%w: evil", proxy.ErrHostNotAllowed)
	default:
		return &proxy.Image{ContentType: "image/jpeg", Body: []byte("jpeg")}, nil
	}
}

type fakeStatsRepo struct{}

func (fakeStatsRepo) RecordRace(database.RaceRecord) error   { return nil }
func (fakeStatsRepo) RecordProbe(database.ProbeRecord) error { return nil }
func (fakeStatsRepo) GetRaceCount() (int, error)             { return 42, nil }
func (fakeStatsRepo) PruneBefore(time.Time) (int64, error)   { return 0, nil }
func (fakeStatsRepo) GetMirrorStats() ([]database.MirrorStats, error) {
	return []database.MirrorStats{{
		Mirror: "https://a.example", Wins: 3, Failures: 1, AvgWinTime: 150 * time.Millisecond,
		LastProbe: &database.ProbeRecord{Mirror: "https://a.example", OK: true, Status: 200, CheckedAt: time.Now()},
	}}, nil
}

type fakeScheduler struct {
	probes int
}

func (f *fakeScheduler) Start()                                {}
func (f *fakeScheduler) Stop()                                 {}
func (f *fakeScheduler) EnqueueTask(tasks.TaskInterface) error { return nil }
func (f *fakeScheduler) EnqueueProbes() int {
	f.probes++
	return 2
}

type testEnv struct {
	router    *gin.Engine
	service   *fakeService
	streams   *fakeStreams
	bbs       *fakeBBS
	scheduler *fakeScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	registry, err := mirror.NewRegistry(map[mirror.Category][]string{
		mirror.CategoryVideo: {"https://a.example", "https://b.example"},
	})
	require.NoError(t, err)

	env := &testEnv{
		service:   &fakeService{},
		streams:   &fakeStreams{},
		bbs:       &fakeBBS{},
		scheduler: &fakeScheduler{},
	}
	handler := NewHandler(env.service, env.streams, env.bbs, fakeThumbnails{}, fakeStatsRepo{}, registry, env.scheduler, "yuzu")
	env.router = NewServer(handler, "secret")
	gin.SetMode(gin.TestMode)

	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func gated(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: GateCookie, Value: "True"})
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestRootRedirectsToGate(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/gate", w.Header().Get("Location"))

	w = env.do(gated(httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Tube Comb", decode(t, w)["service"])
}

func TestGate(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/gate", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	form := url.Values{"access_code": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/gate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = env.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Result().Cookies())

	form = url.Values{"access_code": {"yuzu"}}
	req = httptest.NewRequest(http.MethodPost, "/gate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = env.do(req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, GateCookie, cookie.Name)
	assert.Equal(t, "True", cookie.Value)
	assert.Equal(t, 86400, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestGatedEndpointsRequireCookie(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/search?q=x", "/api/trending", "/api/videos/v1", "/api/comments/v1", "/api/channels/c1", "/api/playlists/p1", "/api/streams/v1"} {
		w := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(gated(httptest.NewRequest(http.MethodGet, "/api/search?q=lofi&page=2", nil)))
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "video", results[0].(map[string]any)["type"])
	assert.Equal(t, float64(3), body["next"])
	assert.Equal(t, "lofi", env.service.lastQuery)
	assert.Equal(t, 2, env.service.lastPage)

	w = env.do(gated(httptest.NewRequest(http.MethodGet, "/api/search", nil)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(gated(httptest.NewRequest(http.MethodGet, "/api/search?q=x&page=zero", nil)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListEndpointsDegrade(t *testing.T) {
	env := newTestEnv(t)
	env.service.err = &fetch.RaceError{Category: mirror.CategorySearch, Err: fetch.ErrAllProvidersTimedOut}

	for _, path := range []string{"/api/search?q=lofi", "/api/trending?region=jp"} {
		w := env.do(gated(httptest.NewRequest(http.MethodGet, path, nil)))
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "timed_out", w.Header().Get("X-Degraded"), path)
		assert.JSONEq(t, `{"results":[]}`, w.Body.String(), path)
	}
}

func TestTrendingRegion(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(gated(httptest.NewRequest(http.MethodGet, "/api/trending?region=us", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"t-US"`)
}

func TestDetailEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(gated(httptest.NewRequest(http.MethodGet, "/api/videos/abc", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Video abc", decode(t, w)["title"])

	w = env.do(gated(httptest.NewRequest(http.MethodGet, "/api/comments/abc?continuation=tok", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok-next", decode(t, w)["continuation"])

	w = env.do(gated(httptest.NewRequest(http.MethodGet, "/api/channels/UC1", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode(t, w)["shorts"])

	w = env.do(gated(httptest.NewRequest(http.MethodGet, "/api/playlists/PL1", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PL1", decode(t, w)["id"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		reason string
	}{
		{&fetch.RaceError{Err: fetch.ErrNoProvidersConfigured}, http.StatusServiceUnavailable, "no_providers"},
		{&fetch.RaceError{Err: fetch.ErrAllProvidersTimedOut}, http.StatusGatewayTimeout, "timed_out"},
		{&fetch.RaceError{Err: fetch.ErrAllProvidersFailed}, http.StatusBadGateway, "all_failed"},
		{&fetch.RaceError{Err: context.Canceled}, http.StatusServiceUnavailable, "canceled"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		env := newTestEnv(t)
		env.service.err = tt.err

		w := env.do(gated(httptest.NewRequest(http.MethodGet, "/api/videos/v1", nil)))
		assert.Equal(t, tt.status, w.Code, tt.reason)
		assert.Equal(t, tt.reason, decode(t, w)["error"])
	}
}

func TestStreams(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(gated(httptest.NewRequest(http.MethodGet, "/api/streams/v1", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://cdn.example/v1/360", decode(t, w)["url"])

	w = env.do(gated(httptest.NewRequest(http.MethodGet, "/api/streams/v1?quality=high", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1920x1080", decode(t, w)["resolution"])

	w = env.do(gated(httptest.NewRequest(http.MethodGet, "/api/streams/v1?quality=4k", nil)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamErrors(t *testing.T) {
	env := newTestEnv(t)

	env.streams.err = fmt.Errorf("video v1: %w", stream.ErrFormatNotFound)
	w := env.do(gated(httptest.NewRequest(http.MethodGet, "/api/streams/v1", nil)))
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.streams.err = fmt.Errorf("video v1: %w", stream.ErrNoFormatsAvailable)
	w = env.do(gated(httptest.NewRequest(http.MethodGet, "/api/streams/v1?quality=high", nil)))
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.streams.err = &stream.UpstreamHTTPError{URL: "https://provider.example/v1", StatusCode: 429}
	w = env.do(gated(httptest.NewRequest(http.MethodGet, "/api/streams/v1", nil)))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, float64(429), decode(t, w)["upstream_status"])
}

func TestSuggest(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/suggest?keyword=lofi", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["lofi song"]`, w.Body.String())

	w = env.do(httptest.NewRequest(http.MethodGet, "/suggest", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestBBS(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/bbs/posts", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"body":"hello"}]`, w.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/bbs/post", strings.NewReader(`{"body":"hi"}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "203.0.113.9", env.bbs.clientIP)
	assert.Equal(t, `{"body":"hi"}`, env.bbs.body)

	w = env.do(httptest.NewRequest(http.MethodPost, "/api/bbs/post", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.bbs.err = proxy.ErrRateLimited
	w = env.do(httptest.NewRequest(http.MethodPost, "/api/bbs/post", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestThumbnail(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/thumbnail?url=https://i.ytimg.com/vi/x/hq.jpg", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg", w.Body.String())

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/thumbnail?url=https://i.ytimg.com/vi/x/hq.jpg&format=datauri", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "data:image/jpeg;base64,anBlZw==", decode(t, w)["dataUri"])

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/thumbnail", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/thumbnail?url=https://evil.example/x.jpg", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(42), body["races"])
	assert.Equal(t, float64(2), body["mirrors"].(map[string]any)["video"])
	assert.Equal(t, []any{"video"}, body["categories"])
}

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/admin/mirrors", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/mirrors", nil)
	req.Header.Set("X-API-Key", "wrong")
	w = env.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/mirrors", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(1), body["total"])
	mirrors := body["mirrors"].([]any)
	assert.Equal(t, float64(3), mirrors[0].(map[string]any)["wins"])
	assert.Equal(t, "150ms", mirrors[0].(map[string]any)["avg_win_time"])
	registry := body["registry"].(map[string]any)
	assert.Len(t, registry["video"], 2)
	assert.Empty(t, registry["search"])

	req = httptest.NewRequest(http.MethodPost, "/admin/mirrors/probe", nil)
	req.Header.Set("X-API-Key", "secret")
	w = env.do(req)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["queued"])
	assert.Equal(t, 1, env.scheduler.probes)
}
