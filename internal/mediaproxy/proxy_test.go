package mediaproxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// upstream serves body at /good, 404 at /missing and counts every call
type upstream struct {
	*httptest.Server
	calls    atomic.Int64
	lastHdrs atomic.Value
}

func newUpstream(t *testing.T, body string) *upstream {
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		u.lastHdrs.Store(r.Header.Clone())
		switch {
		case strings.HasSuffix(r.URL.Path, "/missing"):
			http.Error(w, "upstream secret detail", http.StatusNotFound)
		case strings.HasSuffix(r.URL.Path, "/broken"):
			http.Error(w, "boom", http.StatusInternalServerError)
		case strings.HasSuffix(r.URL.Path, "/notmodified"):
			w.Header().Set("ETag", `"v1"`)
			w.Header().Set("Last-Modified", "Mon, 01 Jan 2024 00:00:00 GMT")
			w.WriteHeader(http.StatusNotModified)
		case strings.HasSuffix(r.URL.Path, "/untyped"):
			w.Header()["Content-Type"] = nil
			w.Write([]byte(body))
		default:
			w.Header().Set("ETag", `"v1"`)
			w.Header().Set("Cache-Control", "public, max-age=60")
			w.Header().Set("X-Internal", "hidden")
			http.ServeContent(w, r, "Sermon.mp4", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), strings.NewReader(body))
		}
	}))
	t.Cleanup(u.Close)
	return u
}

func serve(p *Proxy, req Request, mutate func(r *http.Request)) (*httptest.ResponseRecorder, Result) {
	r := httptest.NewRequest(http.MethodGet, "/api/videos/42/video", nil)
	if mutate != nil {
		mutate(r)
	}
	w := httptest.NewRecorder()
	res := p.Serve(w, r, req)
	return w, res
}

func TestServe_FirstCandidate(t *testing.T) {
	up := newUpstream(t, "video-bytes")
	p := New(Options{})

	w, res := serve(p, Request{Kind: "video", Candidates: []string{up.URL + "/Smith/Sermon.mp4"}}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video-bytes", w.Body.String())
	assert.Equal(t, `"v1"`, w.Header().Get("ETag"))
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
	assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
	assert.Empty(t, w.Header().Get("X-Internal"), "non allow-listed header leaked")
	assert.Equal(t, OutcomeSuccess, res.Outcome)
}

func TestServe_FallbackIsInvisible(t *testing.T) {
	up := newUpstream(t, "video-bytes")
	p := New(Options{})

	direct, _ := serve(p, Request{Kind: "video", Candidates: []string{up.URL + "/good"}}, nil)
	viaFallback, res := serve(p, Request{Kind: "video", Candidates: []string{up.URL + "/missing", up.URL + "/good"}}, nil)

	assert.Equal(t, direct.Code, viaFallback.Code)
	assert.Equal(t, direct.Body.String(), viaFallback.Body.String())
	for _, h := range responseHeaders {
		assert.Equal(t, direct.Header().Get(h), viaFallback.Header().Get(h), h)
	}
	assert.Equal(t, OutcomeFallback, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
}

func TestServe_TransportFailureFallsBack(t *testing.T) {
	up := newUpstream(t, "audio-bytes")
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	w, res := serve(New(Options{DialTimeout: time.Second}), Request{Kind: "audio", Candidates: []string{deadURL + "/a.mp3", up.URL + "/a.mp3"}}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio-bytes", w.Body.String())
	assert.Equal(t, OutcomeFallback, res.Outcome)
}

func TestServe_EmptyCandidatesNoNetwork(t *testing.T) {
	up := newUpstream(t, "x")
	p := New(Options{})

	w, res := serve(p, Request{Kind: "video", Candidates: []string{"", "  "}}, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"media not available"}`, w.Body.String())
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Equal(t, int64(0), up.calls.Load())
}

func TestServe_ExhaustedUsesLastStatus(t *testing.T) {
	up := newUpstream(t, "x")
	p := New(Options{})

	w, _ := serve(p, Request{Kind: "video", Candidates: []string{up.URL + "/broken", up.URL + "/missing"}}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	w, _ = serve(p, Request{Kind: "video", Candidates: []string{up.URL + "/missing", up.URL + "/broken"}}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServe_ExhaustedWithoutStatusIs502(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	w, res := serve(New(Options{}), Request{Kind: "video", Candidates: []string{deadURL + "/a"}}, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, OutcomeExhausted, res.Outcome)
}

func TestServe_NotModifiedEndsFallback(t *testing.T) {
	up := newUpstream(t, "x")
	w, res := serve(New(Options{}), Request{
		Kind:                "audio",
		Candidates:          []string{up.URL + "/notmodified", up.URL + "/missing"},
		FallbackContentType: "audio/mpeg",
		Download:            true,
	}, func(r *http.Request) {
		r.Header.Set("If-None-Match", `"v1"`)
	})

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, `"v1"`, w.Header().Get("ETag"))
	assert.Equal(t, "Mon, 01 Jan 2024 00:00:00 GMT", w.Header().Get("Last-Modified"))
	assert.Empty(t, w.Header().Get("Content-Type"))
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int64(1), up.calls.Load())
}

func TestServe_ForwardsAllowListedRequestHeaders(t *testing.T) {
	up := newUpstream(t, "0123456789")
	w, _ := serve(New(Options{}), Request{Kind: "video", Candidates: []string{up.URL + "/good"}}, func(r *http.Request) {
		r.Header.Set("Range", "bytes=2-5")
		r.Header.Set("Cookie", "session=abc")
		r.Header.Set("Authorization", "Bearer x")
	})

	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "2345", w.Body.String())
	assert.Equal(t, "bytes 2-5/10", w.Header().Get("Content-Range"))

	hdrs := up.lastHdrs.Load().(http.Header)
	assert.Equal(t, "bytes=2-5", hdrs.Get("Range"))
	assert.Empty(t, hdrs.Get("Cookie"))
	assert.Empty(t, hdrs.Get("Authorization"))
}

func TestServe_FallbackContentType(t *testing.T) {
	up := newUpstream(t, "WEBVTT")
	w, _ := serve(New(Options{}), Request{
		Kind:                "subtitles",
		Candidates:          []string{up.URL + "/untyped"},
		FallbackContentType: "text/vtt; charset=utf-8",
	}, nil)
	assert.Equal(t, "text/vtt; charset=utf-8", w.Header().Get("Content-Type"))
}

func TestServe_DownloadDisposition(t *testing.T) {
	up := newUpstream(t, "x")
	p := New(Options{})

	w, _ := serve(p, Request{Kind: "video", Candidates: []string{up.URL + "/Smith/2024-01-07%20Grace.mp4"}, Download: true, FallbackFilename: "video-42.mp4"}, nil)
	assert.Equal(t, `attachment; filename="2024-01-07 Grace.mp4"`, w.Header().Get("Content-Disposition"))

	w, _ = serve(p, Request{Kind: "video", Candidates: []string{up.URL + "/good"}}, nil)
	assert.Empty(t, w.Header().Get("Content-Disposition"), "no disposition without download mode")
}

func TestServe_ClientDisconnectStopsUpstream(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := make(chan struct{})
	upstreamDone := make(chan struct{})
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(upstreamDone)
		w.Header().Set("Content-Type", "video/mp4")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))

	p := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest(http.MethodGet, "/api/videos/1/video", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	served := make(chan Result, 1)
	go func() { served <- p.Serve(w, r, Request{Kind: "video", Candidates: []string{up.URL + "/stream"}}) }()

	<-started
	cancel()

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after client disconnect")
	}
	select {
	case <-upstreamDone:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream request was not canceled")
	}

	p.client.CloseIdleConnections()
	up.Close()
}

func TestServe_HeadHasNoBody(t *testing.T) {
	up := newUpstream(t, "video-bytes")
	r := httptest.NewRequest(http.MethodHead, "/api/videos/42/video", nil)
	w := httptest.NewRecorder()
	New(Options{}).Serve(w, r, Request{Kind: "video", Candidates: []string{up.URL + "/good"}})

	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.Empty(t, body)
}

func TestExhaustedStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, exhaustedStatus(0))
	assert.Equal(t, http.StatusBadGateway, exhaustedStatus(http.StatusFound))
	assert.Equal(t, http.StatusForbidden, exhaustedStatus(http.StatusForbidden))
}
