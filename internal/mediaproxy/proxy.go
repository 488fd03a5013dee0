// Package mediaproxy streams media from the first upstream candidate that
// answers 200 or 206.
package mediaproxy

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/sermon-catalog-go/internal/source"
)

// Outcomes reported in metrics and results
const (
	OutcomeSuccess   = "success"
	OutcomeFallback  = "fallback"
	OutcomeExhausted = "exhausted"
	OutcomeNotFound  = "not_found"
	OutcomeCanceled  = "canceled"
)

// forwarded from the client to the upstream
var requestHeaders = []string{"Range", "If-None-Match", "If-Modified-Since"}

// forwarded from the upstream to the client
var responseHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Last-Modified",
	"ETag",
	"Cache-Control",
}

// Options configures the upstream HTTP client
type Options struct {
	DialTimeout   time.Duration
	HeaderTimeout time.Duration
}

// Proxy fetches media from upstream candidates
type Proxy struct {
	client *http.Client
}

// New creates a proxy whose client bounds connection setup and time to
// first response header. The body copy has no deadline so long streams
// survive; it ends when the client goes away.
func New(opts Options) *Proxy {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.HeaderTimeout <= 0 {
		opts.HeaderTimeout = 15 * time.Second
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: opts.DialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   opts.DialTimeout,
		ResponseHeaderTimeout: opts.HeaderTimeout,
		ExpectContinueTimeout: time.Second,
		// pass bytes through untouched
		DisableCompression: true,
	}
	return NewWithClient(&http.Client{Transport: transport})
}

// NewWithClient creates a proxy using client
func NewWithClient(client *http.Client) *Proxy {
	return &Proxy{client: client}
}

// Request describes one media request
type Request struct {
	Kind                string
	Candidates          []string
	FallbackContentType string
	FallbackFilename    string
	Download            bool
}

// Result reports how a request was answered
type Result struct {
	Status    int
	Outcome   string
	Candidate string
	Attempts  int
	Bytes     int64
}

// Serve answers r from the first candidate of req that succeeds. Candidates
// are tried in order; a failed candidate is never visible to the client.
// A 304 ends the fallback: the client's validators matched that candidate.
func (p *Proxy) Serve(w http.ResponseWriter, r *http.Request, req Request) Result {
	candidates := make([]string, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		if strings.TrimSpace(c) != "" {
			candidates = append(candidates, c)
		}
	}

	if len(candidates) == 0 {
		proxyRequests.WithLabelValues(req.Kind, OutcomeNotFound).Inc()
		writeError(w, http.StatusNotFound, "media not available")
		return Result{Status: http.StatusNotFound, Outcome: OutcomeNotFound}
	}

	lastStatus := 0
	for i, candidate := range candidates {
		if r.Context().Err() != nil {
			proxyRequests.WithLabelValues(req.Kind, OutcomeCanceled).Inc()
			return Result{Outcome: OutcomeCanceled, Attempts: i}
		}

		resp, err := p.fetch(r, candidate)
		if err != nil {
			upstreamFailures.WithLabelValues(req.Kind, "transport").Inc()
			log.Debug().Err(err).Str("kind", req.Kind).Int("candidate", i).Msg("Upstream candidate failed")
			continue
		}

		if !servable(resp.StatusCode) {
			lastStatus = resp.StatusCode
			upstreamFailures.WithLabelValues(req.Kind, strconv.Itoa(resp.StatusCode)).Inc()
			log.Debug().Int("status", resp.StatusCode).Str("kind", req.Kind).Int("candidate", i).Msg("Upstream candidate rejected")
			discard(resp)
			continue
		}

		outcome := OutcomeSuccess
		if i > 0 {
			outcome = OutcomeFallback
		}
		n := p.stream(w, r, resp, req)
		proxyRequests.WithLabelValues(req.Kind, outcome).Inc()
		bytesStreamed.WithLabelValues(req.Kind).Add(float64(n))
		return Result{Status: resp.StatusCode, Outcome: outcome, Candidate: candidate, Attempts: i + 1, Bytes: n}
	}

	if r.Context().Err() != nil {
		proxyRequests.WithLabelValues(req.Kind, OutcomeCanceled).Inc()
		return Result{Outcome: OutcomeCanceled, Attempts: len(candidates)}
	}

	status := exhaustedStatus(lastStatus)
	proxyRequests.WithLabelValues(req.Kind, OutcomeExhausted).Inc()
	log.Warn().Str("kind", req.Kind).Int("candidates", len(candidates)).Int("status", status).Msg("All media candidates failed")

	writeError(w, status, "media temporarily unavailable")
	return Result{Status: status, Outcome: OutcomeExhausted, Attempts: len(candidates)}
}

// fetch issues the upstream GET bound to the inbound request context
func (p *Proxy) fetch(r *http.Request, target string) (*http.Response, error) {
	upReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	for _, h := range requestHeaders {
		if v := r.Header.Get(h); v != "" {
			upReq.Header.Set(h, v)
		}
	}
	return p.client.Do(upReq)
}

func (p *Proxy) stream(w http.ResponseWriter, r *http.Request, resp *http.Response, req Request) int64 {
	defer resp.Body.Close()

	header := w.Header()
	for _, h := range responseHeaders {
		if v := resp.Header.Get(h); v != "" {
			header.Set(h, v)
		}
	}
	notModified := resp.StatusCode == http.StatusNotModified
	if !notModified && header.Get("Content-Type") == "" && req.FallbackContentType != "" {
		header.Set("Content-Type", req.FallbackContentType)
	}
	if req.Download && !notModified {
		name := source.Basename(resp.Request.URL.String())
		if name == "" {
			name = req.FallbackFilename
		}
		header.Set("Content-Disposition", attachment(name))
	}

	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead || notModified {
		return 0
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil && !errors.Is(err, r.Context().Err()) {
		log.Debug().Err(err).Str("kind", req.Kind).Int64("bytes", n).Msg("Media stream interrupted")
	}
	return n
}

func attachment(name string) string {
	if name == "" {
		return "attachment"
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func servable(status int) bool {
	return status == http.StatusOK || status == http.StatusPartialContent || status == http.StatusNotModified
}

// exhaustedStatus maps the last upstream status onto the client response
func exhaustedStatus(last int) int {
	if last >= 400 {
		return last
	}
	return http.StatusBadGateway
}

// discard drains a little of a rejected body so the connection can be reused
func discard(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
