// Package ipfs resolves proposal payload URIs: inline base64 data URIs and
// ipfs:// content fetched through an HTTP gateway.
package ipfs

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stake-plus/geo-sink/src/cache"
	"github.com/stake-plus/geo-sink/src/logging"
	"github.com/stake-plus/geo-sink/src/metrics"
	"github.com/stake-plus/geo-sink/src/retry"
	"github.com/stake-plus/geo-sink/src/webclient"
	"golang.org/x/sync/errgroup"
)

const (
	dataURIPrefix = "data:application/json;base64,"
	ipfsPrefix    = "ipfs://"

	maxPayloadBytes = 32 << 20
)

// Header is the part of every payload the sink needs before choosing how to
// decode the rest.
type Header struct {
	Type       string  `json:"type"`
	Name       *string `json:"name,omitempty"`
	Version    string  `json:"version"`
	ProposalID string  `json:"proposalId"`
}

// UriPayload is a resolved document.
type UriPayload struct {
	URI    string
	Raw    json.RawMessage
	Header Header
}

type Options struct {
	Gateway     string
	Timeout     time.Duration
	BaseDelay   time.Duration
	Concurrency int
	Client      *http.Client
	Cache       cache.Content
}

type Resolver struct {
	gateway     string
	timeout     time.Duration
	baseDelay   time.Duration
	concurrency int
	client      *http.Client
	cache       cache.Content
	breaker     *gobreaker.CircuitBreaker[gatewayResponse]
	log         zerolog.Logger
}

type gatewayResponse struct {
	status int
	body   []byte
}

func NewResolver(opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 100 * time.Millisecond
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 20
	}
	if opts.Client == nil {
		opts.Client = webclient.NewDefault(opts.Timeout)
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	r := &Resolver{
		gateway:     opts.Gateway,
		timeout:     opts.Timeout,
		baseDelay:   opts.BaseDelay,
		concurrency: opts.Concurrency,
		client:      opts.Client,
		cache:       opts.Cache,
		log:         logging.Component("ipfs"),
	}
	r.breaker = gobreaker.NewCircuitBreaker[gatewayResponse](gobreaker.Settings{
		Name:        "ipfs-gateway",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= 10 && float64(c.TotalFailures)/float64(c.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("gateway breaker state change")
			metrics.GatewayBreakerState.Set(float64(to))
		},
	})
	return r
}

// Fetch resolves uri. It returns nil, nil for URI schemes it does not handle
// and for a data URI without a payload.
func (r *Resolver) Fetch(ctx context.Context, uri string) (*UriPayload, error) {
	switch {
	case strings.HasPrefix(uri, dataURIPrefix):
		p, err := r.fetchInline(uri)
		observe("data", err)
		return p, err
	case strings.HasPrefix(uri, ipfsPrefix):
		p, err := r.fetchIPFS(ctx, uri)
		observe("ipfs", err)
		return p, err
	default:
		metrics.ContentFetches.WithLabelValues("other", "unsupported").Inc()
		return nil, nil
	}
}

func observe(scheme string, err error) {
	result := "ok"
	var (
		encErr     *UnableToParseEncodingError
		fetchErr   *FetchFailedError
		jsonErr    *UnableToParseJsonError
		timeoutErr *TimeoutError
	)
	switch {
	case err == nil:
	case errors.As(err, &encErr):
		result = "encoding"
	case errors.As(err, &fetchErr):
		result = "fetch"
	case errors.As(err, &jsonErr):
		result = "json"
	case errors.As(err, &timeoutErr):
		result = "timeout"
	default:
		result = "error"
	}
	metrics.ContentFetches.WithLabelValues(scheme, result).Inc()
}

func (r *Resolver) fetchInline(uri string) (*UriPayload, error) {
	encoded := uri[len(dataURIPrefix):]
	if encoded == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		var rawErr error
		if raw, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "=")); rawErr != nil {
			return nil, &UnableToParseEncodingError{URI: uri, Err: err}
		}
	}
	return decode(uri, raw)
}

func (r *Resolver) fetchIPFS(ctx context.Context, uri string) (*UriPayload, error) {
	path := uri[len(ipfsPrefix):]
	cid, _, _ := strings.Cut(path, "/")
	if err := validateCID(cid); err != nil {
		return nil, &UnableToParseEncodingError{URI: uri, Err: err}
	}

	if cached, ok, err := r.cache.Get(ctx, uri); err != nil {
		r.log.Warn().Err(err).Str("uri", uri).Msg("content cache read failed")
	} else if ok {
		return decode(uri, cached)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	url := r.gateway + path
	policy := retry.Policy{
		BaseDelay:  r.baseDelay,
		MaxDelay:   10 * time.Second,
		MaxElapsed: r.timeout,
		Notify: func(attempt int, err error, wait time.Duration) {
			r.log.Debug().Err(err).Str("uri", uri).Int("attempt", attempt).Dur("wait", wait).Msg("gateway fetch failed, retrying")
		},
	}

	start := time.Now()
	body, err := webclient.DoWithRetry(fetchCtx, policy, url, r.attempt(url))
	metrics.ContentFetchSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{URI: uri, After: time.Since(start).Round(time.Millisecond)}
		}
		if logging.IsRateLimit(err) {
			r.log.Warn().Str("uri", uri).Msg("gateway rate limited")
		}
		return nil, &FetchFailedError{URI: uri, Err: err}
	}

	payload, err := decode(uri, body)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, uri, body); err != nil {
		r.log.Warn().Err(err).Str("uri", uri).Msg("content cache write failed")
	}
	return payload, nil
}

// attempt issues one gateway request through the breaker. Server errors
// count against the breaker and are handed back as statuses for the retry
// loop to classify.
func (r *Resolver) attempt(url string) webclient.AttemptFunc {
	return func(ctx context.Context) (int, []byte, error) {
		res, err := r.breaker.Execute(func() (gatewayResponse, error) {
			return r.get(ctx, url)
		})
		var se *webclient.StatusError
		if errors.As(err, &se) {
			return se.Status, nil, nil
		}
		if err != nil {
			return 0, nil, err
		}
		return res.status, res.body, nil
	}
}

func (r *Resolver) get(ctx context.Context, url string) (gatewayResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gatewayResponse{}, retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return gatewayResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return gatewayResponse{}, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return gatewayResponse{}, &webclient.StatusError{Status: resp.StatusCode, URL: url}
	}
	return gatewayResponse{status: resp.StatusCode, body: body}, nil
}

func decode(uri string, raw []byte) (*UriPayload, error) {
	if !json.Valid(raw) {
		return nil, &UnableToParseJsonError{URI: uri, Err: errors.New("payload is not valid json")}
	}
	var h Header
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, &UnableToParseJsonError{URI: uri, Err: err}
	}
	return &UriPayload{URI: uri, Raw: raw, Header: h}, nil
}

// Result is one outcome of FetchAll.
type Result struct {
	URI     string
	Payload *UriPayload
	Err     error
}

// FetchAll resolves uris with bounded concurrency. Results keep the input
// order; a failure of one URI never affects the others.
func (r *Resolver) FetchAll(ctx context.Context, uris []string) []Result {
	out := make([]Result, len(uris))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, uri := range uris {
		g.Go(func() error {
			p, err := r.Fetch(gctx, uri)
			out[i] = Result{URI: uri, Payload: p, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
