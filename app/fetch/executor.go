package fetch

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/tube-comb/app/mirror"
	"github.com/mmcdole/gofeed"
)

// Executor races one request across every mirror of a category and keeps the
// first valid response.
type Executor struct {
	registry   *mirror.Registry
	httpClient *http.Client
	opts       Options
}

func NewExecutor(registry *mirror.Registry, opts Options) *Executor {
	opts.APIPrefix = cmp.Or(opts.APIPrefix, DefaultAPIPrefix)
	opts.UserAgent = cmp.Or(opts.UserAgent, UserAgentChrome)
	opts.ConnectTimeout = cmp.Or(opts.ConnectTimeout, DefaultConnectTimeout)
	opts.ReadTimeout = cmp.Or(opts.ReadTimeout, DefaultReadTimeout)
	opts.Budget = cmp.Or(opts.Budget, DefaultBudget)

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &Executor{
		registry:   registry,
		httpClient: &http.Client{Transport: transport},
		opts:       opts,
	}
}

func (e *Executor) Registry() *mirror.Registry {
	return e.registry
}

func (e *Executor) APIPrefix() string {
	return e.opts.APIPrefix
}

// CloseIdleConnections drops keep-alive connections held by the transport
func (e *Executor) CloseIdleConnections() {
	e.httpClient.CloseIdleConnections()
}

// RaceFetch requests base + API prefix + pathSuffix from every mirror of
// category and returns the first HTTP 200 response whose body is valid JSON.
// pathSuffix must already be URL-encoded.
func (e *Executor) RaceFetch(ctx context.Context, category mirror.Category, pathSuffix string) (*Payload, error) {
	return e.RaceWith(ctx, category, pathSuffix)
}

// RaceWith is RaceFetch with additional non-HTTP sources joining the race
func (e *Executor) RaceWith(ctx context.Context, category mirror.Category, pathSuffix string, extra ...Source) (*Payload, error) {
	bases := e.registry.MirrorsFor(category)

	racers := make([]racer, 0, len(bases)+len(extra))
	for _, base := range bases {
		target := base + e.opts.APIPrefix + pathSuffix
		racers = append(racers, racer{
			mirror: base,
			url:    target,
			run:    e.httpRun(target, decodeJSONPayload(base, target)),
		})
	}
	for _, source := range extra {
		racers = append(racers, sourceRacer(source))
	}

	value, err := e.race(ctx, category, pathSuffix, racers)
	if err != nil {
		return nil, err
	}
	return value.(*Payload), nil
}

// RaceFeed races an RSS/Atom document. path is appended to the mirror base
// without the API prefix.
func (e *Executor) RaceFeed(ctx context.Context, category mirror.Category, path string) (*gofeed.Feed, error) {
	bases := e.registry.MirrorsFor(category)

	racers := make([]racer, 0, len(bases))
	for _, base := range bases {
		target := base + path
		racers = append(racers, racer{
			mirror: base,
			url:    target,
			run:    e.httpRun(target, parseFeed),
		})
	}

	value, err := e.race(ctx, category, path, racers)
	if err != nil {
		return nil, err
	}
	return value.(*gofeed.Feed), nil
}

type racer struct {
	mirror string
	url    string
	run    func(ctx context.Context) (any, int, error)
}

type attemptResult struct {
	index    int
	value    any
	status   int
	err      error
	duration time.Duration
}

func (e *Executor) race(ctx context.Context, category mirror.Category, path string, racers []racer) (any, error) {
	if len(racers) == 0 {
		return nil, &RaceError{Category: category, Path: path, Err: ErrNoProvidersConfigured}
	}

	report := RaceReport{
		ID:        uuid.NewString(),
		Category:  category,
		Path:      path,
		StartedAt: time.Now(),
		Outcomes:  make([]Outcome, len(racers)),
	}
	for i, r := range racers {
		report.Outcomes[i] = Outcome{Mirror: r.mirror, Result: ResultAbandoned}
	}

	budgetCtx, cancelBudget := context.WithTimeout(ctx, e.opts.Budget)
	defer cancelBudget()
	raceCtx, cancelRace := context.WithCancel(budgetCtx)
	defer cancelRace()

	// Buffered to len(racers) so late losers never block after resolution
	results := make(chan attemptResult, len(racers))
	for i, r := range racers {
		attempt := Attempt{URL: r.url, Mirror: r.mirror, Category: category, StartedAt: time.Now()}
		go func() {
			value, status, err := r.run(raceCtx)
			results <- attemptResult{
				index:    i,
				value:    value,
				status:   status,
				err:      err,
				duration: time.Since(attempt.StartedAt),
			}
		}()
	}

	var raceErr error
	for received := 0; received < len(racers) && raceErr == nil; {
		select {
		case res := <-results:
			received++
			outcome := &report.Outcomes[res.index]
			outcome.Status = res.status
			outcome.Duration = res.duration

			if res.err == nil {
				cancelRace()
				outcome.Result = ResultWon
				report.Winner = racers[res.index].mirror
				e.finish(&report)
				return res.value, nil
			}

			outcome.Result = ResultFailed
			outcome.Err = res.err.Error()
			slog.Debug("Mirror attempt lost", "category", category, "mirror", racers[res.index].mirror, "status", res.status, "error", res.err)

		case <-budgetCtx.Done():
			raceErr = budgetCtx.Err()
		}
	}

	switch {
	case ctx.Err() != nil:
		raceErr = ctx.Err()
	case budgetCtx.Err() != nil:
		raceErr = ErrAllProvidersTimedOut
	default:
		raceErr = ErrAllProvidersFailed
	}

	report.Err = raceErr
	e.finish(&report)

	return nil, &RaceError{Category: category, Path: path, Attempts: len(racers), Err: raceErr}
}

func (e *Executor) finish(report *RaceReport) {
	report.Duration = time.Since(report.StartedAt)
	if report.Err != nil {
		slog.Warn("Race failed", "category", report.Category, "path", report.Path, "attempts", len(report.Outcomes), "duration", report.Duration, "error", report.Err)
	} else {
		slog.Debug("Race won", "category", report.Category, "path", report.Path, "mirror", report.Winner, "duration", report.Duration)
	}

	if e.opts.Observer != nil {
		e.opts.Observer.ObserveRace(*report)
	}
}

func (e *Executor) httpRun(target string, accept func(body []byte) (any, error)) func(ctx context.Context) (any, int, error) {
	return func(ctx context.Context) (any, int, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, e.opts.ConnectTimeout+e.opts.ReadTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, target, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("User-Agent", e.opts.UserAgent)
		req.Header.Set("Accept", "application/json, application/atom+xml;q=0.9, */*;q=0.8")

		resp, err := e.httpClient.Do(req)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to fetch: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, resp.StatusCode, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
		}

		value, err := accept(body)
		if err != nil {
			return nil, resp.StatusCode, err
		}
		return value, resp.StatusCode, nil
	}
}

func sourceRacer(source Source) racer {
	name := source.Name()
	return racer{
		mirror: name,
		url:    "source:" + name,
		run: func(ctx context.Context) (any, int, error) {
			data, err := source.Fetch(ctx)
			if err != nil {
				return nil, 0, fmt.Errorf("source %s: %w", name, err)
			}
			if data == nil {
				return nil, 0, fmt.Errorf("source %s returned no data", name)
			}
			return &Payload{Mirror: name, URL: "source:" + name, Data: data}, 0, nil
		},
	}
}

var (
	errInvalidJSON = errors.New("invalid JSON body")
	errNotAFeed    = errors.New("body is not an Atom or RSS feed")
)

func decodeJSONPayload(base, target string) func(body []byte) (any, error) {
	return func(body []byte) (any, error) {
		data, err := DecodeJSON(body)
		if err != nil {
			return nil, err
		}
		return &Payload{Mirror: base, URL: target, Body: body, Data: data}, nil
	}
}

// DecodeJSON parses body into generic values, keeping numbers as json.Number
func DecodeJSON(body []byte) (any, error) {
	if !json.Valid(body) {
		return nil, errInvalidJSON
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var data any
	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	return data, nil
}

// parseFeed accepts Atom and RSS only. gofeed would also take JSON Feed, and
// a JSON error body must not win a feed race.
func parseFeed(body []byte) (any, error) {
	switch gofeed.DetectFeedType(bytes.NewReader(body)) {
	case gofeed.FeedTypeAtom, gofeed.FeedTypeRSS:
	default:
		return nil, errNotAFeed
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed, nil
}
