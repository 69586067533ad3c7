package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Strategy names reported to the event hook.
const (
	StrategyRevalidate = "stale-while-revalidate"
	StrategyCacheFirst = "cache-first"
)

// Event names reported to the event hook.
const (
	EventHit         = "hit"
	EventMiss        = "miss"
	EventRevalidated = "revalidated"
	EventBypass      = "bypass"
)

// TransportConfig configures a caching transport.
type TransportConfig struct {
	// Generation is the current cache generation name. It is injected from
	// build or deploy configuration, bumped on each deployment.
	Generation string

	// AllowHosts lists third-party asset hosts (fonts, styles, module
	// loaders) served stale-while-revalidate. Every other host gets
	// cache-first.
	AllowHosts []string

	// Manifest lists the essential same-origin resources Install prefetches.
	Manifest []string

	// Base performs the actual network fetches. Nil means
	// http.DefaultTransport.
	Base http.RoundTripper

	// OnEvent, when set, observes cache decisions (strategy, event).
	OnEvent func(strategy, event string)
}

// Transport intercepts resource fetches and applies per-origin caching
// strategy against a generation-scoped store. It implements
// http.RoundTripper so any client can be made offline-capable by swapping
// its transport.
type Transport struct {
	store      Store
	generation string
	allow      map[string]struct{}
	manifest   []string
	base       http.RoundTripper
	onEvent    func(strategy, event string)

	// revalidations tracks in-flight background refreshes so tests and
	// shutdown can wait for them.
	revalidations sync.WaitGroup
}

// NewTransport creates a caching transport over the given store.
func NewTransport(store Store, cfg TransportConfig) *Transport {
	allow := make(map[string]struct{}, len(cfg.AllowHosts))
	for _, host := range cfg.AllowHosts {
		allow[strings.ToLower(host)] = struct{}{}
	}
	base := cfg.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		store:      store,
		generation: cfg.Generation,
		allow:      allow,
		manifest:   cfg.Manifest,
		base:       base,
		onEvent:    cfg.OnEvent,
	}
}

// Generation returns the current generation name.
func (t *Transport) Generation() string {
	return t.generation
}

// RoundTrip dispatches a request by origin: allow-listed hosts get
// stale-while-revalidate, everything else gets cache-first. Non-GET
// requests bypass the cache entirely.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		t.event(StrategyCacheFirst, EventBypass)
		return t.base.RoundTrip(req)
	}

	if _, ok := t.allow[strings.ToLower(req.URL.Hostname())]; ok {
		return t.staleWhileRevalidate(req)
	}
	return t.cacheFirst(req)
}

// staleWhileRevalidate returns the cached response immediately when one
// exists and unconditionally refreshes the entry in the background. On a
// miss the caller waits on the network result, which is cached on success.
func (t *Transport) staleWhileRevalidate(req *http.Request) (*http.Response, error) {
	key := requestKey(req)

	cached, err := t.store.Match(t.generation, key)
	if err == nil {
		t.event(StrategyRevalidate, EventHit)
		t.revalidations.Add(1)
		go t.revalidate(req.Clone(context.Background()), key)
		return cached.httpResponse(req), nil
	}
	if !errors.Is(err, ErrNoMatch) && !errors.Is(err, ErrCorruptEntry) {
		log.Warn("cache lookup failed", "key", key, "error", err)
	}

	t.event(StrategyRevalidate, EventMiss)
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	t.storeResponse(key, resp)
	return resp, nil
}

// cacheFirst returns the cached response when one exists; otherwise the
// network response is returned directly. Misses are deliberately not
// re-cached. A failed network fetch propagates to the requester.
func (t *Transport) cacheFirst(req *http.Request) (*http.Response, error) {
	key := requestKey(req)

	cached, err := t.store.Match(t.generation, key)
	if err == nil {
		t.event(StrategyCacheFirst, EventHit)
		return cached.httpResponse(req), nil
	}
	if !errors.Is(err, ErrNoMatch) && !errors.Is(err, ErrCorruptEntry) {
		log.Warn("cache lookup failed", "key", key, "error", err)
	}

	t.event(StrategyCacheFirst, EventMiss)
	return t.base.RoundTrip(req)
}

// revalidate refreshes one entry in the background. Failures are silently
// dropped; the existing cached entry stays untouched.
func (t *Transport) revalidate(req *http.Request, key string) {
	defer t.revalidations.Done()

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		log.Debug("background revalidation failed", "key", key, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Debug("background revalidation rejected", "key", key, "status", resp.StatusCode)
		return
	}

	if t.storeResponse(key, resp) {
		t.event(StrategyRevalidate, EventRevalidated)
	}
}

// WaitRevalidations blocks until all in-flight background refreshes finish.
func (t *Transport) WaitRevalidations() {
	t.revalidations.Wait()
}

// Install prefetches the essential-asset manifest into the current
// generation. Any fetch failure fails the install; nothing is stored unless
// every manifest resource was fetched successfully.
func (t *Transport) Install(ctx context.Context) error {
	if err := t.store.Open(t.generation); err != nil {
		return fmt.Errorf("%w: %v", ErrInstall, err)
	}

	type fetched struct {
		key  string
		resp *Response
	}
	results := make([]fetched, 0, len(t.manifest))

	for _, rawURL := range t.manifest {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("%w: bad manifest entry %q: %v", ErrInstall, rawURL, err)
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return fmt.Errorf("%w: fetch %q: %v", ErrInstall, rawURL, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return fmt.Errorf("%w: fetch %q: status %d", ErrInstall, rawURL, resp.StatusCode)
		}

		stored, err := captureResponse(resp)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: read %q: %v", ErrInstall, rawURL, err)
		}
		results = append(results, fetched{key: requestKey(req), resp: stored})
	}

	for _, r := range results {
		if err := t.store.Put(t.generation, r.key, r.resp); err != nil {
			return fmt.Errorf("%w: store %q: %v", ErrInstall, r.key, err)
		}
	}

	log.Info("resource cache installed",
		"generation", t.generation, "resources", len(results))
	return nil
}

// Activate deletes every stored generation whose name differs from the
// current one. This is destructive and is the system's only
// garbage-collection mechanism.
func (t *Transport) Activate() error {
	generations, err := t.store.ListGenerations()
	if err != nil {
		return fmt.Errorf("failed to enumerate generations: %w", err)
	}

	var errs []error
	for _, generation := range generations {
		if generation == t.generation {
			continue
		}
		if err := t.store.Delete(generation); err != nil {
			errs = append(errs, err)
			continue
		}
		log.Info("stale cache generation removed", "generation", generation)
	}
	return errors.Join(errs...)
}

// storeResponse caches a successful response body, re-arming resp.Body for
// the caller. Returns false when the response was not cacheable or storage
// failed.
func (t *Transport) storeResponse(key string, resp *http.Response) bool {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}
	stored, err := captureResponse(resp)
	if err != nil {
		log.Warn("failed to capture response", "key", key, "error", err)
		return false
	}
	if err := t.store.Put(t.generation, key, stored); err != nil {
		log.Warn("failed to store response", "key", key, "error", err)
		return false
	}
	return true
}

func (t *Transport) event(strategy, event string) {
	if t.onEvent != nil {
		t.onEvent(strategy, event)
	}
}

// requestKey derives the store key for a request. Fragments never reach the
// server so they are excluded by url.String itself.
func requestKey(req *http.Request) string {
	return req.Method + " " + req.URL.String()
}
