package daily

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/daybreakapp/daybreak/internal/store"
)

// stubGenerator counts invocations and returns a canned reflection or error.
type stubGenerator struct {
	calls   atomic.Int64
	err     error
	block   chan struct{} // optional: hold generation open
	content Reflection
}

func (g *stubGenerator) GenerateReflection(ctx context.Context, topic string) (*Reflection, error) {
	g.calls.Add(1)
	if g.block != nil {
		<-g.block
	}
	if g.err != nil {
		return nil, g.err
	}
	r := g.content
	if topic != "" {
		r.Title = "On " + topic
	}
	return &r, nil
}

func testReflection() Reflection {
	return Reflection{
		Title:      "X",
		Reference:  "Proverbs 3:5",
		Body:       "Trust the process.",
		ActionItem: "Write one sentence.",
		Closing:    "Go gently.",
	}
}

func fixedClock(day string) func() time.Time {
	t, err := time.ParseInLocation("2006-01-02", day, time.Local)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func TestCache_DailyGeneratesOncePerDay(t *testing.T) {
	gen := &stubGenerator{content: testReflection()}
	cache := NewCache(store.NewMemoryStore(), gen, CacheConfig{Now: fixedClock("2024-03-01")})

	first := cache.GetOrGenerate(context.Background(), KeyDaily)
	if first.Title != "X" {
		t.Fatalf("unexpected content: %+v", first)
	}

	// N repeat calls within the same day: zero additional generator calls,
	// identical content.
	for i := 0; i < 5; i++ {
		got := cache.GetOrGenerate(context.Background(), KeyDaily)
		if !reflect.DeepEqual(got, first) {
			t.Errorf("call %d returned different content: %+v", i, got)
		}
	}
	if got := gen.calls.Load(); got != 1 {
		t.Errorf("generator calls: got %d, want 1", got)
	}
}

func TestCache_DayBoundaryInvalidates(t *testing.T) {
	gen := &stubGenerator{content: testReflection()}
	kv := store.NewMemoryStore()

	day1 := NewCache(kv, gen, CacheConfig{Now: fixedClock("2024-03-01")})
	day1.GetOrGenerate(context.Background(), KeyDaily)

	// Same persisted store, next day: entry for 2024-03-01 must not be
	// served, so the generator runs again.
	day2 := NewCache(kv, gen, CacheConfig{Now: fixedClock("2024-03-02")})
	day2.GetOrGenerate(context.Background(), KeyDaily)

	if got := gen.calls.Load(); got != 2 {
		t.Errorf("generator calls across day boundary: got %d, want 2", got)
	}
}

func TestCache_TopicAlwaysGenerates(t *testing.T) {
	gen := &stubGenerator{content: testReflection()}
	cache := NewCache(store.NewMemoryStore(), gen, CacheConfig{Now: fixedClock("2024-03-01")})

	for i := 0; i < 3; i++ {
		got := cache.GetOrGenerate(context.Background(), "patience")
		if got.Title != "On patience" {
			t.Errorf("unexpected topic content: %+v", got)
		}
	}
	if got := gen.calls.Load(); got != 3 {
		t.Errorf("generator calls for repeated topic: got %d, want 3", got)
	}
}

func TestCache_FallbackOnGenerationFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("remote generation failed")}
	kv := store.NewMemoryStore()
	cache := NewCache(kv, gen, CacheConfig{Now: fixedClock("2024-03-01")})

	got := cache.GetOrGenerate(context.Background(), KeyDaily)
	if !reflect.DeepEqual(got, Fallback()) {
		t.Errorf("expected fallback payload, got %+v", got)
	}

	// The fallback is never persisted; the next call tries again.
	if kv.Len() != 0 {
		t.Error("fallback payload must not be persisted")
	}
	cache.GetOrGenerate(context.Background(), KeyDaily)
	if got := gen.calls.Load(); got != 2 {
		t.Errorf("generator calls after failure: got %d, want 2", got)
	}

	// Topic failures degrade the same way.
	topic := cache.GetOrGenerate(context.Background(), "hope")
	if !reflect.DeepEqual(topic, Fallback()) {
		t.Errorf("expected fallback for failed topic, got %+v", topic)
	}
}

func TestCache_CorruptedEntryRegenerates(t *testing.T) {
	gen := &stubGenerator{content: testReflection()}
	kv := store.NewMemoryStore()
	cache := NewCache(kv, gen, CacheConfig{Now: fixedClock("2024-03-01")})

	// Seed a corrupted persisted entry under today's key.
	if err := kv.Set("reflection-2024-03-01", "{not json"); err != nil {
		t.Fatal(err)
	}

	got := cache.GetOrGenerate(context.Background(), KeyDaily)
	if got.Title != "X" {
		t.Fatalf("expected regenerated content, got %+v", got)
	}
	if gen.calls.Load() != 1 {
		t.Errorf("generator calls: got %d, want 1", gen.calls.Load())
	}

	// The corrupted entry was overwritten with the fresh one.
	raw, err := kv.Get("reflection-2024-03-01")
	if err != nil {
		t.Fatalf("entry missing after regeneration: %v", err)
	}
	var stored Reflection
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("stored entry not parseable: %v", err)
	}
	if stored.Title != "X" {
		t.Errorf("stored entry: got %+v", stored)
	}
}

func TestCache_ConcurrentDailyCallersShareOneGeneration(t *testing.T) {
	gen := &stubGenerator{
		content: testReflection(),
		block:   make(chan struct{}),
	}
	cache := NewCache(store.NewMemoryStore(), gen, CacheConfig{Now: fixedClock("2024-03-01")})

	const callers = 8
	results := make([]*Reflection, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n] = cache.GetOrGenerate(context.Background(), KeyDaily)
		}(i)
	}

	// Give all callers time to reach the in-flight group, then release the
	// single blocked generation.
	time.Sleep(20 * time.Millisecond)
	close(gen.block)
	wg.Wait()

	if got := gen.calls.Load(); got != 1 {
		t.Errorf("concurrent callers triggered %d generations, want 1", got)
	}
	for i, r := range results {
		if !reflect.DeepEqual(r, results[0]) {
			t.Errorf("caller %d saw different content", i)
		}
	}
}

// cancelAwareGenerator honors context cancellation while blocked, the way a
// real HTTP generator client would.
type cancelAwareGenerator struct {
	calls   atomic.Int64
	entered chan struct{}
	block   chan struct{}
	content Reflection
}

func (g *cancelAwareGenerator) GenerateReflection(ctx context.Context, topic string) (*Reflection, error) {
	g.calls.Add(1)
	close(g.entered)
	select {
	case <-g.block:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	r := g.content
	return &r, nil
}

func TestCache_InitiatorCancellationDoesNotFailSharedGeneration(t *testing.T) {
	gen := &cancelAwareGenerator{
		content: testReflection(),
		entered: make(chan struct{}),
		block:   make(chan struct{}),
	}
	cache := NewCache(store.NewMemoryStore(), gen, CacheConfig{Now: fixedClock("2024-03-01")})

	initiatorCtx, cancelInitiator := context.WithCancel(context.Background())
	results := make([]*Reflection, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = cache.GetOrGenerate(initiatorCtx, KeyDaily)
	}()

	// Wait for the first caller's generation to be in flight, then join a
	// second caller onto it.
	<-gen.entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = cache.GetOrGenerate(context.Background(), KeyDaily)
	}()

	// The initiating request disconnects mid-generation. The shared flight
	// must keep going and serve real content to everyone waiting on it.
	time.Sleep(20 * time.Millisecond)
	cancelInitiator()
	time.Sleep(20 * time.Millisecond)
	close(gen.block)
	wg.Wait()

	for i, r := range results {
		if r.Title != "X" {
			t.Errorf("caller %d got fallback content instead of the generated entry: %+v", i, r)
		}
	}
	if got := gen.calls.Load(); got != 1 {
		t.Errorf("generator calls: got %d, want 1", got)
	}
}

func TestDayKey(t *testing.T) {
	ts := time.Date(2024, 3, 1, 23, 59, 59, 0, time.Local)
	if got := DayKey(ts); got != "2024-03-01" {
		t.Errorf("DayKey: got %q, want %q", got, "2024-03-01")
	}
	// One second later it is a new key.
	if got := DayKey(ts.Add(time.Second)); got != "2024-03-02" {
		t.Errorf("DayKey after midnight: got %q, want %q", got, "2024-03-02")
	}
}
