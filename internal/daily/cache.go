package daily

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/daybreakapp/daybreak/internal/store"
)

const entryKeyPrefix = "reflection-"

// CacheConfig configures a daily cache.
type CacheConfig struct {
	// Timeout bounds each remote generation call. Zero means 30 seconds.
	Timeout time.Duration

	// Now supplies the current time; tests inject a fixed clock. Nil means
	// time.Now.
	Now func() time.Time
}

// Cache memoizes daily reflections in a persisted key-value store. The
// check-then-generate-then-store sequence spans an asynchronous boundary, so
// concurrent daily callers are collapsed onto a single in-flight generation
// keyed by day.
type Cache struct {
	store   store.Store
	gen     Generator
	timeout time.Duration
	now     func() time.Time
	group   singleflight.Group
}

// NewCache creates a daily cache over the given store and generator.
func NewCache(kv store.Store, gen Generator, cfg CacheConfig) *Cache {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{
		store:   kv,
		gen:     gen,
		timeout: cfg.Timeout,
		now:     cfg.Now,
	}
}

// GetOrGenerate returns the reflection for key. The daily key is memoized
// per calendar day: a fresh stored entry short-circuits the generator
// entirely. Topic keys always call the generator; topic requests are never
// cached. On generation failure of any kind the fixed fallback payload is
// returned instead of an error.
func (c *Cache) GetOrGenerate(ctx context.Context, key string) *Reflection {
	if key != KeyDaily {
		return c.generateTopic(ctx, key)
	}

	dayKey := DayKey(c.now())
	if cached, ok := c.lookup(dayKey); ok {
		log.Debug("daily reflection served from cache", "day", dayKey)
		return cached
	}

	result, err, shared := c.group.Do(dayKey, func() (interface{}, error) {
		// A concurrent caller may have stored the entry while this call
		// waited its turn.
		if cached, ok := c.lookup(dayKey); ok {
			return cached, nil
		}

		// The flight is shared by every concurrent daily caller, so it
		// must not die with whichever request happened to start it. The
		// configured timeout still bounds the generator call.
		reflection, err := c.generate(context.WithoutCancel(ctx), "")
		if err != nil {
			return nil, err
		}

		c.persist(dayKey, reflection)
		return reflection, nil
	})
	if err != nil {
		log.Warn("daily generation failed, serving fallback", "day", dayKey, "error", err)
		return Fallback()
	}
	if shared {
		log.Debug("daily generation shared with concurrent caller", "day", dayKey)
	}
	return result.(*Reflection)
}

// generateTopic always hits the generator; failures degrade to the
// fallback, never an error.
func (c *Cache) generateTopic(ctx context.Context, topic string) *Reflection {
	reflection, err := c.generate(ctx, topic)
	if err != nil {
		log.Warn("topic generation failed, serving fallback", "topic", topic, "error", err)
		return Fallback()
	}
	return reflection
}

// generate calls the remote generator under the configured timeout.
func (c *Cache) generate(ctx context.Context, topic string) (*Reflection, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reflection, err := c.gen.GenerateReflection(ctx, topic)
	if err != nil {
		return nil, err
	}
	if reflection == nil {
		return nil, errors.New("generator returned no content")
	}
	return reflection, nil
}

// lookup returns the stored entry for dayKey. A present but unparseable
// entry is treated as corruption: it is discarded and the caller falls
// through to regeneration. Corruption is invisible to the user.
func (c *Cache) lookup(dayKey string) (*Reflection, bool) {
	raw, err := c.store.Get(entryKeyPrefix + dayKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		log.Warn("daily cache read failed", "day", dayKey, "error", err)
		return nil, false
	}

	var reflection Reflection
	if err := json.Unmarshal([]byte(raw), &reflection); err != nil {
		log.Warn("discarding corrupted daily entry", "day", dayKey, "error", err)
		_ = c.store.Remove(entryKeyPrefix + dayKey)
		return nil, false
	}
	return &reflection, true
}

// persist stores a freshly generated entry, overwriting any stale or
// corrupted value under the same day. Persistence failures are logged and
// swallowed; the generated content is still returned to the caller.
func (c *Cache) persist(dayKey string, reflection *Reflection) {
	data, err := json.Marshal(reflection)
	if err != nil {
		log.Warn("failed to encode daily entry", "day", dayKey, "error", err)
		return
	}
	if err := c.store.Set(entryKeyPrefix+dayKey, string(data)); err != nil {
		log.Warn("failed to persist daily entry", "day", dayKey, "error", err)
	}
}
