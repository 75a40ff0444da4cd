package palette

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"
)

// LoadObserver is notified after every disk load the cache performs.
type LoadObserver func(src Source, elapsed time.Duration, err error)

// Cache provides process-wide caching of loaded palettes keyed by Source.
//
// A palette is built on the first Get for its source; concurrent first calls
// share one load. Cached palettes are immutable and handed out to any number
// of concurrent conversions without locking. An entry is replaced only by an
// explicit Reload, or dropped by Evict and Clear.
//
// # Example Usage
//
//	cache := palette.NewCache(palette.Options{}, logger)
//	p, err := cache.Get(palette.Source{Descriptor: "blocks.json", TexturesDir: "textures"})
//	if err != nil {
//	    return err
//	}
//	// Use p...
//	cache.Reload(src) // after the textures on disk changed
type Cache struct {
	mu       sync.RWMutex
	palettes map[string]cached
	seq      uint64
	group    singleflight.Group

	opts     Options
	logger   hclog.Logger
	observer LoadObserver
}

// cached is a stored palette with the sequence number of the load that
// built it. A load only replaces an entry built by an earlier-started load.
type cached struct {
	p   *Palette
	seq uint64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLoadObserver registers fn to be called after every disk load.
func WithLoadObserver(fn LoadObserver) CacheOption {
	return func(c *Cache) {
		c.observer = fn
	}
}

// NewCache creates an empty cache that builds palettes with opts.
// A nil logger discards output.
func NewCache(opts Options, logger hclog.Logger, cacheOpts ...CacheOption) *Cache {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	c := &Cache{
		palettes: make(map[string]cached),
		opts:     opts,
		logger:   logger.Named("palette"),
	}
	for _, o := range cacheOpts {
		o(c)
	}
	return c
}

// Get returns the cached palette for src, loading it on first use.
//
// Load failures are not cached: the next Get retries the load.
func (c *Cache) Get(src Source) (*Palette, error) {
	key := src.Key()

	c.mu.RLock()
	if e, ok := c.palettes[key]; ok {
		c.mu.RUnlock()
		return e.p, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		e, ok := c.palettes[key]
		c.mu.RUnlock()
		if ok {
			return e.p, nil
		}
		return c.load(key, src)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Palette), nil
}

// Reload rebuilds the palette for src from disk and replaces the cached copy.
//
// If the rebuild fails the previously cached palette, if any, stays in place
// and the error is returned.
func (c *Cache) Reload(src Source) (*Palette, error) {
	key := src.Key()
	v, err, _ := c.group.Do("reload\x00"+key, func() (interface{}, error) {
		return c.load(key, src)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Palette), nil
}

// load builds the palette for src and stores it, unless a load that started
// later has already stored its result. In that case the newer palette is
// returned instead, so a slow first Get cannot overwrite a Reload.
func (c *Cache) load(key string, src Source) (*Palette, error) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	start := time.Now()
	p, err := Load(src, c.opts)
	elapsed := time.Since(start)

	if c.observer != nil {
		c.observer(src, elapsed, err)
	}
	if err != nil {
		c.logger.Error("palette load failed", "descriptor", src.Descriptor, "textures", src.TexturesDir, "error", err)
		return nil, err
	}

	c.mu.Lock()
	if cur, ok := c.palettes[key]; ok && cur.seq > seq {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded palette load", "descriptor", src.Descriptor)
		return cur.p, nil
	}
	c.palettes[key] = cached{p: p, seq: seq}
	c.mu.Unlock()

	c.logger.Info("palette loaded", "descriptor", src.Descriptor, "blocks", p.Len(),
		"tile_size", p.TileSize, "policy", p.Policy, "elapsed", elapsed)
	return p, nil
}

// Evict removes the palette for src. The next Get loads it again.
func (c *Cache) Evict(src Source) {
	c.mu.Lock()
	delete(c.palettes, src.Key())
	c.mu.Unlock()
}

// Clear removes every cached palette.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.palettes = make(map[string]cached)
	c.mu.Unlock()
}

// Len returns the number of cached palettes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.palettes)
}
