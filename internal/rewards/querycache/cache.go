// Package querycache is a (resource, id) keyed cache of query results with
// explicit invalidation and a fetch-if-stale read policy.
package querycache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Fetcher[T any] func(ctx context.Context) (T, error)

type Cache struct {
	store  Store
	clock  clockwork.Clock
	maxAge time.Duration
	logger *zap.Logger

	group singleflight.Group
}

// New returns a cache over store. maxAge of zero keeps entries fresh until
// they are invalidated.
func New(store Store, clock clockwork.Clock, maxAge time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:  store,
		clock:  clock,
		maxAge: maxAge,
		logger: logger.Named("querycache"),
	}
}

func (c *Cache) fresh(e *Entry) bool {
	if e.Stale {
		return false
	}
	return c.maxAge <= 0 || c.clock.Since(e.FetchedAt) < c.maxAge
}

// Fetch returns the cached value for key while it is fresh and runs fetch
// otherwise. Concurrent callers for the same key share one fetch. A caller
// whose ctx ends stops waiting; the fetch itself still completes and fills
// the cache.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fetch Fetcher[T]) (T, error) {
	var zero T
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("store.Get failed: ", zap.String("key", key.String()), zap.Error(err))
	}
	if ok && c.fresh(entry) {
		var out T
		if err := json.Unmarshal(entry.Value, &out); err == nil {
			return out, nil
		}
		c.logger.Warn("cached value decode failed, refetching", zap.String("key", key.String()))
	}

	// without a generation the result is returned but never stored
	gen, err := c.store.Generation(ctx, key)
	storable := err == nil
	if err != nil {
		c.logger.Warn("store.Generation failed: ", zap.String("key", key.String()), zap.Error(err))
	}
	detached := context.WithoutCancel(ctx)
	flight := key.String() + "#" + strconv.FormatUint(gen.Key, 10) + "." + strconv.FormatUint(gen.Resource, 10)
	if !storable {
		flight += "#nogen"
	}
	ch := c.group.DoChan(flight, func() (interface{}, error) {
		value, err := fetch(detached)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, errors.Wrap(err, "json.Marshal failed: ")
		}
		if !storable {
			return raw, nil
		}
		// an invalidation that landed mid-fetch wins over this result
		stored, err := c.store.SetIfGeneration(detached, key, raw, c.clock.Now(), gen)
		if err != nil {
			c.logger.Warn("store.SetIfGeneration failed: ", zap.String("key", key.String()), zap.Error(err))
		} else if !stored {
			c.logger.Debug("result dropped after invalidation", zap.String("key", key.String()))
		}
		return raw, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		var out T
		if err := json.Unmarshal(res.Val.([]byte), &out); err != nil {
			return zero, errors.Wrap(err, "json.Unmarshal failed: ")
		}
		return out, nil
	}
}

// Invalidate marks keys stale so the next Fetch of each refetches.
func (c *Cache) Invalidate(ctx context.Context, keys ...Key) error {
	if err := c.store.MarkStale(ctx, keys...); err != nil {
		return errors.Wrap(err, "store.MarkStale failed: ")
	}
	return nil
}

// InvalidateResource marks every key of resource stale.
func (c *Cache) InvalidateResource(ctx context.Context, resource Resource) error {
	if err := c.store.MarkResourceStale(ctx, resource); err != nil {
		return errors.Wrap(err, "store.MarkResourceStale failed: ")
	}
	return nil
}

// Peek reports the stored entry for key without fetching.
func (c *Cache) Peek(ctx context.Context, key Key) (*Entry, bool, error) {
	return c.store.Get(ctx, key)
}

func (c *Cache) Close() error {
	return c.store.Close()
}
