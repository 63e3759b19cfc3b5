// Package cache is the write-through cache of spec.md §4.2: a per-batch
// buffer that dedupes inserts, resolves date/origin merges ahead of the
// backend, and flushes in the fixed ten-step order a crash can never leave
// half-applied in a way the next ingestion can't repair. Grounded on the
// teacher's internal/storage/dolt retry style (cenkalti/backoff/v4 around a
// transient-failure predicate, see store.go's newServerRetryBackoff).
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/swh-go/provenance/internal/metrics"
	"github.com/swh-go/provenance/internal/model"
	"github.com/swh-go/provenance/internal/storage"
)

// contentDatesChunkSize bounds how many ids a single ContentGet RPC carries;
// ContentDates fans out across chunks concurrently via errgroup (spec.md
// §4.2's "bulk (chunked)" read path).
const contentDatesChunkSize = 1000

// revisionData is the cache's in-batch view of a revision: either field may
// be unset (IsZero) pending a merge at flush time.
type revisionData struct {
	date   time.Time
	origin model.ID
}

type directoryData struct {
	date time.Time
	flat bool
}

// Cache is the write-through cache for one ingestion batch. It is not
// goroutine-safe: spec.md §4.1 "Locking discipline" makes it owned by a
// single worker.
type Cache struct {
	store storage.Storage
	log   *slog.Logger
	rec   metrics.Recorder

	// MaxElements triggers FlushIfNecessary once the sum of all buffered
	// entries exceeds it (spec.md §4.2 flush_if_necessary). Zero disables
	// the threshold.
	MaxElements int

	contentDates map[model.ID]time.Time
	contentAdded map[model.ID]bool

	directoryData  map[model.ID]directoryData
	directoryAdded map[model.ID]bool

	revisionData  map[model.ID]revisionData
	revisionAdded map[model.ID]bool

	originURLs  map[model.ID]string
	originAdded map[model.ID]bool

	cntEarlyInRev storage.RelationEdgeSet
	cntInDir      storage.RelationEdgeSet
	dirInRev      storage.RelationEdgeSet
	revInOrg      storage.RelationEdgeSet
	revBeforeRev  storage.RelationEdgeSet

	// revisionPreferredOrigin holds step-10 updates: a revision whose
	// preferred origin was just resolved by the origin-layer walk but
	// which was already flushed with no origin.
	revisionPreferredOrigin map[model.ID]model.ID
}

// New builds an empty cache over store. rec may be nil, in which case no
// metrics are recorded.
func New(store storage.Storage, log *slog.Logger, rec metrics.Recorder) *Cache {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Cache{
		store:                   store,
		log:                     log,
		rec:                     rec,
		MaxElements:             100_000,
		contentDates:            make(map[model.ID]time.Time),
		contentAdded:            make(map[model.ID]bool),
		directoryData:           make(map[model.ID]directoryData),
		directoryAdded:          make(map[model.ID]bool),
		revisionData:            make(map[model.ID]revisionData),
		revisionAdded:           make(map[model.ID]bool),
		originURLs:              make(map[model.ID]string),
		originAdded:             make(map[model.ID]bool),
		cntEarlyInRev:           make(storage.RelationEdgeSet),
		cntInDir:                make(storage.RelationEdgeSet),
		dirInRev:                make(storage.RelationEdgeSet),
		revInOrg:                make(storage.RelationEdgeSet),
		revBeforeRev:            make(storage.RelationEdgeSet),
		revisionPreferredOrigin: make(map[model.ID]model.ID),
	}
}

// ContentDate reads a content's date, consulting the backend on miss and
// populating the cache so a repeated lookup in the same batch never hits
// storage twice (spec.md §4.2).
func (c *Cache) ContentDate(ctx context.Context, id model.ID) (time.Time, error) {
	if d, ok := c.contentDates[id]; ok {
		return d, nil
	}
	got, err := c.store.ContentGet(ctx, []model.ID{id})
	if err != nil {
		return time.Time{}, err
	}
	d := got[id]
	c.contentDates[id] = d
	return d, nil
}

// ContentDates bulk-fetches any of ids not already cached, splitting the miss
// set into chunks fetched concurrently (spec.md §4.2's "bulk (chunked)" read
// path), and returns the full merged view.
func (c *Cache) ContentDates(ctx context.Context, ids []model.ID) (map[model.ID]time.Time, error) {
	var miss []model.ID
	for _, id := range ids {
		if _, ok := c.contentDates[id]; !ok {
			miss = append(miss, id)
		}
	}
	if len(miss) > 0 {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		for start := 0; start < len(miss); start += contentDatesChunkSize {
			end := start + contentDatesChunkSize
			if end > len(miss) {
				end = len(miss)
			}
			chunk := miss[start:end]
			g.Go(func() error {
				got, err := c.store.ContentGet(gctx, chunk)
				if err != nil {
					return err
				}
				mu.Lock()
				for _, id := range chunk {
					c.contentDates[id] = got[id] // zero value if absent, cached as such
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	out := make(map[model.ID]time.Time, len(ids))
	for _, id := range ids {
		out[id] = c.contentDates[id]
	}
	return out, nil
}

// SetContentDate records a date-min merge for id within the batch,
// deferring to storage.Storage's own min-merge at flush time for anything
// already on disk (invariant I4).
func (c *Cache) SetContentDate(id model.ID, date time.Time) {
	if cur, ok := c.contentDates[id]; !ok || date.Before(cur) {
		c.contentDates[id] = date
	}
	c.contentAdded[id] = true
}

// DirectoryGet consults the cache, falling back to storage on miss.
func (c *Cache) DirectoryGet(ctx context.Context, id model.ID) (model.Directory, error) {
	if d, ok := c.directoryData[id]; ok {
		return model.Directory{ID: id, Date: d.date, Flat: d.flat}, nil
	}
	got, err := c.store.DirectoryGet(ctx, []model.ID{id})
	if err != nil {
		return model.Directory{}, err
	}
	d := got[id]
	c.directoryData[id] = directoryData{date: d.Date, flat: d.Flat}
	return model.Directory{ID: id, Date: d.Date, Flat: d.Flat}, nil
}

func (c *Cache) SetDirectory(id model.ID, date time.Time, flat bool) {
	cur := c.directoryData[id]
	merged := cur
	if !date.IsZero() && (cur.date.IsZero() || date.Before(cur.date)) {
		merged.date = date
	}
	merged.flat = cur.flat || flat
	c.directoryData[id] = merged
	c.directoryAdded[id] = true
}

func (c *Cache) RevisionGet(ctx context.Context, id model.ID) (model.Revision, error) {
	if r, ok := c.revisionData[id]; ok {
		origin := r.origin
		if pending, ok := c.revisionPreferredOrigin[id]; ok && origin.IsZero() {
			origin = pending
		}
		return model.Revision{ID: id, Date: r.date, Origin: origin}, nil
	}
	got, err := c.store.RevisionGet(ctx, []model.ID{id})
	if err != nil {
		return model.Revision{}, err
	}
	r := got[id]
	c.revisionData[id] = revisionData{date: r.Date, origin: r.Origin}
	if pending, ok := c.revisionPreferredOrigin[id]; ok && r.Origin.IsZero() {
		r.Origin = pending
	}
	return r, nil
}

func (c *Cache) SetRevision(id model.ID, date time.Time, origin model.ID) {
	cur := c.revisionData[id]
	merged := cur
	if !date.IsZero() && (cur.date.IsZero() || date.Before(cur.date)) {
		merged.date = date
	}
	if !origin.IsZero() {
		merged.origin = origin
	}
	c.revisionData[id] = merged
	c.revisionAdded[id] = true
}

// SetRevisionPreferredOrigin records a step-10 preferred-origin resolution
// made after the revision was already otherwise flushed (spec.md §4.4's
// origin-layer walk, run after the isochrone ingestion of the same batch).
func (c *Cache) SetRevisionPreferredOrigin(id, origin model.ID) {
	if _, ok := c.revisionPreferredOrigin[id]; !ok {
		c.revisionPreferredOrigin[id] = origin
	}
}

func (c *Cache) OriginGet(ctx context.Context, id model.ID) (string, error) {
	if u, ok := c.originURLs[id]; ok {
		return u, nil
	}
	got, err := c.store.OriginGet(ctx, []model.ID{id})
	if err != nil {
		return "", err
	}
	u := got[id]
	c.originURLs[id] = u
	return u, nil
}

func (c *Cache) SetOrigin(id model.ID, url string) {
	if _, ok := c.originURLs[id]; !ok {
		c.originURLs[id] = url
	}
	c.originAdded[id] = true
}

// RelationGetDirect reports the edges buffered or already on disk for src
// under kind, checking the in-batch buffer first (spec.md §4.6's
// "via cache or relation_get" check before building a HistoryGraph).
func (c *Cache) RelationGetDirect(ctx context.Context, kind model.RelationKind, src model.ID) ([]model.RelationEdge, error) {
	if buffered := c.bucket(kind)[src]; len(buffered) > 0 {
		return buffered, nil
	}
	got, err := c.store.RelationGet(ctx, kind, []model.ID{src}, false)
	if err != nil {
		return nil, err
	}
	return got[src], nil
}

func (c *Cache) AddRelation(kind model.RelationKind, src, dst model.ID, path []byte) {
	c.bucket(kind)[src] = append(c.bucket(kind)[src], model.RelationEdge{Src: src, Dst: dst, Path: path})
}

func (c *Cache) bucket(kind model.RelationKind) storage.RelationEdgeSet {
	switch kind {
	case model.CntEarlyInRev:
		return c.cntEarlyInRev
	case model.CntInDir:
		return c.cntInDir
	case model.DirInRev:
		return c.dirInRev
	case model.RevInOrg:
		return c.revInOrg
	case model.RevBeforeRev:
		return c.revBeforeRev
	default:
		panic("cache: unknown relation kind " + string(kind))
	}
}

// Size is the total buffered element count flush_if_necessary compares
// against MaxElements.
func (c *Cache) Size() int {
	n := len(c.contentAdded) + len(c.directoryAdded) + len(c.revisionAdded) + len(c.originAdded) + len(c.revisionPreferredOrigin)
	for _, b := range []storage.RelationEdgeSet{c.cntEarlyInRev, c.cntInDir, c.dirInRev, c.revInOrg, c.revBeforeRev} {
		for _, edges := range b {
			n += len(edges)
		}
	}
	return n
}

// FlushIfNecessary flushes when Size exceeds MaxElements (spec.md §4.2).
func (c *Cache) FlushIfNecessary(ctx context.Context) error {
	if c.MaxElements > 0 && c.Size() > c.MaxElements {
		return c.Flush(ctx)
	}
	return nil
}

// Flush writes the batch to storage in the fixed ten-step order of
// spec.md §4.2, retrying each step with exponential backoff on a false
// return, and clears every map afterward regardless of outcome — a
// per-revision fatal error must not poison the next revision's batch
// (spec.md §7 "Propagation policy").
func (c *Cache) Flush(ctx context.Context) error {
	defer c.reset()

	steps := []struct {
		name string
		fn   func(context.Context) (bool, error)
	}{
		{"cnt_early_in_rev", func(ctx context.Context) (bool, error) {
			return c.store.RelationAdd(ctx, model.CntEarlyInRev, c.cntEarlyInRev)
		}},
		{"cnt_in_dir", func(ctx context.Context) (bool, error) {
			return c.store.RelationAdd(ctx, model.CntInDir, c.cntInDir)
		}},
		{"dir_in_rev", func(ctx context.Context) (bool, error) {
			return c.store.RelationAdd(ctx, model.DirInRev, c.dirInRev)
		}},
		{"content_dates", func(ctx context.Context) (bool, error) {
			return c.store.ContentSetDate(ctx, c.addedContentDates())
		}},
		{"directories", func(ctx context.Context) (bool, error) {
			return c.store.DirectorySet(ctx, c.addedDirectories())
		}},
		{"revision_dates", func(ctx context.Context) (bool, error) {
			return c.store.RevisionSet(ctx, c.addedRevisions())
		}},
		{"origin_urls", func(ctx context.Context) (bool, error) {
			return c.store.OriginSet(ctx, c.addedOrigins())
		}},
		{"rev_before_rev", func(ctx context.Context) (bool, error) {
			return c.store.RelationAdd(ctx, model.RevBeforeRev, c.revBeforeRev)
		}},
		{"rev_in_org", func(ctx context.Context) (bool, error) {
			return c.store.RelationAdd(ctx, model.RevInOrg, c.revInOrg)
		}},
		{"revision_preferred_origin", func(ctx context.Context) (bool, error) {
			return c.store.RevisionSet(ctx, c.preferredOriginUpdates())
		}},
	}

	for _, step := range steps {
		start := time.Now()
		err := c.retryStep(ctx, step.name, step.fn)
		c.rec.Duration("cache.flush.step", time.Since(start), map[string]string{"step": step.name})
		if err != nil {
			return err
		}
	}
	return nil
}

// retryStep retries fn until it reports success, logging and counting
// every retry, matching the teacher's exponential-backoff retry shape in
// internal/storage/dolt/store.go.
func (c *Cache) retryStep(ctx context.Context, name string, fn func(context.Context) (bool, error)) error {
	exp := backoff.NewExponentialBackOff()
	exp.MaxElapsedTime = 0 // never give up inside a batch; only ctx cancellation stops retries
	bo := backoff.WithContext(exp, ctx)
	return backoff.Retry(func() error {
		ok, err := fn(ctx)
		if err != nil {
			if c.log != nil {
				c.log.Warn("cache flush step failed", "step", name, "error", err)
			}
			c.rec.Increment("cache.flush.error", map[string]string{"step": name})
			return err
		}
		if !ok {
			if c.log != nil {
				c.log.Warn("cache flush step returned false, retrying", "step", name)
			}
			c.rec.Increment("cache.flush.retry", map[string]string{"step": name})
			return errFlushStepFailed
		}
		return nil
	}, bo)
}

var errFlushStepFailed = flushError("flush step returned false")

type flushError string

func (e flushError) Error() string { return string(e) }

func (c *Cache) addedContentDates() map[model.ID]time.Time {
	out := make(map[model.ID]time.Time, len(c.contentAdded))
	for id := range c.contentAdded {
		out[id] = c.contentDates[id]
	}
	return out
}

func (c *Cache) addedDirectories() map[model.ID]model.Directory {
	out := make(map[model.ID]model.Directory, len(c.directoryAdded))
	for id := range c.directoryAdded {
		d := c.directoryData[id]
		out[id] = model.Directory{ID: id, Date: d.date, Flat: d.flat}
	}
	return out
}

func (c *Cache) addedRevisions() map[model.ID]model.Revision {
	out := make(map[model.ID]model.Revision, len(c.revisionAdded))
	for id := range c.revisionAdded {
		r := c.revisionData[id]
		out[id] = model.Revision{ID: id, Date: r.date, Origin: r.origin}
	}
	return out
}

func (c *Cache) addedOrigins() map[model.ID]string {
	out := make(map[model.ID]string, len(c.originAdded))
	for id := range c.originAdded {
		out[id] = c.originURLs[id]
	}
	return out
}

func (c *Cache) preferredOriginUpdates() map[model.ID]model.Revision {
	out := make(map[model.ID]model.Revision, len(c.revisionPreferredOrigin))
	for id, origin := range c.revisionPreferredOrigin {
		out[id] = model.Revision{ID: id, Origin: origin}
	}
	return out
}

func (c *Cache) reset() {
	c.contentDates = make(map[model.ID]time.Time)
	c.contentAdded = make(map[model.ID]bool)
	c.directoryData = make(map[model.ID]directoryData)
	c.directoryAdded = make(map[model.ID]bool)
	c.revisionData = make(map[model.ID]revisionData)
	c.revisionAdded = make(map[model.ID]bool)
	c.originURLs = make(map[model.ID]string)
	c.originAdded = make(map[model.ID]bool)
	c.cntEarlyInRev = make(storage.RelationEdgeSet)
	c.cntInDir = make(storage.RelationEdgeSet)
	c.dirInRev = make(storage.RelationEdgeSet)
	c.revInOrg = make(storage.RelationEdgeSet)
	c.revBeforeRev = make(storage.RelationEdgeSet)
	c.revisionPreferredOrigin = make(map[model.ID]model.ID)
}
