package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lumipallolabs/facetmap/internal/cache"
	"github.com/lumipallolabs/facetmap/internal/config"
	"github.com/lumipallolabs/facetmap/internal/scanner"
	"github.com/lumipallolabs/facetmap/internal/search"
)

// source is an opened aggregation backend
type source struct {
	Querier search.Querier
	Cache   *cache.Cache
	Label   string
	// local is set for the local source, which can be rescanned
	local *localIndex
}

// Baseline returns the snapshot before the latest for req
func (s *source) Baseline(req search.Request) (search.Response, bool) {
	if s.Cache == nil {
		return search.Response{}, false
	}
	e, err := s.Cache.LoadPrevious(req)
	if err != nil {
		return search.Response{}, false
	}
	return e.Response, true
}

// openSource builds the querier cfg describes
// Every source answers through the snapshot cache, so runs can be compared
// and replayed offline.
func openSource(ctx context.Context, cfg *config.Config, logger *log.Logger) (*source, error) {
	snapshots := cache.New(cfg.CacheDir)
	q := &cache.Querier{Cache: snapshots, Offline: cfg.Offline}
	src := &source{Querier: q, Cache: snapshots}

	switch cfg.Source {
	case config.SourceRemote:
		client := search.NewClient(cfg.Endpoint, cfg.Index, cfg.Token)
		q.Next = client
		src.Label = cfg.Index
		logger.Debug("remote source", "url", client.URL())
	case config.SourceLocal:
		src.local = &localIndex{root: cfg.LocalRoot, logger: logger}
		if err := src.local.Rescan(ctx); err != nil {
			return nil, err
		}
		q.Next = src.local
		src.Label = cfg.LocalRoot
	case config.SourceCache:
		q.Offline = true
		src.Label = "cache " + snapshots.Dir()
	default:
		return nil, fmt.Errorf("%w: unknown source %q", config.ErrInvalid, cfg.Source)
	}
	return src, nil
}

// localIndex serves aggregations from a filesystem scan
type localIndex struct {
	root   string
	logger *log.Logger

	mu sync.RWMutex
	ix *scanner.Index
}

// Rescan walks the root again and swaps in the new index
func (l *localIndex) Rescan(ctx context.Context) error {
	w := scanner.NewWalker(0)
	w.DetectMime = true
	w.ResolveNames = true

	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range w.Progress() {
			l.logger.Debug("scanning", "files", p.FilesScanned, "dirs", p.DirsScanned, "at", p.CurrentPath)
		}
	}()

	ix, err := w.Scan(ctx, l.root)
	<-done
	if err != nil {
		return fmt.Errorf("scan %s: %w", l.root, err)
	}
	l.logger.Info("indexed", "root", ix.Root, "records", len(ix.Records))

	l.mu.Lock()
	l.ix = ix
	l.mu.Unlock()
	return nil
}

// Query implements search.Querier
func (l *localIndex) Query(ctx context.Context, req search.Request) (search.Response, error) {
	l.mu.RLock()
	ix := l.ix
	l.mu.RUnlock()
	if ix == nil {
		return search.Response{}, fmt.Errorf("local index of %s not built", l.root)
	}
	return ix.Query(ctx, req)
}
