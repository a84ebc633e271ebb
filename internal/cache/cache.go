package cache

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lumipallolabs/facetmap/internal/logging"
	"github.com/lumipallolabs/facetmap/internal/search"
)

// ErrMiss is returned when no snapshot exists for a request
var ErrMiss = errors.New("no cached response")

const stampLayout = "2006-01-02_150405.000000000"

// Entry is one stored response
type Entry struct {
	Request  search.Request
	Response search.Response
	Saved    time.Time
}

// Cache handles saving and loading aggregation responses
// Every save is kept as a timestamped snapshot so the previous answer stays available.
type Cache struct {
	dir  string
	keep int
	now  func() time.Time
}

// New creates a new cache in the given directory
func New(dir string) *Cache {
	return &Cache{dir: dir, keep: 5, now: time.Now}
}

// Dir returns the cache directory
func (c *Cache) Dir() string { return c.dir }

// key names the snapshots of a request
func key(req search.Request) string {
	sum := sha256.Sum256([]byte(req.Key()))
	return hex.EncodeToString(sum[:8])
}

// Save stores resp as the newest snapshot for req
func (c *Cache) Save(req search.Request, resp search.Response) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	saved := c.now().UTC()
	filename := fmt.Sprintf("%s_%s.gob.gz", key(req), saved.Format(stampLayout))
	path := filepath.Join(c.dir, filename)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)
	encoder := gob.NewEncoder(gzWriter)
	if err := encoder.Encode(Entry{Request: req, Response: resp, Saved: saved}); err != nil {
		gzWriter.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	return c.prune(req)
}

// snapshots lists the files for req, oldest first
func (c *Cache) snapshots(req search.Request) ([]string, error) {
	pattern := filepath.Join(c.dir, key(req)+"_*.gob.gz")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob: %w", err)
	}
	// filenames embed a sortable timestamp
	sort.Strings(files)
	return files, nil
}

// LoadLatest returns the most recent snapshot for req
func (c *Cache) LoadLatest(req search.Request) (Entry, error) {
	return c.loadFromEnd(req, 0)
}

// LoadPrevious returns the snapshot saved before the latest one
func (c *Cache) LoadPrevious(req search.Request) (Entry, error) {
	return c.loadFromEnd(req, 1)
}

func (c *Cache) loadFromEnd(req search.Request, back int) (Entry, error) {
	files, err := c.snapshots(req)
	if err != nil {
		return Entry{}, err
	}
	if len(files) <= back {
		return Entry{}, fmt.Errorf("%s: %w", req, ErrMiss)
	}
	return readEntry(files[len(files)-1-back])
}

func readEntry(path string) (Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return Entry{}, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return Entry{}, fmt.Errorf("gzip reader: %w", err)
	}
	defer gzReader.Close()

	var e Entry
	decoder := gob.NewDecoder(gzReader)
	if err := decoder.Decode(&e); err != nil {
		return Entry{}, fmt.Errorf("decode: %w", err)
	}
	return e, nil
}

// Timestamp returns when the latest snapshot for req was saved
func (c *Cache) Timestamp(req search.Request) (time.Time, error) {
	files, err := c.snapshots(req)
	if err != nil {
		return time.Time{}, err
	}
	if len(files) == 0 {
		return time.Time{}, ErrMiss
	}

	// Extract timestamp from filename
	base := filepath.Base(files[len(files)-1])
	base = strings.TrimSuffix(base, ".gob.gz")
	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid filename %s", base)
	}
	return time.Parse(stampLayout, parts[1])
}

// prune drops all but the newest snapshots for req
func (c *Cache) prune(req search.Request) error {
	files, err := c.snapshots(req)
	if err != nil {
		return err
	}
	for len(files) > c.keep {
		if err := os.Remove(files[0]); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("prune: %w", err)
		}
		files = files[1:]
	}
	return nil
}

// Querier answers from next and stores what it returns
// Snapshots are served only when offline; a failing next is reported as is.
type Querier struct {
	Cache   *Cache
	Next    search.Querier
	Offline bool
}

// Query implements search.Querier
func (q *Querier) Query(ctx context.Context, req search.Request) (search.Response, error) {
	if q.Offline || q.Next == nil {
		e, err := q.Cache.LoadLatest(req)
		if err != nil {
			return search.Response{}, err
		}
		return e.Response, nil
	}

	resp, err := q.Next.Query(ctx, req)
	if err != nil {
		return search.Response{}, err
	}
	if err := q.Cache.Save(req, resp); err != nil {
		logging.Debug.Warnf("[Cache] save failed: %v", err)
	}
	return resp, nil
}
