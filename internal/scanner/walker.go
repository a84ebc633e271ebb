package scanner

import (
	"context"
	"io/fs"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"

	"github.com/lumipallolabs/facetmap/internal/logging"
)

// Walker implements parallel filesystem scanning
type Walker struct {
	workers    int
	progressCh chan Progress
	progress   Progress

	// DetectMime sniffs file contents for the mime_type field
	DetectMime bool
	// ResolveNames reports user and group names instead of numeric ids
	ResolveNames bool
	// CrossMounts descends into other filesystems
	CrossMounts bool

	names sync.Map
}

// NewWalker creates a new parallel filesystem walker
func NewWalker(workers int) *Walker {
	if workers < 1 {
		workers = 8
	}
	return &Walker{
		workers:    workers,
		progressCh: make(chan Progress, 100),
	}
}

// Progress returns the progress channel
func (w *Walker) Progress() <-chan Progress {
	return w.progressCh
}

// Scan indexes every entry below root using fastwalk
func (w *Walker) Scan(ctx context.Context, root string) (*Index, error) {
	defer close(w.progressCh)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	// Get platform-specific root info for mount point detection
	rootInfo := getPlatformRootInfo(absRoot)

	// Use channels for lock-free entry collection
	recordCh := make(chan Record, 10000)
	var records []Record
	var collectWg sync.WaitGroup

	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		for r := range recordCh {
			records = append(records, r)
		}
	}()

	// Track seen inodes for deduplication
	var seenItems sync.Map

	conf := &fastwalk.Config{
		Follow:     false,
		NumWorkers: w.workers,
	}

	walkErr := fastwalk.Walk(conf, absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // Skip entries with errors
		}
		if path == absRoot {
			return nil
		}

		if d.IsDir() && !w.CrossMounts && shouldSkipDir(path, d, rootInfo, &seenItems) {
			return fs.SkipDir
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !d.IsDir() && isDuplicateLink(info, &seenItems) {
			return nil
		}

		if d.IsDir() {
			atomic.AddInt64(&w.progress.DirsScanned, 1)
		} else {
			n := atomic.AddInt64(&w.progress.FilesScanned, 1)
			if n%1000 == 0 {
				w.report(path)
			}
		}

		recordCh <- w.record(path, info)
		return nil
	})

	close(recordCh)
	collectWg.Wait()

	if walkErr != nil {
		return nil, walkErr
	}

	logging.Scanner.Debugf("indexed %d entries under %s", len(records), absRoot)
	return &Index{Root: absRoot, Records: records}, nil
}

func (w *Walker) report(path string) {
	p := Progress{
		FilesScanned: atomic.LoadInt64(&w.progress.FilesScanned),
		DirsScanned:  atomic.LoadInt64(&w.progress.DirsScanned),
		CurrentPath:  path,
	}
	select {
	case w.progressCh <- p:
	default:
	}
}

// record extracts the facet fields of one entry
func (w *Walker) record(path string, info fs.FileInfo) Record {
	fields := map[string]string{
		FieldMode: modeChar(info.Mode()),
	}
	if ext, ok := extension(info); ok {
		fields[FieldExtension] = ext
	}
	if uid, gid, ok := ownerIDs(info); ok {
		fields[FieldUser] = w.userName(uid)
		fields[FieldGroup] = w.groupName(gid)
	}
	if w.DetectMime {
		fields[FieldMime] = mimeOf(path, info)
	}
	return Record{Path: path, Fields: fields}
}

// modeChar returns the first character of the long listing mode string
func modeChar(m fs.FileMode) string {
	switch {
	case m.IsDir():
		return "d"
	case m&fs.ModeSymlink != 0:
		return "l"
	case m&fs.ModeNamedPipe != 0:
		return "p"
	case m&fs.ModeSocket != 0:
		return "s"
	case m&fs.ModeCharDevice != 0:
		return "c"
	case m&fs.ModeDevice != 0:
		return "b"
	default:
		return "-"
	}
}

// extension reports the lowercased file extension; directories have none
func extension(info fs.FileInfo) (string, bool) {
	if info.IsDir() {
		return "", false
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(info.Name()), "."))
	if ext == "" {
		return "(none)", true
	}
	return ext, true
}

func mimeOf(path string, info fs.FileInfo) string {
	switch {
	case info.IsDir():
		return "inode/directory"
	case !info.Mode().IsRegular():
		return "inode/special"
	}
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	mt, _, _ := strings.Cut(m.String(), ";")
	return mt
}

func (w *Walker) userName(uid string) string {
	if !w.ResolveNames {
		return uid
	}
	return w.lookup("u"+uid, uid, func() (string, error) {
		u, err := user.LookupId(uid)
		if err != nil {
			return "", err
		}
		return u.Username, nil
	})
}

func (w *Walker) groupName(gid string) string {
	if !w.ResolveNames {
		return gid
	}
	return w.lookup("g"+gid, gid, func() (string, error) {
		g, err := user.LookupGroupId(gid)
		if err != nil {
			return "", err
		}
		return g.Name, nil
	})
}

// lookup caches name resolution; unknown ids keep their number
func (w *Walker) lookup(key, id string, resolve func() (string, error)) string {
	if v, ok := w.names.Load(key); ok {
		return v.(string)
	}
	name, err := resolve()
	if err != nil || name == "" {
		name = id
	}
	w.names.Store(key, name)
	return name
}

// Ensure Walker implements Scanner
var _ Scanner = (*Walker)(nil)
