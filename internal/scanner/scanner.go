// Package scanner walks one watched root per worker, consults the
// prior cache snapshot for fast-skip decisions, extracts metadata, and
// emits batched records to its controlling actor.
package scanner

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"attune/internal/logging"
	"attune/internal/media"
	"attune/internal/tagio"
)

// Batch flush thresholds. Rating-only updates are cheaper records, so
// they flush at the smaller threshold.
const (
	fullBatchSize   = 100
	ratingBatchSize = 50
	progressEvery   = 100 * time.Millisecond
)

// Sink receives scanner events. Batches are fire-and-forget: the
// scanner never blocks on the cache actor.
type Sink interface {
	ItemBatch(items []media.Item)
	Progress(dirsVisited, filesFound int, elapsed time.Duration)
	ScanComplete(elapsed time.Duration)
}

// TagReader extracts embedded metadata from a file.
type TagReader interface {
	ReadTags(path string) (media.TagData, error)
}

// AttrReader reads metadata from filesystem extended attributes.
type AttrReader interface {
	ReadTags(path string) (media.TagData, bool)
	ReadRating(path string) (int, bool)
}

// TagReaderFunc adapts a function to the TagReader interface.
type TagReaderFunc func(path string) (media.TagData, error)

func (f TagReaderFunc) ReadTags(path string) (media.TagData, error) { return f(path) }

// Options configures a scanner worker.
type Options struct {
	Root           string
	Snapshot       map[string]media.Item // prior cache view, keyed by path
	Sink           Sink
	Tags           TagReader
	Attrs          AttrReader
	FollowSymlinks bool
	Logger         *slog.Logger
}

// Scanner walks a single root on a dedicated worker goroutine. The
// worker is spawned at construction but idles until Start, so an
// orchestrator can register every scanner before any I/O begins.
type Scanner struct {
	opts   Options
	logger *slog.Logger

	start   chan struct{}
	quit    chan struct{}
	done    chan struct{}
	stopped atomic.Bool

	mu        sync.Mutex
	fullBuf   []media.Item
	ratingBuf []media.Item
}

// New constructs a scanner and spawns its idle worker.
func New(opts Options) *Scanner {
	s := &Scanner{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "scanner"),
		start:  make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.worker()
	return s
}

// Start wakes the worker for one scan run. Signals while a run is in
// progress coalesce into at most one follow-up run.
func (s *Scanner) Start() {
	select {
	case s.start <- struct{}{}:
	default:
	}
}

// Stop requests cancellation. The traversal exits at the next directory
// entry boundary; buffered records are still flushed, but no
// scan-complete event is emitted for the cancelled run.
func (s *Scanner) Stop() {
	s.stopped.Store(true)
}

// Close stops the worker and waits for it to exit.
func (s *Scanner) Close() {
	s.Stop()
	close(s.quit)
	<-s.done
}

func (s *Scanner) worker() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case <-s.start:
			s.stopped.Store(false)
			s.run()
		}
	}
}

func (s *Scanner) run() {
	began := time.Now()
	s.logger.Info("scan started", logging.String(logging.FieldRoot, s.opts.Root))

	walker := &walk{
		scanner:      s,
		began:        began,
		lastProgress: began,
		visited:      make(map[fileID]bool),
	}
	walker.descend(s.opts.Root)

	s.flush(&s.fullBuf)
	s.flush(&s.ratingBuf)

	elapsed := time.Since(began)
	if s.stopped.Load() {
		s.logger.Info("scan cancelled",
			logging.String(logging.FieldRoot, s.opts.Root),
			logging.Duration("elapsed", elapsed))
		return
	}
	s.logger.Info("scan complete",
		logging.String(logging.FieldRoot, s.opts.Root),
		logging.Int("dirs", walker.dirsVisited),
		logging.Int("files", walker.filesFound),
		logging.Duration("elapsed", elapsed))
	s.opts.Sink.ScanComplete(elapsed)
}

// walk holds per-run traversal state.
type walk struct {
	scanner      *Scanner
	began        time.Time
	lastProgress time.Time
	dirsVisited  int
	filesFound   int
	visited      map[fileID]bool
}

// descend walks the tree iteratively, depth-first, in name order.
// Dot-prefixed entries are invisible, as are files outside the
// extension allow-list.
func (w *walk) descend(root string) {
	s := w.scanner
	stack := []string{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if id, ok := identify(dir); ok {
			if w.visited[id] {
				continue // cycle through a symlinked ancestor
			}
			w.visited[id] = true
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		w.dirsVisited++
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, entry := range entries {
			if s.stopped.Load() {
				return
			}
			name := entry.Name()
			if name == "" || name[0] == '.' {
				continue
			}
			path := filepath.Join(dir, name)

			if entry.IsDir() {
				stack = append(stack, path)
				continue
			}
			if entry.Type()&os.ModeSymlink != 0 {
				info, err := os.Stat(path)
				if err != nil {
					continue
				}
				if info.IsDir() {
					if s.opts.FollowSymlinks {
						stack = append(stack, path)
					}
					continue
				}
			}
			if !tagio.Allowed(path) {
				continue
			}
			w.filesFound++
			s.processFile(path)
			w.maybeProgress()
		}
	}
}

// maybeProgress reports progress at most once per interval, never per
// file, to bound message volume.
func (w *walk) maybeProgress() {
	now := time.Now()
	if now.Sub(w.lastProgress) < progressEvery {
		return
	}
	w.lastProgress = now
	w.scanner.opts.Sink.Progress(w.dirsVisited, w.filesFound, now.Sub(w.began))
}

func (s *Scanner) processFile(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	prior, cached := s.opts.Snapshot[path]
	if cached && prior.ModTime.Equal(info.ModTime()) && prior.Size == info.Size() {
		// Fast-skip: only the rating attribute can change without
		// touching mtime.
		if rating, ok := s.opts.Attrs.ReadRating(path); ok && rating != prior.Rating {
			update := prior
			update.Rating = rating
			update.Missing = false
			s.queue(&s.ratingBuf, ratingBatchSize, update)
		}
		return
	}

	it := s.extract(path, info)
	s.queue(&s.fullBuf, fullBatchSize, it)
}

// extract performs a full metadata read. Codec failures degrade to a
// record with only filesystem-derived fields; the scan continues.
func (s *Scanner) extract(path string, info os.FileInfo) media.Item {
	it := media.Item{
		Path:    path,
		Base:    filepath.Dir(path),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Inode:   inodeOf(info),
	}

	td, err := s.opts.Tags.ReadTags(path)
	if err != nil {
		s.logger.Debug("metadata extraction failed",
			logging.String(logging.FieldPath, path), logging.Error(err))
		td = media.TagData{}
	}

	// Tags win over attributes; attributes only fill fields the tags
	// left empty.
	if td.Title == "" || td.Artist == "" {
		if attrs, ok := s.opts.Attrs.ReadTags(path); ok {
			td.FillEmptyFrom(attrs)
		}
	}
	// The rating attribute is authoritative whenever present,
	// independent of the fill-empty fallback.
	if rating, ok := s.opts.Attrs.ReadRating(path); ok && rating > 0 {
		td.Rating = rating
	}

	it.ApplyTags(td)
	if it.Title == "" {
		it.Title = filepath.Base(path)
	}
	return it
}

func (s *Scanner) queue(buf *[]media.Item, threshold int, it media.Item) {
	s.mu.Lock()
	*buf = append(*buf, it)
	ready := len(*buf) >= threshold
	s.mu.Unlock()
	if ready {
		s.flush(buf)
	}
}

// flush hands the buffer to the sink. The lock covers only the buffer
// swap, never the delivery.
func (s *Scanner) flush(buf *[]media.Item) {
	s.mu.Lock()
	items := *buf
	*buf = nil
	s.mu.Unlock()
	if len(items) > 0 {
		s.opts.Sink.ItemBatch(items)
	}
}
