// Package library orchestrates scan sessions: it owns the cache's
// mutation surface, spawns one scanner per watched root, and fans
// events out to a listener.
package library

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"attune/internal/cache"
	"attune/internal/logging"
	"attune/internal/media"
	"attune/internal/policy"
	"attune/internal/scanner"
	"attune/internal/tagio"
	"attune/internal/xattr"
)

// Listener receives library events. All callbacks run on the library's
// actor goroutine; implementations must not call back into the library.
type Listener interface {
	CacheLoaded(count int)
	ItemsUpdated(items []media.Item)
	ScanProgress(root string, dirsVisited, filesFound int, elapsed time.Duration)
	RootUnreachable(root string)
	SessionDone(sessionID string, elapsed time.Duration)
}

// NopListener discards all events.
type NopListener struct{}

func (NopListener) CacheLoaded(int)                                 {}
func (NopListener) ItemsUpdated([]media.Item)                       {}
func (NopListener) ScanProgress(string, int, int, time.Duration)    {}
func (NopListener) RootUnreachable(string)                          {}
func (NopListener) SessionDone(string, time.Duration)               {}

// Options configures a library.
type Options struct {
	Cache          *cache.Cache
	Policies       *policy.Store
	Attrs          *xattr.Store
	Listener       Listener
	FollowSymlinks bool

	// Workers caps how many roots are scanned in parallel during a
	// session; zero or negative means one worker per root.
	Workers int

	Logger *slog.Logger
}

// Library is the single-threaded owner of cache mutations. Scanner
// batches arrive as asynchronous messages and are applied one at a
// time, so the cache needs no locking at this boundary.
type Library struct {
	cache    *cache.Cache
	policies *policy.Store
	attrs    *xattr.Store
	listener Listener
	follow   bool
	workers  int
	logger   *slog.Logger

	msgs chan func()
	done chan struct{}
}

// New creates the library actor and starts its message loop.
func New(opts Options) *Library {
	listener := opts.Listener
	if listener == nil {
		listener = NopListener{}
	}
	attrs := opts.Attrs
	if attrs == nil {
		attrs = xattr.NewStore()
	}
	l := &Library{
		cache:    opts.Cache,
		policies: opts.Policies,
		attrs:    attrs,
		listener: listener,
		follow:   opts.FollowSymlinks,
		workers:  opts.Workers,
		logger:   logging.NewComponentLogger(opts.Logger, "library"),
		msgs:     make(chan func(), 256),
		done:     make(chan struct{}),
	}
	go l.loop()
	return l
}

func (l *Library) loop() {
	defer close(l.done)
	for msg := range l.msgs {
		msg()
	}
}

// Close drains the message loop. Callers must stop all scanners first.
func (l *Library) Close() {
	close(l.msgs)
	<-l.done
}

// post delivers a message to the actor; it never blocks the caller
// beyond channel capacity.
func (l *Library) post(msg func()) {
	select {
	case l.msgs <- msg:
	case <-l.done:
	}
}

// Load pulls the persisted cache into memory and announces the count.
func (l *Library) Load(ctx context.Context) {
	l.cache.Load(ctx)
	l.listener.CacheLoaded(l.cache.Len())
}

// Rescan runs one full scan session over every watched root and blocks
// until it finishes. The cache is reconciled against the watched set
// first, unreachable roots are marked missing without spawning a
// scanner, and the cache is persisted exactly once, after the last
// scanner reports completion. At most Workers roots are scanned at a
// time; each completion starts the next pending root.
func (l *Library) Rescan(ctx context.Context) (string, error) {
	sessionID := uuid.NewString()
	began := time.Now()
	roots := l.policies.Roots()
	l.logger.Info("scan session started",
		logging.String(logging.FieldSession, sessionID),
		logging.Int("roots", len(roots)))

	l.cache.Reconcile(roots)

	var reachable []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			l.cache.MarkRootUnreachable(root)
			l.listener.RootUnreachable(root)
			continue
		}
		reachable = append(reachable, root)
	}

	snapshot := make(map[string]media.Item, l.cache.Len())
	for _, it := range l.cache.Snapshot() {
		snapshot[it.Path] = it
	}

	session := &session{
		lib:         l,
		id:          sessionID,
		began:       began,
		outstanding: len(reachable),
		finished:    make(chan struct{}),
	}
	if session.outstanding == 0 {
		session.finish()
	}

	// Register every scanner before starting any, so no batch arrives
	// while the set is still being assembled.
	scanners := make([]*scanner.Scanner, 0, len(reachable))
	for _, root := range reachable {
		scanners = append(scanners, scanner.New(scanner.Options{
			Root:           root,
			Snapshot:       snapshot,
			Sink:           &rootSink{session: session, root: root},
			Tags:           scanner.TagReaderFunc(tagio.ReadTags),
			Attrs:          l.attrs,
			FollowSymlinks: l.follow,
			Logger:         l.logger,
		}))
	}
	running := len(scanners)
	if l.workers > 0 && l.workers < running {
		running = l.workers
	}
	session.pending = scanners[running:]
	for _, s := range scanners[:running] {
		s.Start()
	}

	select {
	case <-session.finished:
	case <-ctx.Done():
		for _, s := range scanners {
			s.Stop()
		}
		for _, s := range scanners {
			s.Close()
		}
		return sessionID, ctx.Err()
	}
	for _, s := range scanners {
		s.Close()
	}
	return sessionID, nil
}

// Snapshot exposes a read-only copy of the cached items.
func (l *Library) Snapshot() []media.Item {
	return l.cache.Snapshot()
}

// session tracks one scan run across its scanners. pending holds the
// scanners held back by the worker cap; the actor starts them one at a
// time as completions arrive.
type session struct {
	lib         *Library
	id          string
	began       time.Time
	outstanding int
	pending     []*scanner.Scanner
	finished    chan struct{}
}

// finish persists the cache once and signals completion. Runs on the
// actor goroutine (or synchronously when there was nothing to scan).
func (s *session) finish() {
	if err := s.lib.cache.Save(context.Background()); err != nil {
		s.lib.logger.Error("cache save failed",
			logging.String(logging.FieldSession, s.id), logging.Error(err))
	}
	elapsed := time.Since(s.began)
	s.lib.logger.Info("scan session done",
		logging.String(logging.FieldSession, s.id),
		logging.Duration("elapsed", elapsed))
	s.lib.listener.SessionDone(s.id, elapsed)
	close(s.finished)
}

// rootSink adapts scanner events into actor messages.
type rootSink struct {
	session *session
	root    string
}

func (r *rootSink) ItemBatch(items []media.Item) {
	lib := r.session.lib
	lib.post(func() {
		lib.cache.ApplyBatch(items)
		lib.listener.ItemsUpdated(items)
	})
}

func (r *rootSink) Progress(dirsVisited, filesFound int, elapsed time.Duration) {
	lib := r.session.lib
	lib.post(func() {
		lib.listener.ScanProgress(r.root, dirsVisited, filesFound, elapsed)
	})
}

func (r *rootSink) ScanComplete(time.Duration) {
	s := r.session
	s.lib.post(func() {
		s.outstanding--
		if len(s.pending) > 0 {
			next := s.pending[0]
			s.pending = s.pending[1:]
			next.Start()
		}
		if s.outstanding == 0 {
			s.finish()
		}
	})
}
