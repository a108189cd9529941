// Package metaedit applies metadata edits to files on disk: partial
// field edits, cover art, and the per-root source synchronization that
// reconciles embedded tags with filesystem attributes.
package metaedit

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"attune/internal/logging"
	"attune/internal/media"
	"attune/internal/policy"
	"attune/internal/synctags"
	"attune/internal/tagio"
)

// coverWorkers bounds concurrent cover rewrites; covers touch whole
// files, so more parallelism than this just thrashes the disk.
const coverWorkers = 4

// Codec reads and writes embedded metadata. The default implementation
// dispatches on container format; tests substitute an in-memory fake.
type Codec interface {
	ReadTags(path string) (media.TagData, error)
	WriteTags(path string, td media.TagData) error
	WriteCover(path string, cover media.CoverBlob) error
	RemoveCover(path string) error
}

// AttrStore is the attribute side of a sync. Writes report whether the
// volume supports attributes at all.
type AttrStore interface {
	ReadTags(path string) (media.TagData, bool)
	WriteTags(path string, td media.TagData) (bool, error)
}

// Events receives edit and sync progress. Conflicts are reported, never
// resolved; resolution happens through a later explicit edit.
type Events interface {
	SyncProgress(current, total int)
	SyncConflict(path string, index, total int)
	SyncDone(summary Summary)
	WriteFailure(path string, err error)
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) SyncProgress(int, int)          {}
func (NopEvents) SyncConflict(string, int, int)  {}
func (NopEvents) SyncDone(Summary)               {}
func (NopEvents) WriteFailure(string, error)     {}

// Summary totals one sync run.
type Summary struct {
	Files     int
	Written   int
	Conflicts int
	Failures  int
}

// Options configures an editor.
type Options struct {
	Codec    Codec
	Attrs    AttrStore
	Policies *policy.Store
	Events   Events
	Logger   *slog.Logger
}

// Editor performs metadata writes. It holds no state between calls.
type Editor struct {
	codec    Codec
	attrs    AttrStore
	policies *policy.Store
	events   Events
	logger   *slog.Logger
}

// New creates an editor. A nil codec uses the on-disk format dispatch.
func New(opts Options) *Editor {
	codec := opts.Codec
	if codec == nil {
		codec = fileCodec{}
	}
	events := opts.Events
	if events == nil {
		events = NopEvents{}
	}
	return &Editor{
		codec:    codec,
		attrs:    opts.Attrs,
		policies: opts.Policies,
		events:   events,
		logger:   logging.NewComponentLogger(opts.Logger, "metaedit"),
	}
}

// SaveTags applies a partial edit to every file: the current tags are
// read, the set fields overwritten, and the result written back. After
// a successful write the file is re-read and the resulting view is
// mirrored to attributes, so both sources agree on what was saved.
// Per-file failures are reported and the remaining files still proceed.
func (e *Editor) SaveTags(files []string, fields media.FieldSet) error {
	if fields.IsEmpty() {
		return nil
	}
	var errs []error
	for _, path := range files {
		if err := e.saveOne(path, fields); err != nil {
			e.events.WriteFailure(path, err)
			e.logger.Warn("tag write failed",
				logging.String(logging.FieldPath, path), logging.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Editor) saveOne(path string, fields media.FieldSet) error {
	td, err := e.codec.ReadTags(path)
	if err != nil {
		return fmt.Errorf("read tags: %w", err)
	}
	fields.ApplyTo(&td)
	if err := e.codec.WriteTags(path, td); err != nil {
		return fmt.Errorf("write tags: %w", err)
	}

	// Mirror what actually landed in the file, not what was requested.
	saved, err := e.codec.ReadTags(path)
	if err != nil {
		return fmt.Errorf("verify tags: %w", err)
	}
	if e.attrs != nil {
		if _, err := e.attrs.WriteTags(path, saved); err != nil {
			return fmt.Errorf("mirror attributes: %w", err)
		}
	}
	return nil
}

// ApplyCover embeds the same image into every file concurrently.
func (e *Editor) ApplyCover(files []string, cover media.CoverBlob) error {
	return e.eachCover(files, func(path string) error {
		return e.codec.WriteCover(path, cover)
	})
}

// ClearCover strips embedded art from every file concurrently.
func (e *Editor) ClearCover(files []string) error {
	return e.eachCover(files, e.codec.RemoveCover)
}

func (e *Editor) eachCover(files []string, apply func(path string) error) error {
	var g errgroup.Group
	g.SetLimit(coverWorkers)
	for _, path := range files {
		path := path
		g.Go(func() error {
			if err := apply(path); err != nil {
				e.events.WriteFailure(path, err)
				e.logger.Warn("cover write failed",
					logging.String(logging.FieldPath, path), logging.Error(err))
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// FilesInDir lists the audio files directly inside dir, in name order.
// Cover operations on a directory fan out over this list.
func FilesInDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == "" || entry.Name()[0] == '.' {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if tagio.Allowed(path) {
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Sync reconciles both metadata sources of every file under its root's
// policy. Overwrite and fill-empty roots merge directionally and write
// without interaction; ask roots use the field-level smart merge and
// report conflicting files instead of writing them.
func (e *Editor) Sync(files []string) (Summary, error) {
	return e.sync(files, nil)
}

// SyncWithMode reconciles with the given mode for every file,
// overriding the stored per-root policy.
func (e *Editor) SyncWithMode(files []string, mode policy.ConflictMode) (Summary, error) {
	return e.sync(files, &mode)
}

func (e *Editor) sync(files []string, override *policy.ConflictMode) (Summary, error) {
	summary := Summary{Files: len(files)}
	var errs []error

	for i, path := range files {
		e.events.SyncProgress(i+1, len(files))

		p := e.policies.Lookup(path)
		if override != nil {
			p.Mode = *override
			if p.Secondary == policy.SourceNone {
				p.Secondary = policy.SourceAttributes
			}
		}
		if p.Secondary == policy.SourceNone {
			continue // single-source root, nothing to reconcile
		}

		primary, secondary, ok := e.readViews(path, p)
		if !ok {
			continue
		}

		var merged media.TagData
		switch p.Mode {
		case policy.ModeAsk:
			res := synctags.SmartMerge(primary, secondary)
			if res.Conflict {
				e.events.SyncConflict(path, i+1, len(files))
				summary.Conflicts++
				continue
			}
			if !res.Changed {
				continue
			}
			merged = res.Merged
		default:
			merged = synctags.Directional(primary, secondary, p.Mode)
			if merged == primary && merged == secondary {
				continue
			}
		}

		if err := e.writeBoth(path, merged); err != nil {
			e.events.WriteFailure(path, err)
			summary.Failures++
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		summary.Written++
	}

	e.events.SyncDone(summary)
	e.logger.Info("sync done",
		logging.Int("files", summary.Files),
		logging.Int("written", summary.Written),
		logging.Int("conflicts", summary.Conflicts),
		logging.Int("failures", summary.Failures))
	return summary, errors.Join(errs...)
}

// readViews loads the primary and secondary source views per policy.
func (e *Editor) readViews(path string, p policy.SourcePolicy) (primary, secondary media.TagData, ok bool) {
	read := func(source policy.Source) (media.TagData, bool) {
		switch source {
		case policy.SourceTags:
			td, err := e.codec.ReadTags(path)
			if err != nil {
				e.logger.Debug("tag read failed during sync",
					logging.String(logging.FieldPath, path), logging.Error(err))
				return media.TagData{}, false
			}
			return td, true
		case policy.SourceAttributes:
			return e.attrs.ReadTags(path)
		default:
			return media.TagData{}, false
		}
	}
	primary, pok := read(p.Primary)
	secondary, sok := read(p.Secondary)
	return primary, secondary, pok && sok
}

// writeBoth commits the merged view to the file and mirrors it to
// attributes. The attribute write is skipped silently on volumes that
// do not support them.
func (e *Editor) writeBoth(path string, merged media.TagData) error {
	if err := e.codec.WriteTags(path, merged); err != nil {
		return fmt.Errorf("write tags: %w", err)
	}
	if e.attrs != nil {
		if _, err := e.attrs.WriteTags(path, merged); err != nil {
			return fmt.Errorf("write attributes: %w", err)
		}
	}
	return nil
}

// fileCodec dispatches to the on-disk container codecs.
type fileCodec struct{}

func (fileCodec) ReadTags(path string) (media.TagData, error) { return tagio.ReadTags(path) }

func (fileCodec) WriteTags(path string, td media.TagData) error { return tagio.WriteTags(path, td) }

func (fileCodec) WriteCover(path string, cover media.CoverBlob) error {
	return tagio.WriteCover(path, cover)
}

func (fileCodec) RemoveCover(path string) error { return tagio.RemoveCover(path) }
