// Package source finds the files of a run and keeps the work list honest: only members of
// complete Observations are handed to ingestion, sentinels are retired, and every file that
// leaves the list gets exactly one outcome on the reporter.
package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	fileutil "britearchive/internal/file"
	"britearchive/internal/observation"
	"britearchive/internal/report"
	"britearchive/internal/storage"
)

// Mover relocates a processed file into a destination directory.
type Mover interface {
	Move(src, destDir string) error
}

// FileMover moves files on the local filesystem.
type FileMover struct{}

func (FileMover) Move(src, destDir string) error {
	_, err := fileutil.Move(src, destDir)
	return err //nolint:wrapcheck
}

// Options configure a Source.
type Options struct {
	Roots                   []string
	Manifest                observation.Manifest
	CleanupFilesWhenStoring bool
	SuccessDestination      string
	FailureDestination      string
	StoreModifiedFilesOnly  bool
	// Remote entries already live in the archive: they are never moved and never skipped.
	Remote bool
}

// Source is the data source for one run. It owns the work list.
type Source struct {
	opts     Options
	lister   Lister
	store    storage.Client
	reporter *report.Reporter
	mover    Mover
	now      func() time.Time
	work     []observation.FileRecord
	// root each listed path came from
	roots    map[string]string
}

func New(opts Options, lister Lister, store storage.Client, reporter *report.Reporter) *Source {
	if opts.Remote {
		opts.CleanupFilesWhenStoring = false
	}
	return &Source{
		opts:     opts,
		lister:   lister,
		store:    store,
		reporter: reporter,
		mover:    FileMover{},
		now:      time.Now,
		roots:    make(map[string]string),
	}
}

// UseMover replaces the file mover. Intended for test setup.
func (s *Source) UseMover(m Mover) { s.mover = m }

// UseClock replaces the clock used for success timestamps.
func (s *Source) UseClock(now func() time.Time) { s.now = now }

// Work returns a copy of the current work list.
func (s *Source) Work() []observation.FileRecord {
	out := make([]observation.FileRecord, len(s.work))
	copy(out, s.work)
	return out
}

// GetWork lists every root and builds the work list. Every entry whose extension belongs to the
// manifest counts as one input; entries the default filter turns away are reported as skipped.
func (s *Source) GetWork(ctx context.Context) error {
	s.work = s.work[:0]
	s.roots = make(map[string]string)
	for _, root := range s.opts.Roots {
		entries, err := s.lister.List(ctx, root)
		if err != nil {
			return fmt.Errorf("list %s: %w", root, err)
		}
		for _, e := range entries {
			if e.IsDir {
				continue
			}
			rec := observation.NewFileRecord(e.Path, e.ModTime)
			if !s.opts.Manifest.Admits(rec.Extension) {
				continue
			}
			s.roots[rec.Path] = root
			s.reporter.AddInputs(1)
			admit, err := s.DefaultFilter(ctx, rec)
			if err != nil {
				return err
			}
			if !admit {
				if err := s.skip(rec); err != nil {
					return err
				}
				continue
			}
			s.work = append(s.work, rec)
		}
	}
	log.Info().Int("work", len(s.work)).Strs("roots", s.opts.Roots).Msg("work listed")
	return nil
}

// DefaultFilter decides whether a listed file enters the work list. Sentinels are never stored, so
// their archive presence is not checked.
func (s *Source) DefaultFilter(ctx context.Context, rec observation.FileRecord) (bool, error) {
	if !rec.Archived() || s.opts.Remote || !s.opts.StoreModifiedFilesOnly || s.store == nil {
		return true, nil
	}
	stored, err := s.store.Info(ctx, rec.Name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("archive info %s: %w", rec.Name, err)
	}
	sum, _, err := fileutil.MD5(rec.Path)
	if err != nil {
		return false, err //nolint:wrapcheck
	}
	return sum != stored.MD5, nil
}

func (s *Source) skip(rec observation.FileRecord) error {
	log.Info().Str("file", rec.Path).Msg("unchanged in archive, skipping")
	if s.opts.CleanupFilesWhenStoring {
		if err := s.mover.Move(rec.Path, s.destination(rec, s.opts.SuccessDestination)); err != nil {
			return fmt.Errorf("move %s: %w", rec.Path, err)
		}
	}
	s.reporter.CaptureSkipped(rec.GroupID, rec.Path, report.ReasonUnchanged)
	return nil
}

// GroupWorkByObs removes every member of an incomplete Observation from the work list, reporting
// each one as a failure.
func (s *Source) GroupWorkByObs() error {
	kept, rejected := observation.RejectIncomplete(s.work, s.opts.Manifest)
	for _, rec := range rejected {
		log.Warn().Str("file", rec.Path).Str("obs_id", rec.GroupID).
			Msg("not all the file types are present for observation")
		if s.opts.CleanupFilesWhenStoring {
			if err := s.mover.Move(rec.Path, s.destination(rec, s.opts.FailureDestination)); err != nil {
				return fmt.Errorf("move %s: %w", rec.Path, err)
			}
		}
		s.reporter.CaptureFailure(rec.GroupID, rec.Path, report.ReasonManifestErrors, "")
	}
	s.work = kept
	return nil
}

// RemoveUnarchived retires sentinel files: they are reported as successes and never reach the
// ingestion pipeline. Must run after GroupWorkByObs.
func (s *Source) RemoveUnarchived() error {
	archivable, sentinels := observation.SplitSentinels(s.work)
	for _, rec := range sentinels {
		if s.opts.CleanupFilesWhenStoring {
			if err := s.mover.Move(rec.Path, s.destination(rec, s.opts.SuccessDestination)); err != nil {
				return fmt.Errorf("move %s: %w", rec.Path, err)
			}
		}
		s.reporter.CaptureSuccess(rec.GroupID, rec.Path, s.now())
	}
	s.work = archivable
	return nil
}

// CleanUp moves a processed file to its destination. Archivable files go to success only when the
// ingestion succeeded and the archive holds the file; sentinels always go to success.
func (s *Source) CleanUp(ctx context.Context, rec observation.FileRecord, ingested bool) error {
	if !s.opts.CleanupFilesWhenStoring {
		return nil
	}
	dest := s.opts.SuccessDestination
	if rec.Archived() {
		if !ingested || !s.inArchive(ctx, rec) {
			dest = s.opts.FailureDestination
		}
	}
	dest = s.destination(rec, dest)
	log.Debug().Str("file", rec.Path).Str("dest", dest).Msg("clean up")
	if err := s.mover.Move(rec.Path, dest); err != nil {
		return fmt.Errorf("move %s: %w", rec.Path, err)
	}
	return nil
}

// destination keeps the subdirectory of rec below its listing root, so files with the same name
// from different subdirectories do not collide under base.
func (s *Source) destination(rec observation.FileRecord, base string) string {
	root, ok := s.roots[rec.Path]
	if !ok {
		return base
	}
	rel, err := filepath.Rel(root, filepath.Dir(rec.Path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return base
	}
	return filepath.Join(base, rel)
}

func (s *Source) inArchive(ctx context.Context, rec observation.FileRecord) bool {
	if s.store == nil {
		return true
	}
	_, err := s.store.Info(ctx, rec.Name)
	return err == nil
}
