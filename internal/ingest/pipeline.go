package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	fileutil "britearchive/internal/file"
	"britearchive/internal/ledger"
	"britearchive/internal/observation"
	"britearchive/internal/reader"
	"britearchive/internal/storage"
)

const (
	productDecorrelated   = "decorrelated"
	productUndecorrelated = "un-decorrelated"
	productTypeScience    = "science"
	productTypeInfo       = "info"
	contentTypeText       = "text/plain"
)

// Recorder persists Observation metadata.
type Recorder interface {
	UpsertObservation(ctx context.Context, o ledger.Observation) error
	UpsertArtifact(ctx context.Context, a ledger.Artifact) error
}

// Ingester stores and records one archivable file.
type Ingester interface {
	Ingest(ctx context.Context, rec observation.FileRecord) error
}

// Pipeline is the per-file store + metadata ingestion.
type Pipeline struct {
	store      storage.Client
	recorder   Recorder
	collection string
	scheme     string
	// remote files already live in the store and are read from there
	remote bool
	now    func() time.Time
}

var _ Ingester = (*Pipeline)(nil)

func NewPipeline(store storage.Client, recorder Recorder, collection, scheme string, remote bool) *Pipeline {
	return &Pipeline{
		store:      store,
		recorder:   recorder,
		collection: collection,
		scheme:     scheme,
		remote:     remote,
		now:        time.Now,
	}
}

// URI names a file inside the archive collection.
func (p *Pipeline) URI(fileName string) string {
	return fmt.Sprintf("%s:%s/%s", p.scheme, p.collection, fileName)
}

func (p *Pipeline) Ingest(ctx context.Context, rec observation.FileRecord) error {
	if !rec.Archived() {
		return fmt.Errorf("%s is not archived", rec.Name)
	}
	content, err := p.readContent(ctx, rec.Path, rec.Name, rec.Extension)
	if err != nil {
		return fmt.Errorf("read %s: %w", rec.Name, err)
	}

	info, err := p.storeFile(ctx, rec)
	if err != nil {
		return err
	}

	obs := ledger.Observation{ObsID: rec.GroupID, Collection: p.collection, UpdatedAt: p.now()}
	if meta := p.observationMetadata(ctx, rec, content); meta != nil {
		obs.TargetName = targetName(meta["StarInFo"])
		obs.Telescope = meta["SatfulID"]
	}
	if err := p.recorder.UpsertObservation(ctx, obs); err != nil {
		return err //nolint:wrapcheck
	}

	art := ledger.Artifact{
		URI:         p.URI(rec.Name),
		ObsID:       rec.GroupID,
		ProductID:   productID(rec.Extension),
		ProductType: productType(rec.Extension),
		ContentType: contentTypeText,
		Size:        info.Size,
		MD5:         info.MD5,
		UpdatedAt:   p.now(),
	}
	if start, end, ok := content.TimeRange(); ok {
		art.TimeStart, art.TimeEnd = &start, &end
	}
	if err := p.recorder.UpsertArtifact(ctx, art); err != nil {
		return err //nolint:wrapcheck
	}
	log.Info().Str("obs_id", rec.GroupID).Str("uri", art.URI).Msg("ingested")
	return nil
}

// storeFile puts a local file into the archive and checks the stored checksum.
func (p *Pipeline) storeFile(ctx context.Context, rec observation.FileRecord) (*storage.FileInfo, error) {
	if p.remote {
		info, err := p.store.Info(ctx, rec.Name)
		if err != nil {
			return nil, fmt.Errorf("archive info %s: %w", rec.Name, err)
		}
		return info, nil
	}
	sum, _, err := fileutil.MD5(rec.Path)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if err := p.store.Put(ctx, rec.Path, rec.Name); err != nil {
		return nil, fmt.Errorf("store %s: %w", rec.Name, err)
	}
	info, err := p.store.Info(ctx, rec.Name)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", rec.Name, err)
	}
	if info.MD5 != sum {
		return nil, fmt.Errorf("verify %s: stored md5 %s, local %s", rec.Name, info.MD5, sum)
	}
	return info, nil
}

func (p *Pipeline) readContent(ctx context.Context, path, name, ext string) (*reader.Content, error) {
	if !reader.HasData(ext) {
		return reader.Read(strings.NewReader(""), ext) //nolint:wrapcheck
	}
	var r io.Reader
	if p.remote {
		var buf bytes.Buffer
		if err := p.store.Get(ctx, name, &buf); err != nil {
			return nil, err //nolint:wrapcheck
		}
		r = &buf
	} else {
		f, err := os.Open(path) //nolint:gosec // path comes from the work list
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	return reader.Read(r, ext) //nolint:wrapcheck
}

// observationMetadata returns the .orig keywords for the group. Decorrelated files take them from
// their sibling .orig file; a missing sibling only costs the target fields.
func (p *Pipeline) observationMetadata(ctx context.Context, rec observation.FileRecord, content *reader.Content) map[string]string {
	switch rec.Extension {
	case ".orig":
		return content.Metadata
	case ".ndatdb":
		name := rec.GroupID + ".orig"
		path := filepath.Join(filepath.Dir(rec.Path), name)
		orig, err := p.readContent(ctx, path, name, ".orig")
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Warn().Err(err).Str("obs_id", rec.GroupID).Msg("read sibling .orig failed")
			}
			return nil
		}
		return orig.Metadata
	default:
		return nil
	}
}

func targetName(starInfo string) string {
	name, _, _ := strings.Cut(starInfo, ",")
	return strings.TrimSpace(name)
}

func productID(ext string) string {
	switch ext {
	case ".ndatdb", ".avedb":
		return productDecorrelated
	default:
		return productUndecorrelated
	}
}

// rlogdb and freq0db artifacts are informational.
func productType(ext string) string {
	if reader.HasData(ext) {
		return productTypeScience
	}
	return productTypeInfo
}
