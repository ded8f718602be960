package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sbomcore/internal/blob"
	"sbomcore/internal/infra/persistence/memory"
	"sbomcore/pkg/model"
)

const (
	archiveContentType = "application/json"
	documentKeyPrefix  = "documents/"
	stagingPrefix      = "staging/"
)

// ArchiveOption configures ExportDocument and ImportDocument.
type ArchiveOption func(*archiveConfig)

type archiveConfig struct {
	logger  zerolog.Logger
	metrics MetricsRecorder
	tracer  Tracer
}

// WithArchiveLogger sets the logger for archive events.
func WithArchiveLogger(logger zerolog.Logger) ArchiveOption {
	return func(c *archiveConfig) { c.logger = logger }
}

// WithArchiveMetrics sets the recorder observing export and import.
func WithArchiveMetrics(metrics MetricsRecorder) ArchiveOption {
	return func(c *archiveConfig) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// WithArchiveTracer sets the tracer spanning export and import.
func WithArchiveTracer(tracer Tracer) ArchiveOption {
	return func(c *archiveConfig) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

func newArchiveConfig(opts []ArchiveOption) archiveConfig {
	cfg := archiveConfig{logger: zerolog.Nop(), metrics: noopMetrics{}, tracer: noopTracer{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// DocumentKey returns the default blob key for a document snapshot.
func DocumentKey(documentURI string) string {
	var b strings.Builder
	for _, r := range documentURI {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return documentKeyPrefix + b.String() + ".json"
}

// SnapshotDocument reads every element of a document from any store.
func SnapshotDocument(ctx context.Context, store model.Store, documentURI string) (model.DocumentSnapshot, error) {
	if store == nil {
		return model.DocumentSnapshot{}, model.StoreUnavailable(errNilStore)
	}
	infos, err := store.Elements(ctx, documentURI)
	if err != nil {
		return model.DocumentSnapshot{}, model.StoreUnavailable(err)
	}
	snap := model.DocumentSnapshot{DocumentURI: documentURI, Elements: make([]model.ElementSnapshot, 0, len(infos))}
	for _, info := range infos {
		names, err := store.PropertyNames(ctx, documentURI, info.ID)
		if err != nil {
			return model.DocumentSnapshot{}, model.StoreUnavailable(err)
		}
		props := make(model.PropertyMap, len(names))
		for _, name := range names {
			v, ok, err := store.GetProperty(ctx, documentURI, info.ID, name)
			if err != nil {
				return model.DocumentSnapshot{}, model.StoreUnavailable(err)
			}
			if ok {
				props[name] = v
			}
		}
		snap.Elements = append(snap.Elements, model.ElementSnapshot{ID: info.ID, Type: info.Type, Properties: props})
	}
	return snap, nil
}

// ExportDocument writes a JSON snapshot of the document to blobStore under
// key (DocumentKey when empty), replacing any previous snapshot. The new
// snapshot is first written under a staging key; the previous snapshot is
// only removed once that write succeeded. If the final write fails the
// staging copy is kept and named in the error.
func ExportDocument(ctx context.Context, store model.Store, documentURI string, blobStore blob.Store, key string, opts ...ArchiveOption) (blob.Info, error) {
	cfg := newArchiveConfig(opts)
	if key == "" {
		key = DocumentKey(documentURI)
	}
	var info blob.Info
	err := observe(ctx, cfg.metrics, cfg.tracer, OpExport, func(ctx context.Context) error {
		snap, err := SnapshotDocument(ctx, store, documentURI)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		putOpts := blob.PutOptions{
			ContentType: archiveContentType,
			Metadata:    map[string]string{"document-uri": documentURI},
		}
		staging := stagingPrefix + uuid.NewString() + "/" + key
		if _, err := blobStore.Put(ctx, staging, bytes.NewReader(payload), putOpts); err != nil {
			return fmt.Errorf("stage %s: %w", key, err)
		}
		if _, err := blobStore.Delete(ctx, key); err != nil {
			_, _ = blobStore.Delete(ctx, staging)
			return fmt.Errorf("replace %s: %w", key, err)
		}
		info, err = blobStore.Put(ctx, key, bytes.NewReader(payload), putOpts)
		if err != nil {
			return fmt.Errorf("write %s (new snapshot kept at %s): %w", key, staging, err)
		}
		if _, err := blobStore.Delete(ctx, staging); err != nil {
			cfg.logger.Warn().Err(err).Str("key", staging).Msg("staging snapshot not removed")
		}
		cfg.logger.Info().Str("document", documentURI).Str("key", key).Int("elements", len(snap.Elements)).Msg("exported document")
		return nil
	})
	return info, err
}

// ListSnapshots returns the archived document snapshots stored under the
// default key prefix.
func ListSnapshots(ctx context.Context, blobStore blob.Store) ([]blob.Info, error) {
	infos, err := blobStore.List(ctx, documentKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return infos, nil
}

// ReadSnapshot loads and decodes a snapshot from blobStore.
func ReadSnapshot(ctx context.Context, blobStore blob.Store, key string) (model.DocumentSnapshot, error) {
	_, rc, err := blobStore.Get(ctx, key)
	if err != nil {
		return model.DocumentSnapshot{}, fmt.Errorf("read %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return model.DocumentSnapshot{}, fmt.Errorf("read %s: %w", key, err)
	}
	var snap model.DocumentSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.DocumentSnapshot{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return snap, nil
}

var errEmptySnapshotURI = errors.New("snapshot has no document uri")

// ImportDocument loads the snapshot stored under key and copies every
// element into (store, documentURI) through copier, so ids are remapped on
// collision and singletons land on the destination's own NONE and
// NOASSERTION. A nil copier uses a fresh CopyManager. It returns the
// imported top-level elements in snapshot order.
func ImportDocument(ctx context.Context, blobStore blob.Store, key string, store model.Store, documentURI string, copier *CopyManager, opts ...ArchiveOption) ([]Element, error) {
	cfg := newArchiveConfig(opts)
	if copier == nil {
		copier = NewCopyManager(WithCopyLogger(cfg.logger))
	}
	var imported []Element
	err := observe(ctx, cfg.metrics, cfg.tracer, OpImport, func(ctx context.Context) error {
		snap, err := ReadSnapshot(ctx, blobStore, key)
		if err != nil {
			return err
		}
		if snap.DocumentURI == "" {
			return errEmptySnapshotURI
		}
		staging := memory.NewStore()
		if err := staging.ImportDocument(snap); err != nil {
			return fmt.Errorf("stage %s: %w", key, err)
		}
		for _, el := range snap.Elements {
			src, err := Resolve(ctx, staging, snap.DocumentURI, model.ElementInfo{ID: el.ID, Type: el.Type})
			if err != nil {
				return err
			}
			dst, err := copier.Copy(ctx, src, store, documentURI)
			if err != nil {
				return err
			}
			imported = append(imported, dst)
		}
		cfg.logger.Info().Str("document", documentURI).Str("key", key).Int("elements", len(imported)).Msg("imported document")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return imported, nil
}
