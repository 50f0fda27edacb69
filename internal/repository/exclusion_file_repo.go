package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"strategy-lab/internal/codec"
	"strategy-lab/internal/dto"
	"strategy-lab/pkg/logger"

	"github.com/vmihailenco/msgpack/v5"
)

type snapshotDocument struct {
	Version    int             `json:"version" msgpack:"version"`
	Structure  []string        `json:"structure" msgpack:"structure"`
	Strategies [][]interface{} `json:"strategies" msgpack:"strategies"`
}

type exclusionFileRepository struct {
	path    string
	msgpack bool
	records recordCodec
	log     *logger.Logger
}

// NewExclusionFileRepository stores snapshots in a single document at path.
// A .msgpack or .mpk extension selects msgpack, anything else JSON.
func NewExclusionFileRepository(path string, keys codec.StrategyKeyCodec, log *logger.Logger) ExclusionRepository {
	ext := strings.ToLower(filepath.Ext(path))
	return &exclusionFileRepository{
		path:    path,
		msgpack: ext == ".msgpack" || ext == ".mpk",
		records: recordCodec{keys: keys, log: log},
		log:     log,
	}
}

func (r *exclusionFileRepository) LoadExclusionSnapshot(ctx context.Context) (*dto.ExclusionSnapshot, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		r.log.DebugContext(ctx, "No exclusion snapshot found, starting empty", logger.StringField("path", r.path))
		return dto.NewExclusionSnapshot(), nil
	}
	if err != nil {
		return nil, &dto.PersistenceError{Op: "load", Path: r.path, Err: err}
	}

	doc, err := r.decode(data)
	if err != nil {
		return nil, &dto.PersistenceError{Op: "load", Path: r.path, Err: err}
	}

	records := make([]dto.ExclusionRecord, 0, len(doc.Strategies))
	for i, values := range doc.Strategies {
		rec, err := recordFromValues(values)
		if err != nil {
			r.log.WarnContext(ctx, "Skipping malformed exclusion record",
				logger.IntField("index", i),
				logger.ErrorField(err),
			)
			continue
		}
		records = append(records, rec)
	}

	snap := r.records.Snapshot(records)
	r.log.InfoContext(ctx, "Exclusion snapshot loaded",
		logger.StringField("path", r.path),
		logger.IntField("records", len(records)),
		logger.IntField("permanent", len(snap.Permanent)),
		logger.IntField("dropouts", len(snap.DropoutCounts)),
	)
	return snap, nil
}

func (r *exclusionFileRepository) SaveExclusionSnapshot(ctx context.Context, snap *dto.ExclusionSnapshot) error {
	records := r.records.Records(snap)
	doc := snapshotDocument{
		Version:    snapshotVersion,
		Structure:  dto.RecordStructure,
		Strategies: make([][]interface{}, 0, len(records)),
	}
	for _, rec := range records {
		doc.Strategies = append(doc.Strategies, rec.Values())
	}

	data, err := r.encode(doc)
	if err != nil {
		return &dto.PersistenceError{Op: "save", Path: r.path, Err: err}
	}
	if err := writeFileAtomic(r.path, data); err != nil {
		return &dto.PersistenceError{Op: "save", Path: r.path, Err: err}
	}

	r.log.InfoContext(ctx, "Exclusion snapshot saved",
		logger.StringField("path", r.path),
		logger.IntField("records", len(records)),
	)
	return nil
}

func (r *exclusionFileRepository) decode(data []byte) (*snapshotDocument, error) {
	var doc snapshotDocument
	if r.msgpack {
		if err := msgpack.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode msgpack snapshot: %w", err)
		}
		return &doc, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json snapshot: %w", err)
	}
	for _, values := range doc.Strategies {
		for i, v := range values {
			if n, ok := v.(json.Number); ok {
				values[i] = n.String()
			}
		}
	}
	return &doc, nil
}

func (r *exclusionFileRepository) encode(doc snapshotDocument) ([]byte, error) {
	if r.msgpack {
		return msgpack.Marshal(doc)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// writeFileAtomic writes to a sibling temp file and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
