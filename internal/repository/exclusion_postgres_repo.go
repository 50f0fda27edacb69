package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"strategy-lab/internal/codec"
	"strategy-lab/internal/dto"
	"strategy-lab/internal/model"
	"strategy-lab/pkg/logger"
	"strategy-lab/pkg/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const insertBatchSize = 500

type exclusionPostgresRepository struct {
	db      *gorm.DB
	uow     UnitOfWork
	records recordCodec
	log     *logger.Logger
}

// NewExclusionPostgresRepository stores one row per exclusion record.
func NewExclusionPostgresRepository(db *gorm.DB, uow UnitOfWork, keys codec.StrategyKeyCodec, log *logger.Logger) ExclusionRepository {
	return &exclusionPostgresRepository{
		db:      db,
		uow:     uow,
		records: recordCodec{keys: keys, log: log},
		log:     log,
	}
}

func (r *exclusionPostgresRepository) LoadExclusionSnapshot(ctx context.Context) (*dto.ExclusionSnapshot, error) {
	var rows []model.ExclusionRecord
	err := utils.ApplyOptions(r.db, utils.WithOrder("id ASC")).WithContext(ctx).Find(&rows).Error
	if err != nil {
		return nil, &dto.PersistenceError{Op: "load", Path: model.ExclusionRecord{}.TableName(), Err: err}
	}

	records := make([]dto.ExclusionRecord, 0, len(rows))
	for _, row := range rows {
		var values []interface{}
		if err := json.Unmarshal(row.Record, &values); err != nil {
			r.log.WarnContext(ctx, "Skipping undecodable exclusion row", logger.Field("id", row.ID), logger.ErrorField(err))
			continue
		}
		rec, err := recordFromValues(values)
		if err != nil {
			r.log.WarnContext(ctx, "Skipping malformed exclusion row", logger.Field("id", row.ID), logger.ErrorField(err))
			continue
		}
		records = append(records, rec)
	}

	return r.records.Snapshot(records), nil
}

func (r *exclusionPostgresRepository) SaveExclusionSnapshot(ctx context.Context, snap *dto.ExclusionSnapshot) error {
	rows, err := r.toRows(snap)
	if err != nil {
		return &dto.PersistenceError{Op: "save", Path: model.ExclusionRecord{}.TableName(), Err: err}
	}

	err = r.uow.Run(func(opts ...utils.DBOption) error {
		db := utils.ApplyOptions(r.db, opts...).WithContext(ctx)
		if err := utils.ApplyOptions(db, utils.WithWhere("1 = 1")).Delete(&model.ExclusionRecord{}).Error; err != nil {
			return fmt.Errorf("clear exclusion records: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := db.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert exclusion records: %w", err)
		}
		return nil
	})
	if err != nil {
		return &dto.PersistenceError{Op: "save", Path: model.ExclusionRecord{}.TableName(), Err: err}
	}

	r.log.InfoContext(ctx, "Exclusion snapshot saved to database", logger.IntField("records", len(rows)))
	return nil
}

func (r *exclusionPostgresRepository) toRows(snap *dto.ExclusionSnapshot) ([]model.ExclusionRecord, error) {
	records := r.records.Records(snap)
	rows := make([]model.ExclusionRecord, 0, len(records))
	for _, rec := range records {
		key, err := r.records.keyOf(rec)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(rec.Values())
		if err != nil {
			return nil, fmt.Errorf("marshal record %s: %w", key, err)
		}
		rows = append(rows, model.ExclusionRecord{
			StrategyKey:  key.String(),
			Scope:        int(rec.Scope),
			DropoutCount: rec.DropoutCount,
			Record:       datatypes.JSON(raw),
		})
	}
	return rows, nil
}
