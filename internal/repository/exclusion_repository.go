package repository

import (
	"context"

	"strategy-lab/internal/dto"
)

// ExclusionRepository loads and stores the exclusion registry as a whole.
type ExclusionRepository interface {
	LoadExclusionSnapshot(ctx context.Context) (*dto.ExclusionSnapshot, error)
	SaveExclusionSnapshot(ctx context.Context, snap *dto.ExclusionSnapshot) error
}
