package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/peerhaven/backend/internal/models"
)

// MemoRepository provides persistence for community board memos.
type MemoRepository struct {
	db *gorm.DB
}

// NewMemoRepository constructs a repository using the provided gorm DB.
func NewMemoRepository(db *gorm.DB) *MemoRepository {
	return &MemoRepository{db: db}
}

// Append persists one memo.
func (r *MemoRepository) Append(ctx context.Context, memo *models.Memo) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(memo).Error)
}

// Recent returns the most recent memos up to limit, newest first.
func (r *MemoRepository) Recent(ctx context.Context, limit int) ([]models.Memo, error) {
	if limit <= 0 {
		limit = 50
	}
	var memos []models.Memo
	err := r.db.WithContext(ctx).Order("timestamp desc, id desc").Limit(limit).Find(&memos).Error
	return memos, errors.WithStack(err)
}

// PruneBeyond deletes every memo older than the keep most recent ones and
// returns how many rows were removed. Used by the retention sweeper.
func (r *MemoRepository) PruneBeyond(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("id NOT IN (?)", r.db.Model(&models.Memo{}).
			Select("id").
			Order("timestamp desc, id desc").
			Limit(keep)).
		Delete(&models.Memo{})
	return res.RowsAffected, errors.WithStack(res.Error)
}
