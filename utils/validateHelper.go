package utils

import (
	"context"

	"github.com/kilometri/kilometri_backend/config"
)

// ValidateResourceId checks that the record exists and belongs to the owner.
// Returns ErrorRecordNotFound so callers can map it to a 404.
func ValidateResourceId[T any](ctx context.Context, userId int, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, userId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

// ResourceCountWhere counts records, using WHERE user_id = ? AND $condition.
// userId can be zero for unscoped counts (admin tooling).
func ResourceCountWhere[T any](ctx context.Context, userId int, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if userId != 0 {
		dbCtx.Where("user_id = ?", userId)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
