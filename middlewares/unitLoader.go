package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/agromatch_backend/models"
	"gorm.io/gorm"
)

type unitReader struct {
	db *gorm.DB
}

func (r *unitReader) getUnits(ctx context.Context, ids []int) []*dataloader.Result[*models.Unit] {
	var results []models.Unit
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Unit](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

func GetUnit(ctx context.Context, id int) (*models.Unit, error) {
	loaders := For(ctx)
	return loaders.unitLoader.Load(ctx, id)()
}
