package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/agromatch_backend/models"
	"gorm.io/gorm"
)

type producerReader struct {
	db *gorm.DB
}

func (r *producerReader) getProducers(ctx context.Context, ids []int) []*dataloader.Result[*models.ProducerProfile] {
	var results []models.ProducerProfile
	err := r.db.WithContext(ctx).Preload("User").Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.ProducerProfile](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

func GetProducer(ctx context.Context, id int) (*models.ProducerProfile, error) {
	loaders := For(ctx)
	return loaders.producerLoader.Load(ctx, id)()
}

func GetProducers(ctx context.Context, ids []int) ([]*models.ProducerProfile, []error) {
	loaders := For(ctx)
	return loaders.producerLoader.LoadMany(ctx, ids)()
}
