package middlewares

import (
	"context"
	"reflect"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/agromatch_backend/config"
	"github.com/mmdatafocus/agromatch_backend/models"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders batch the lookups the execution views and exports make per candidate.
type Loaders struct {
	producerLoader        *dataloader.Loader[int, *models.ProducerProfile]
	unitLoader            *dataloader.Loader[int, *models.Unit]
	groupMemberLoader     *dataloader.Loader[int, []*models.GroupMember]
	groupAllocationLoader *dataloader.Loader[int, []*models.GroupAllocation]
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders(conn *gorm.DB) *Loaders {
	producerReader := &producerReader{db: conn}
	unitReader := &unitReader{db: conn}
	groupMemberReader := &groupMemberReader{db: conn}
	groupAllocationReader := &groupAllocationReader{db: conn}

	return &Loaders{
		producerLoader:        dataloader.NewBatchedLoader(producerReader.getProducers, dataloader.WithWait[int, *models.ProducerProfile](time.Millisecond)),
		unitLoader:            dataloader.NewBatchedLoader(unitReader.getUnits, dataloader.WithWait[int, *models.Unit](time.Millisecond)),
		groupMemberLoader:     dataloader.NewBatchedLoader(groupMemberReader.getGroupMembers, dataloader.WithWait[int, []*models.GroupMember](time.Millisecond)),
		groupAllocationLoader: dataloader.NewBatchedLoader(groupAllocationReader.getGroupAllocations, dataloader.WithWait[int, []*models.GroupAllocation](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := WithLoaders(c.Request.Context(), loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// WithLoaders attaches loaders to a context outside the gin chain (cli tools, tests).
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

func For(ctx context.Context) *Loaders {
	return ctx.Value(loadersKey).(*Loaders)
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// turns results from db into dataloader results
// (T must be a struct)
func generateLoaderResults[T models.Data](results []T, ids []int) []*dataloader.Result[*T] {
	resultMap := make(map[int]T)
	for _, result := range results {
		resultMap[result.GetId()] = result
	}

	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		data := resultMap[id]
		if reflect.ValueOf(data).IsZero() {
			data = data.GetDefault(id).(T)
		}
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: &data})
	}
	return loaderResults
}

// each id has many related results
func generateLoaderArrayResults[T models.RelatedData](results []T, referenceIds []int) (loaderResults []*dataloader.Result[[]*T]) {
	resultMap := make(map[int][]*T)
	for _, result := range results {
		row := result
		resultMap[result.GetReferenceId()] = append(resultMap[result.GetReferenceId()], &row)
	}
	for _, id := range referenceIds {
		loaderResults = append(loaderResults, &dataloader.Result[[]*T]{Data: resultMap[id]})
	}
	return loaderResults
}
