package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/agromatch_backend/models"
	"gorm.io/gorm"
)

type groupMemberReader struct {
	db *gorm.DB
}

func (r *groupMemberReader) getGroupMembers(ctx context.Context, groupIds []int) []*dataloader.Result[[]*models.GroupMember] {
	var results []models.GroupMember
	err := r.db.WithContext(ctx).Where("supplier_group_id IN ?", groupIds).Order("id").Find(&results).Error
	if err != nil {
		return handleError[[]*models.GroupMember](len(groupIds), err)
	}
	return generateLoaderArrayResults(results, groupIds)
}

func GetGroupMembers(ctx context.Context, groupId int) ([]*models.GroupMember, error) {
	loaders := For(ctx)
	return loaders.groupMemberLoader.Load(ctx, groupId)()
}

type groupAllocationReader struct {
	db *gorm.DB
}

func (r *groupAllocationReader) getGroupAllocations(ctx context.Context, groupIds []int) []*dataloader.Result[[]*models.GroupAllocation] {
	var results []models.GroupAllocation
	err := r.db.WithContext(ctx).Where("supplier_group_id IN ?", groupIds).Order("id").Find(&results).Error
	if err != nil {
		return handleError[[]*models.GroupAllocation](len(groupIds), err)
	}
	return generateLoaderArrayResults(results, groupIds)
}

func GetGroupAllocations(ctx context.Context, groupId int) ([]*models.GroupAllocation, error) {
	loaders := For(ctx)
	return loaders.groupAllocationLoader.Load(ctx, groupId)()
}
