package models

import "github.com/mmdatafocus/agromatch_backend/matching"

type Identifier interface {
	GetId() int
}

// interface for dataloader result
type Data interface {
	Identifier
	GetDefault(int) Data
}

// RelatedData is a child row keyed by its parent id.
type RelatedData interface {
	GetReferenceId() int
}

func (p ProducerProfile) GetId() int {
	return p.ID
}

func (p ProducerProfile) GetDefault(id int) Data {
	return ProducerProfile{
		ID:     id,
		Status: matching.ProfileStatusIncomplete,
	}
}

func (u Unit) GetId() int {
	return u.ID
}

func (u Unit) GetDefault(id int) Data {
	return Unit{ID: id}
}

func (m GroupMember) GetReferenceId() int {
	return m.SupplierGroupID
}

func (a GroupAllocation) GetReferenceId() int {
	return a.SupplierGroupID
}
