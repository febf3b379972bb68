package models

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/mmdatafocus/agromatch_backend/config"
	"github.com/mmdatafocus/agromatch_backend/matching"
	"gorm.io/gorm"
)

const substitutionCacheKey = "MatchSubstitutions:active"

// MatchStore is the gorm implementation of matching.Store. Every per-producer
// read is one IN query over the whole pool.
type MatchStore struct {
	db *gorm.DB

	// SubstitutionCacheTTL controls how long the active substitution catalog
	// stays in redis. Zero disables the cache.
	SubstitutionCacheTTL time.Duration
}

func NewMatchStore(db *gorm.DB) *MatchStore {
	return &MatchStore{db: db, SubstitutionCacheTTL: 10 * time.Minute}
}

var _ matching.Store = (*MatchStore)(nil)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return matching.ErrNotFound
	}
	return err
}

func (s *MatchStore) GetDemandVersion(ctx context.Context, id int) (*matching.DemandVersion, error) {
	var version DemandVersion
	err := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&version, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	var demand Demand
	if err := s.db.WithContext(ctx).First(&demand, version.DemandID).Error; err != nil {
		return nil, notFound(err)
	}
	return version.toDomain(&demand), nil
}

func (s *MatchStore) GetProducer(ctx context.Context, id int) (*matching.ProducerProfile, error) {
	var profile ProducerProfile
	if err := s.db.WithContext(ctx).Preload("User").First(&profile, id).Error; err != nil {
		return nil, notFound(err)
	}
	out := profile.toDomain()
	return &out, nil
}

func (s *MatchStore) ListCandidateProducers(ctx context.Context, criteria matching.CandidateCriteria) ([]matching.ProducerProfile, error) {
	if len(criteria.ProductIDs) == 0 {
		return nil, nil
	}
	offering := s.db.Model(&ProductionItem{}).
		Select("producer_id").
		Where("product_id IN ?", criteria.ProductIDs)

	q := s.db.WithContext(ctx).Preload("User").Where("id IN (?)", offering)
	if criteria.Status != "" {
		q = q.Where("status = ?", criteria.Status)
	}
	var rows []ProducerProfile
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]matching.ProducerProfile, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

type producerCount struct {
	ProducerID int
	Total      int
	Approved   int
}

func (s *MatchStore) CountOpenProposals(ctx context.Context, producerIDs []int) (map[int]int, error) {
	var counts []producerCount
	err := s.db.WithContext(ctx).Model(&Proposal{}).
		Select("producer_id, COUNT(*) AS total").
		Where("producer_id IN ?", producerIDs).
		Where("status IN ?", OpenProposalStatuses).
		Group("producer_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int]int, len(counts))
	for _, c := range counts {
		out[c.ProducerID] = c.Total
	}
	return out, nil
}

func (s *MatchStore) GetProductionItems(ctx context.Context, producerIDs []int) (map[int][]matching.ProductionItem, error) {
	var rows []ProductionItem
	if err := s.db.WithContext(ctx).Where("producer_id IN ?", producerIDs).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int][]matching.ProductionItem, len(producerIDs))
	for _, r := range rows {
		out[r.ProducerID] = append(out[r.ProducerID], matching.ProductionItem{
			ID:         r.ID,
			ProducerID: r.ProducerID,
			ProductID:  r.ProductID,
			UnitID:     r.UnitID,
			BasePrice:  r.BasePrice,
		})
	}
	return out, nil
}

func (s *MatchStore) GetCapacityPeriods(ctx context.Context, itemIDs []int) (map[int][]matching.CapacityPeriod, error) {
	var rows []CapacityPeriod
	if err := s.db.WithContext(ctx).Where("production_item_id IN ?", itemIDs).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int][]matching.CapacityPeriod, len(itemIDs))
	for _, r := range rows {
		out[r.ProductionItemID] = append(out[r.ProductionItemID], matching.CapacityPeriod{
			ID:               r.ID,
			ProductionItemID: r.ProductionItemID,
			PeriodKind:       r.PeriodKind,
			StartsOn:         r.StartsOn,
			EndsOn:           r.EndsOn,
			Quantity:         r.Quantity,
		})
	}
	return out, nil
}

func (s *MatchStore) GetConfirmationHistory(ctx context.Context, producerIDs []int) (map[int][]matching.Confirmation, error) {
	var rows []ParticipantConfirmation
	if err := s.db.WithContext(ctx).Where("producer_id IN ?", producerIDs).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int][]matching.Confirmation, len(producerIDs))
	for _, r := range rows {
		out[r.ProducerID] = append(out[r.ProducerID], matching.Confirmation{
			ProducerID:  r.ProducerID,
			InvitedAt:   r.InvitedAt,
			RespondedAt: r.RespondedAt,
			Status:      r.Status,
		})
	}
	return out, nil
}

func (s *MatchStore) GetProposalStats(ctx context.Context, producerIDs []int) (map[int]matching.ProposalStats, error) {
	var proposals, contracts []producerCount
	db := s.db.WithContext(ctx)
	if err := db.Model(&Proposal{}).
		Select("producer_id, COUNT(*) AS total").
		Where("producer_id IN ?", producerIDs).
		Group("producer_id").
		Scan(&proposals).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Contract{}).
		Select("producer_id, COUNT(*) AS total").
		Where("producer_id IN ?", producerIDs).
		Where("status IN ?", ClosedContractStatuses).
		Group("producer_id").
		Scan(&contracts).Error; err != nil {
		return nil, err
	}
	out := make(map[int]matching.ProposalStats, len(producerIDs))
	for _, c := range proposals {
		st := out[c.ProducerID]
		st.Total = c.Total
		out[c.ProducerID] = st
	}
	for _, c := range contracts {
		st := out[c.ProducerID]
		st.ClosedContracts = c.Total
		out[c.ProducerID] = st
	}
	return out, nil
}

func (s *MatchStore) GetDocumentStatus(ctx context.Context, producerIDs []int) (map[int]matching.DocumentStatus, error) {
	var counts []producerCount
	err := s.db.WithContext(ctx).Model(&ProducerDocument{}).
		Select("producer_id, COUNT(*) AS total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS approved", DocumentStatusApproved).
		Where("producer_id IN ?", producerIDs).
		Group("producer_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int]matching.DocumentStatus, len(counts))
	for _, c := range counts {
		out[c.ProducerID] = matching.DocumentStatus{Total: c.Total, Approved: c.Approved}
	}
	return out, nil
}

// GetSubstitutions reads the active catalog equivalences through a redis cache.
// The cache is skipped when redis is not connected.
func (s *MatchStore) GetSubstitutions(ctx context.Context, productIDs []int) ([]matching.Substitution, error) {
	var all []matching.Substitution
	cached := false
	if s.SubstitutionCacheTTL > 0 {
		var err error
		if cached, err = config.GetRedisObject(substitutionCacheKey, &all); err != nil {
			config.LogError(config.GetLogger(), "MatchStore", "GetSubstitutions", "redis get", substitutionCacheKey, err)
			cached = false
		}
	}
	if !cached {
		var rows []SubstitutionEquivalence
		if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&rows).Error; err != nil {
			return nil, err
		}
		all = make([]matching.Substitution, 0, len(rows))
		for _, r := range rows {
			all = append(all, matching.Substitution{
				FromProductID: r.FromProductID,
				ToProductID:   r.ToProductID,
				Reason:        r.Reason,
				Notes:         r.Notes,
			})
		}
		if s.SubstitutionCacheTTL > 0 {
			if err := config.SetRedisObject(substitutionCacheKey, all, s.SubstitutionCacheTTL); err != nil {
				config.LogError(config.GetLogger(), "MatchStore", "GetSubstitutions", "redis set", substitutionCacheKey, err)
			}
		}
	}

	wanted := make(map[int]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	var out []matching.Substitution
	for _, sub := range all {
		if wanted[sub.FromProductID] {
			out = append(out, sub)
		}
	}
	return out, nil
}

// InvalidateSubstitutionCache drops the cached catalog after it is edited.
func InvalidateSubstitutionCache() error {
	return config.RemoveRedisKey(substitutionCacheKey)
}

func (s *MatchStore) CreateExecution(ctx context.Context, exec *matching.Execution) error {
	row := newMatchExecution(exec)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	exec.ID = row.ID
	return nil
}

func (s *MatchStore) FinishExecution(ctx context.Context, exec *matching.Execution) error {
	res := s.db.WithContext(ctx).Model(&MatchExecution{}).
		Where("id = ?", exec.ID).
		Updates(map[string]interface{}{
			"status":          exec.Status,
			"finished_at":     exec.FinishedAt,
			"parameters_json": []byte(exec.Parameters),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return matching.ErrNotFound
	}
	return nil
}

func (s *MatchStore) PersistCandidates(ctx context.Context, candidates []*matching.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}
	rows := make([]*MatchCandidate, 0, len(candidates))
	for _, c := range candidates {
		row, err := newMatchCandidate(c)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return err
	}
	for i, row := range rows {
		candidates[i].ID = row.ID
	}
	return nil
}

// PersistGroup writes the group with its members and allocations.
func (s *MatchStore) PersistGroup(ctx context.Context, group *matching.SupplierGroup) error {
	row := newSupplierGroup(group)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	group.ID = row.ID
	return nil
}

func (s *MatchStore) EnqueueEvent(ctx context.Context, event matching.ExecutionEvent) error {
	record, err := newMatchEventRecord(event)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *MatchStore) GetExecution(ctx context.Context, id int) (*matching.Execution, error) {
	var row MatchExecution
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toDomain(), nil
}

func (s *MatchStore) ListCandidates(ctx context.Context, executionID int) ([]matching.Candidate, error) {
	var rows []MatchCandidate
	if err := s.db.WithContext(ctx).Where("match_execution_id = ?", executionID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]matching.Candidate, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *MatchStore) WithinTransaction(ctx context.Context, fn func(tx matching.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&MatchStore{db: tx, SubstitutionCacheTTL: s.SubstitutionCacheTTL})
	})
}

// GetCurrentDemandVersionID returns the highest version of a demand.
func GetCurrentDemandVersionID(ctx context.Context, db *gorm.DB, demandID int) (int, error) {
	var version DemandVersion
	err := db.WithContext(ctx).
		Where("demand_id = ?", demandID).
		Order("version_number DESC").
		First(&version).Error
	if err != nil {
		return 0, notFound(err)
	}
	return version.ID, nil
}

// GetSupplierGroups loads the groups an execution formed, members and allocations included.
func GetSupplierGroups(ctx context.Context, db *gorm.DB, executionID int) ([]SupplierGroup, error) {
	var groups []SupplierGroup
	err := db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Allocations", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("match_execution_id = ?", executionID).
		Order("id ASC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}
