// Package memstore is an in-memory implementation of the matching data access
// port. It backs the engine tests and local dry runs.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/mmdatafocus/agromatch_backend/matching"
)

type Contract struct {
	ProducerID int
	Status     string
}

type Document struct {
	ProducerID int
	Status     string
}

type Proposal struct {
	ProducerID int
	Status     string
}

// OpenProposalStatuses are proposal states that still take producer attention.
var OpenProposalStatuses = map[string]bool{
	"draft":              true,
	"pending_validation": true,
	"validated":          true,
	"submitted":          true,
	"received":           true,
}

var closedContractStatuses = map[string]bool{"generated": true, "signed": true}

// Store keeps every table in slices. Writes inside WithinTransaction are
// discarded when the callback fails.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	Demands       map[int]*matching.DemandVersion
	Producers     []matching.ProducerProfile
	Items         []matching.ProductionItem
	Periods       []matching.CapacityPeriod
	Proposals     []Proposal
	Contracts     []Contract
	Confirmations []matching.Confirmation
	Documents     []Document
	Substitutions []matching.Substitution

	Executions []matching.Execution
	Candidates []matching.Candidate
	Groups     []matching.SupplierGroup
	Events     []matching.ExecutionEvent

	// FailPersistCandidates makes PersistCandidates return this error.
	FailPersistCandidates error

	nextID int
}

func New() *Store {
	return &Store{Demands: map[int]*matching.DemandVersion{}}
}

func (s *Store) AddDemand(d matching.DemandVersion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Demands[d.ID] = &d
}

func (s *Store) AddProducer(p matching.ProducerProfile, items ...matching.ProductionItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Producers = append(s.Producers, p)
	for _, item := range items {
		item.ProducerID = p.ID
		for _, period := range item.Periods {
			period.ProductionItemID = item.ID
			s.Periods = append(s.Periods, period)
		}
		item.Periods = nil
		s.Items = append(s.Items, item)
	}
}

func (s *Store) id() int {
	s.nextID++
	return s.nextID
}

func (s *Store) GetDemandVersion(_ context.Context, id int) (*matching.DemandVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.Demands[id]
	if !ok {
		return nil, matching.ErrNotFound
	}
	out := *d
	out.Lines = append([]matching.DemandLine(nil), d.Lines...)
	return &out, nil
}

func (s *Store) GetProducer(_ context.Context, id int) (*matching.ProducerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.Producers {
		if p.ID == id {
			out := p
			return &out, nil
		}
	}
	return nil, matching.ErrNotFound
}

func (s *Store) ListCandidateProducers(_ context.Context, criteria matching.CandidateCriteria) ([]matching.ProducerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[int]bool, len(criteria.ProductIDs))
	for _, id := range criteria.ProductIDs {
		wanted[id] = true
	}
	offers := map[int]bool{}
	for _, item := range s.Items {
		if wanted[item.ProductID] {
			offers[item.ProducerID] = true
		}
	}
	var out []matching.ProducerProfile
	for _, p := range s.Producers {
		if criteria.Status != "" && p.Status != criteria.Status {
			continue
		}
		if offers[p.ID] {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CountOpenProposals(_ context.Context, producerIDs []int) (map[int]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := set(producerIDs)
	out := map[int]int{}
	for _, p := range s.Proposals {
		if ids[p.ProducerID] && OpenProposalStatuses[p.Status] {
			out[p.ProducerID]++
		}
	}
	return out, nil
}

func (s *Store) GetProductionItems(_ context.Context, producerIDs []int) (map[int][]matching.ProductionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := set(producerIDs)
	out := map[int][]matching.ProductionItem{}
	for _, item := range s.Items {
		if ids[item.ProducerID] {
			out[item.ProducerID] = append(out[item.ProducerID], item)
		}
	}
	return out, nil
}

func (s *Store) GetCapacityPeriods(_ context.Context, itemIDs []int) (map[int][]matching.CapacityPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := set(itemIDs)
	out := map[int][]matching.CapacityPeriod{}
	for _, p := range s.Periods {
		if ids[p.ProductionItemID] {
			out[p.ProductionItemID] = append(out[p.ProductionItemID], p)
		}
	}
	return out, nil
}

func (s *Store) GetConfirmationHistory(_ context.Context, producerIDs []int) (map[int][]matching.Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := set(producerIDs)
	out := map[int][]matching.Confirmation{}
	for _, c := range s.Confirmations {
		if ids[c.ProducerID] {
			out[c.ProducerID] = append(out[c.ProducerID], c)
		}
	}
	return out, nil
}

func (s *Store) GetProposalStats(_ context.Context, producerIDs []int) (map[int]matching.ProposalStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := set(producerIDs)
	out := map[int]matching.ProposalStats{}
	for _, p := range s.Proposals {
		if ids[p.ProducerID] {
			st := out[p.ProducerID]
			st.Total++
			out[p.ProducerID] = st
		}
	}
	for _, c := range s.Contracts {
		if ids[c.ProducerID] && closedContractStatuses[c.Status] {
			st := out[c.ProducerID]
			st.ClosedContracts++
			out[c.ProducerID] = st
		}
	}
	return out, nil
}

func (s *Store) GetDocumentStatus(_ context.Context, producerIDs []int) (map[int]matching.DocumentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := set(producerIDs)
	out := map[int]matching.DocumentStatus{}
	for _, d := range s.Documents {
		if !ids[d.ProducerID] {
			continue
		}
		st := out[d.ProducerID]
		st.Total++
		if d.Status == "approved" {
			st.Approved++
		}
		out[d.ProducerID] = st
	}
	return out, nil
}

func (s *Store) GetSubstitutions(_ context.Context, productIDs []int) ([]matching.Substitution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := set(productIDs)
	var out []matching.Substitution
	for _, sub := range s.Substitutions {
		if ids[sub.FromProductID] {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *Store) CreateExecution(_ context.Context, exec *matching.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec.ID = s.id()
	s.Executions = append(s.Executions, *exec)
	return nil
}

func (s *Store) FinishExecution(_ context.Context, exec *matching.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Executions {
		if s.Executions[i].ID == exec.ID {
			s.Executions[i] = *exec
			return nil
		}
	}
	return matching.ErrNotFound
}

func (s *Store) PersistCandidates(_ context.Context, candidates []*matching.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPersistCandidates != nil {
		return s.FailPersistCandidates
	}
	for _, c := range candidates {
		c.ID = s.id()
		s.Candidates = append(s.Candidates, *c)
	}
	return nil
}

func (s *Store) PersistGroup(_ context.Context, group *matching.SupplierGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	group.ID = s.id()
	s.Groups = append(s.Groups, *group)
	return nil
}

func (s *Store) EnqueueEvent(_ context.Context, event matching.ExecutionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, event)
	return nil
}

func (s *Store) GetExecution(_ context.Context, id int) (*matching.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.Executions {
		if e.ID == id {
			out := e
			return &out, nil
		}
	}
	return nil, matching.ErrNotFound
}

func (s *Store) ListCandidates(_ context.Context, executionID int) ([]matching.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []matching.Candidate
	for _, c := range s.Candidates {
		if c.ExecutionID == executionID {
			out = append(out, c)
		}
	}
	return out, nil
}

// WithinTransaction snapshots the written tables and restores them if fn fails.
func (s *Store) WithinTransaction(_ context.Context, fn func(tx matching.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	executions := append([]matching.Execution(nil), s.Executions...)
	candidates := append([]matching.Candidate(nil), s.Candidates...)
	groups := append([]matching.SupplierGroup(nil), s.Groups...)
	events := append([]matching.ExecutionEvent(nil), s.Events...)
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.Executions, s.Candidates, s.Groups, s.Events = executions, candidates, groups, events
		s.mu.Unlock()
		return err
	}
	return nil
}

func set(ids []int) map[int]bool {
	out := make(map[int]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
