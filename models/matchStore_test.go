package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/agromatch_backend/appctx"
	"github.com/mmdatafocus/agromatch_backend/matching"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	productTomato = 10
	productPotato = 12

	brasiliaJSON = `{"cidade":"Brasilia","lat":-15.7939,"lng":-47.8828}`
	goianiaJSON  = `{"cidade":"Goiania","coords":{"latitude":-16.6869,"longitude":-49.2648}}`
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection keeps the shared in-memory database alive and serialises transactions
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

func seedDemand(t *testing.T, db *gorm.DB, quantity int64) {
	t.Helper()
	mustCreate(t, db, &Demand{ID: 1, Title: "Merenda escolar", Status: DemandStatusPublished, DeliveryLocationJSON: []byte(brasiliaJSON)})
	mustCreate(t, db, &DemandVersion{
		ID:            1,
		DemandID:      1,
		VersionNumber: 1,
		Lines: []DemandLine{
			{ID: 101, ProductID: productTomato, UnitID: 1, Quantity: decimal.NewFromInt(quantity)},
		},
	})
}

func seedProducer(t *testing.T, db *gorm.DB, id int, address string, status matching.ProfileStatus, productID int, capacity int64) {
	t.Helper()
	mustCreate(t, db, &User{ID: id, Username: fmt.Sprintf("produtor%d", id), Name: fmt.Sprintf("Produtor %d", id)})
	mustCreate(t, db, &ProducerProfile{ID: id, UserID: id, Status: status, AddressJSON: []byte(address)})
	mustCreate(t, db, &ProductionItem{ID: id * 10, ProducerID: id, ProductID: productID, UnitID: 1})
	mustCreate(t, db, &CapacityPeriod{ProductionItemID: id * 10, Quantity: decimal.NewFromInt(capacity)})
}

func newTestOrchestrator(db *gorm.DB) *matching.Orchestrator {
	l := logrus.New()
	l.SetOutput(io.Discard)
	o := matching.NewOrchestrator(NewMatchStore(db), matching.DefaultSettings(), l)
	o.Now = func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }
	return o
}

func TestMatchStore_ExecuteIndividual(t *testing.T) {
	db := newTestDB(t)
	seedDemand(t, db, 100)
	seedProducer(t, db, 1, goianiaJSON, matching.ProfileStatusComplete, productTomato, 150)

	ctx := appctx.Set(context.Background(), appctx.ContextKeyCorrelationId, "corr-db")
	o := newTestOrchestrator(db)
	res, err := o.Execute(ctx, 1, matching.TriggerManualAPI)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != matching.MatchStatusFound || res.EligibleCount != 1 {
		t.Fatalf("result = %+v", res)
	}

	var exec MatchExecution
	if err := db.First(&exec, res.ExecutionID).Error; err != nil {
		t.Fatalf("load execution: %v", err)
	}
	if exec.Status != matching.ExecutionStatusCompleted || exec.FinishedAt == nil || len(exec.ParametersJSON) == 0 {
		t.Fatalf("execution = %+v", exec)
	}
	if exec.CorrelationId != "corr-db" {
		t.Fatalf("correlation id = %q", exec.CorrelationId)
	}

	record, err := o.GetExecutionRecord(context.Background(), res.ExecutionID)
	if err != nil {
		t.Fatalf("GetExecutionRecord: %v", err)
	}
	if len(record.Candidates) != 1 {
		t.Fatalf("candidates = %+v", record.Candidates)
	}
	c := record.Candidates[0]
	if c.ProducerID == nil || *c.ProducerID != 1 || c.CoveragePercent != 100 || c.Explanation.Justification == "" {
		t.Fatalf("candidate = %+v", c)
	}

	var events []MatchEventRecord
	if err := db.Find(&events).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 1 || events[0].EventType != matching.EventExecutionCompleted || events[0].PublishStatus != OutboxPublishStatusPending {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Attributes()["correlation_id"] != "corr-db" {
		t.Fatalf("attributes = %v", events[0].Attributes())
	}
}

func TestMatchStore_ExecuteGroup(t *testing.T) {
	db := newTestDB(t)
	seedDemand(t, db, 100)
	seedProducer(t, db, 1, brasiliaJSON, matching.ProfileStatusComplete, productTomato, 60)
	seedProducer(t, db, 2, goianiaJSON, matching.ProfileStatusComplete, productTomato, 50)

	res, err := newTestOrchestrator(db).Execute(context.Background(), 1, matching.TriggerAuto)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != matching.MatchStatusGroup {
		t.Fatalf("status = %s", res.Status)
	}

	groups, err := GetSupplierGroups(context.Background(), db, res.ExecutionID)
	if err != nil {
		t.Fatalf("GetSupplierGroups: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Members) != 2 {
		t.Fatalf("groups = %+v", groups)
	}
	if groups[0].Members[0].Role != matching.MemberRoleLeader || groups[0].Members[1].Role != matching.MemberRoleMember {
		t.Fatalf("members = %+v", groups[0].Members)
	}
	total := decimal.Zero
	for _, a := range groups[0].Allocations {
		if a.DemandLineID != 101 {
			t.Fatalf("allocation line = %d", a.DemandLineID)
		}
		total = total.Add(a.Quantity)
	}
	if !total.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("allocated = %s, want 100", total)
	}

	var groupCandidates int64
	db.Model(&MatchCandidate{}).Where("kind = ? AND supplier_group_id = ?", matching.CandidateKindGroup, groups[0].ID).Count(&groupCandidates)
	if groupCandidates != 1 {
		t.Fatalf("group candidates = %d", groupCandidates)
	}
}

func TestMatchStore_NotFound(t *testing.T) {
	db := newTestDB(t)
	store := NewMatchStore(db)
	ctx := context.Background()

	if _, err := store.GetDemandVersion(ctx, 999); !errors.Is(err, matching.ErrNotFound) {
		t.Fatalf("GetDemandVersion err = %v", err)
	}
	if _, err := store.GetProducer(ctx, 999); !errors.Is(err, matching.ErrNotFound) {
		t.Fatalf("GetProducer err = %v", err)
	}
	if _, err := store.GetExecution(ctx, 999); !errors.Is(err, matching.ErrNotFound) {
		t.Fatalf("GetExecution err = %v", err)
	}
	if err := store.FinishExecution(ctx, &matching.Execution{ID: 999, Status: matching.ExecutionStatusFailed}); !errors.Is(err, matching.ErrNotFound) {
		t.Fatalf("FinishExecution err = %v", err)
	}
	if _, err := newTestOrchestrator(db).Execute(ctx, 999, matching.TriggerManual); !errors.Is(err, matching.ErrNotFound) {
		t.Fatalf("Execute err = %v", err)
	}
	var count int64
	db.Model(&MatchExecution{}).Count(&count)
	if count != 0 {
		t.Fatalf("executions = %d, want none for an unknown demand", count)
	}
}

func TestMatchStore_WithinTransactionRollsBack(t *testing.T) {
	db := newTestDB(t)
	store := NewMatchStore(db)
	boom := errors.New("boom")

	err := store.WithinTransaction(context.Background(), func(tx matching.Store) error {
		exec := &matching.Execution{DemandVersionID: 1, Trigger: matching.TriggerManual, Status: matching.ExecutionStatusRunning, StartedAt: time.Now()}
		if err := tx.CreateExecution(context.Background(), exec); err != nil {
			return err
		}
		if exec.ID == 0 {
			t.Fatalf("execution id not assigned")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	var count int64
	db.Model(&MatchExecution{}).Count(&count)
	if count != 0 {
		t.Fatalf("executions = %d after rollback", count)
	}
}

func TestMatchStore_Aggregates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedProducer(t, db, 1, brasiliaJSON, matching.ProfileStatusComplete, productTomato, 10)
	seedProducer(t, db, 2, goianiaJSON, matching.ProfileStatusIncomplete, productTomato, 10)
	seedProducer(t, db, 3, goianiaJSON, matching.ProfileStatusComplete, productPotato, 10)

	one := 1
	for _, status := range []ProposalStatus{ProposalStatusDraft, ProposalStatusSubmitted, ProposalStatusAwarded} {
		mustCreate(t, db, &Proposal{DemandVersionID: 1, ProducerID: &one, Status: status})
	}
	mustCreate(t, db, &Contract{ProducerID: 1, Status: ContractStatusSigned})
	mustCreate(t, db, &Contract{ProducerID: 1, Status: ContractStatusDraft})
	for _, status := range []string{DocumentStatusApproved, DocumentStatusApproved, "pending"} {
		mustCreate(t, db, &ProducerDocument{ProducerID: 1, DocumentType: "dap", Status: status})
	}
	inactive := false
	mustCreate(t, db, &SubstitutionEquivalence{FromProductID: productTomato, ToProductID: productPotato, Reason: "mesma categoria"})
	mustCreate(t, db, &SubstitutionEquivalence{FromProductID: productTomato, ToProductID: 11, IsActive: &inactive})

	store := NewMatchStore(db)
	store.SubstitutionCacheTTL = 0

	producers, err := store.ListCandidateProducers(ctx, matching.CandidateCriteria{
		ProductIDs: []int{productTomato},
		Status:     matching.ProfileStatusComplete,
	})
	if err != nil {
		t.Fatalf("ListCandidateProducers: %v", err)
	}
	if len(producers) != 1 || producers[0].ID != 1 || producers[0].Name != "Produtor 1" || producers[0].Location.City != "Brasilia" {
		t.Fatalf("producers = %+v", producers)
	}

	open, err := store.CountOpenProposals(ctx, []int{1, 2})
	if err != nil || open[1] != 2 || open[2] != 0 {
		t.Fatalf("open proposals = %v (%v)", open, err)
	}
	stats, err := store.GetProposalStats(ctx, []int{1})
	if err != nil || stats[1] != (matching.ProposalStats{Total: 3, ClosedContracts: 1}) {
		t.Fatalf("proposal stats = %+v (%v)", stats, err)
	}
	docs, err := store.GetDocumentStatus(ctx, []int{1, 3})
	if err != nil || docs[1] != (matching.DocumentStatus{Total: 3, Approved: 2}) || docs[3] != (matching.DocumentStatus{}) {
		t.Fatalf("documents = %+v (%v)", docs, err)
	}

	items, err := store.GetProductionItems(ctx, []int{1, 3})
	if err != nil || len(items[1]) != 1 || items[3][0].ProductID != productPotato {
		t.Fatalf("items = %+v (%v)", items, err)
	}
	periods, err := store.GetCapacityPeriods(ctx, []int{10})
	if err != nil || len(periods[10]) != 1 || !periods[10][0].Quantity.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("periods = %+v (%v)", periods, err)
	}

	subs, err := store.GetSubstitutions(ctx, []int{productTomato})
	if err != nil {
		t.Fatalf("GetSubstitutions: %v", err)
	}
	if len(subs) != 1 || subs[0].ToProductID != productPotato || subs[0].Reason != "mesma categoria" {
		t.Fatalf("substitutions = %+v", subs)
	}
}

func TestGetCurrentDemandVersionID(t *testing.T) {
	db := newTestDB(t)
	seedDemand(t, db, 10)
	mustCreate(t, db, &DemandVersion{ID: 7, DemandID: 1, VersionNumber: 2})

	id, err := GetCurrentDemandVersionID(context.Background(), db, 1)
	if err != nil || id != 7 {
		t.Fatalf("current version = %d (%v), want 7", id, err)
	}
	if _, err := GetCurrentDemandVersionID(context.Background(), db, 42); !errors.Is(err, matching.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
