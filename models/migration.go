package models

import (
	"log"

	"github.com/mmdatafocus/agromatch_backend/config"
	"gorm.io/gorm"
)

// AllModels lists every table owned by the service, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&User{}, &Unit{}, &CatalogProduct{}, &SubstitutionEquivalence{},
		&Demand{}, &DemandVersion{}, &DemandLine{},
		&ProducerProfile{}, &ProductionItem{}, &CapacityPeriod{},
		&Proposal{}, &ParticipantConfirmation{}, &Contract{}, &ProducerDocument{},
		&MatchExecution{}, &MatchCandidate{},
		&SupplierGroup{}, &GroupMember{}, &GroupAllocation{},
		&MatchEventRecord{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

func MigrateTable() {
	if err := Migrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}
