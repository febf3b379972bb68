// seed-dev loads a small catalog, a published demand and a handful of
// producers into a development database, then prints a buyer token for the
// match endpoints.
//
// Usage (from backend directory):
//
//	DB_DRIVER=postgres DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/agromatch_backend/config"
	"github.com/mmdatafocus/agromatch_backend/matching"
	"github.com/mmdatafocus/agromatch_backend/models"
	"github.com/mmdatafocus/agromatch_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type seedProducer struct {
	id       int
	name     string
	address  string
	status   matching.ProfileStatus
	products map[int]int64
}

var producers = []seedProducer{
	{1, "Cooperativa Vale Verde", `{"cidade":"Brasilia","uf":"DF","lat":-15.7801,"lng":-47.9292}`, matching.ProfileStatusComplete, map[int]int64{1: 800, 2: 300}},
	{2, "Sitio Boa Esperanca", `{"cidade":"Goiania","uf":"GO","coords":{"latitude":-16.6869,"longitude":-49.2648}}`, matching.ProfileStatusComplete, map[int]int64{1: 400}},
	{3, "Associacao Agricultores do Gama", `{"cidade":"Gama","uf":"DF","lat":-16.0196,"lng":-48.0620}`, matching.ProfileStatusComplete, map[int]int64{1: 350, 3: 500}},
	{4, "Fazenda Horizonte", `{"cidade":"Anapolis","uf":"GO"}`, matching.ProfileStatusIncomplete, map[int]int64{2: 1000}},
}

func main() {
	app := &cli.App{
		Name:  "seed-dev",
		Usage: "Seed a development database with matching fixtures",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "migrate", Value: true, Usage: "run AutoMigrate before seeding"},
			&cli.IntFlag{Name: "demand-quantity", Value: 1000, Usage: "tomato quantity on the seeded demand"},
			&cli.BoolFlag{Name: "session", Usage: "also store a buyer session in redis and drop the cached catalog"},
		},
		Action: func(c *cli.Context) error {
			config.ConnectDatabaseWithRetry()
			db := config.GetDB()
			if db == nil {
				return fmt.Errorf("database not initialized; set DB_* env vars")
			}
			if c.Bool("migrate") {
				if err := models.Migrate(db); err != nil {
					return err
				}
			}
			if err := db.WithContext(c.Context).Transaction(func(tx *gorm.DB) error {
				return seed(tx, c.Int64("demand-quantity"))
			}); err != nil {
				return err
			}

			token, err := utils.JwtGenerate(100, utils.RoleBuyer)
			utils.ErrorPanic(err)
			fmt.Println("seeded demand 1 (version 1) with", len(producers), "producers")
			fmt.Println("buyer token:", token)

			if c.Bool("session") {
				config.ConnectRedisWithRetry()
				utils.ErrorPanic(models.InvalidateSubstitutionCache())
				session := uuid.NewString()
				utils.ErrorPanic(config.SetRedisValue("Token:"+session, "comprador", 24*time.Hour))
				fmt.Println("session token:", session)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error: ", err)
		os.Exit(1)
	}
}

// seed upserts by primary key so the tool can be rerun against the same database.
func seed(tx *gorm.DB, demandQuantity int64) error {
	upsert := tx.Clauses(clause.OnConflict{UpdateAll: true})
	kg := 1
	rows := []interface{}{
		&models.Unit{ID: 1, Code: "KG", Name: "Quilograma", Abbreviation: "kg"},
		&models.Unit{ID: 2, Code: "UN", Name: "Unidade", Abbreviation: "un"},
		&models.CatalogProduct{ID: 1, Name: "Tomate", Category: "hortalicas", DefaultUnitID: &kg, IsActive: utils.NewTrue()},
		&models.CatalogProduct{ID: 2, Name: "Alface", Category: "hortalicas", DefaultUnitID: &kg, IsActive: utils.NewTrue()},
		&models.CatalogProduct{ID: 3, Name: "Tomate cereja", Category: "hortalicas", DefaultUnitID: &kg, IsActive: utils.NewTrue()},
		&models.SubstitutionEquivalence{ID: 1, FromProductID: 2, ToProductID: 3, Reason: "mesma categoria", IsActive: utils.NewTrue()},
		&models.User{ID: 100, Username: "comprador", Name: "Secretaria de Educacao", Role: models.UserRoleBuyer, IsActive: utils.NewTrue()},
		&models.Demand{ID: 1, Title: "Merenda escolar 2026", Buyer: "Secretaria de Educacao", Status: models.DemandStatusPublished,
			DeliveryLocationJSON: []byte(`{"cidade":"Brasilia","uf":"DF","lat":-15.7939,"lng":-47.8828}`)},
		&models.DemandVersion{ID: 1, DemandID: 1, VersionNumber: 1},
		&models.DemandLine{ID: 1, DemandVersionID: 1, ProductID: 1, UnitID: 1, Quantity: decimal.NewFromInt(demandQuantity)},
		&models.DemandLine{ID: 2, DemandVersionID: 1, ProductID: 2, UnitID: 1, Quantity: decimal.NewFromInt(200)},
	}
	for _, p := range producers {
		rows = append(rows,
			&models.User{ID: p.id, Username: fmt.Sprintf("produtor%d", p.id), Name: p.name, Role: models.UserRoleProducer, IsActive: utils.NewTrue()},
			&models.ProducerProfile{ID: p.id, UserID: p.id, Status: p.status, ProducerKind: "agricultura_familiar", AddressJSON: []byte(p.address)},
		)
		for productID, capacity := range p.products {
			itemID := p.id*10 + productID
			rows = append(rows,
				&models.ProductionItem{ID: itemID, ProducerID: p.id, ProductID: productID, UnitID: 1},
				&models.CapacityPeriod{ID: itemID, ProductionItemID: itemID, PeriodKind: "mensal", Quantity: decimal.NewFromInt(capacity)},
			)
		}
	}
	for _, row := range rows {
		if err := upsert.Create(row).Error; err != nil {
			return fmt.Errorf("seed %T: %w", row, err)
		}
	}
	return nil
}
