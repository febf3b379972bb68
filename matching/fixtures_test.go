package matching_test

import (
	"io"
	"time"

	"github.com/mmdatafocus/agromatch_backend/matching"
	"github.com/mmdatafocus/agromatch_backend/matching/memstore"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	productTomato  = 10
	productLettuce = 11
	productPotato  = 12
)

var (
	brasilia  = &matching.GeoPoint{Lat: -15.7939, Lng: -47.8828}
	goiania   = &matching.GeoPoint{Lat: -16.6869, Lng: -49.2648}
	saoPaulo  = &matching.GeoPoint{Lat: -23.5505, Lng: -46.6333}
	fixedTime = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
)

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func demandVersion(id int, point *matching.GeoPoint, lines ...matching.DemandLine) matching.DemandVersion {
	for i := range lines {
		if lines[i].ID == 0 {
			lines[i].ID = id*100 + i + 1
		}
		if lines[i].UnitID == 0 {
			lines[i].UnitID = 1
		}
	}
	return matching.DemandVersion{
		ID:            id,
		DemandID:      id + 1000,
		VersionNumber: 1,
		Delivery:      matching.Location{Point: point, City: "Brasilia"},
		Lines:         lines,
	}
}

func line(productID int, quantity int64) matching.DemandLine {
	return matching.DemandLine{ProductID: productID, Quantity: qty(quantity)}
}

func producer(id int, point *matching.GeoPoint) matching.ProducerProfile {
	return matching.ProducerProfile{
		ID:       id,
		UserID:   id + 500,
		Name:     "Produtor Teste " + string(rune('A'+id%26)),
		Status:   matching.ProfileStatusComplete,
		Location: matching.Location{Point: point},
	}
}

func item(id, productID int, capacities ...int64) matching.ProductionItem {
	it := matching.ProductionItem{ID: id, ProductID: productID, UnitID: 1}
	for i, c := range capacities {
		it.Periods = append(it.Periods, matching.CapacityPeriod{
			ID:         id*10 + i,
			PeriodKind: "mensal",
			Quantity:   qty(c),
		})
	}
	return it
}

func producerData(p matching.ProducerProfile, items ...matching.ProductionItem) *matching.ProducerData {
	for i := range items {
		items[i].ProducerID = p.ID
	}
	return &matching.ProducerData{Profile: p, Items: items}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newOrchestrator(store *memstore.Store) *matching.Orchestrator {
	o := matching.NewOrchestrator(store, matching.DefaultSettings(), quietLogger())
	o.Now = func() time.Time { return fixedTime }
	return o
}
