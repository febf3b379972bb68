package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/agromatch_backend/matching"
	"github.com/mmdatafocus/agromatch_backend/middlewares"
	"github.com/mmdatafocus/agromatch_backend/models"
	"github.com/mmdatafocus/agromatch_backend/utils"
	"github.com/xuri/excelize/v2"
)

const (
	candidateSheet = "Candidatos"
	groupSheet     = "Grupos"
)

func (api *matchAPI) exportExecution(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return
	}
	o, ok := api.engine(c)
	if !ok {
		return
	}
	record, err := o.GetExecutionRecord(c.Request.Context(), id)
	if err != nil {
		api.writeError(c, err)
		return
	}
	f, err := buildExecutionWorkbook(c.Request.Context(), record)
	if err != nil {
		api.writeError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=execucao_%d.xlsx", id))
	if err := f.Write(c.Writer); err != nil {
		_ = c.Error(err)
	}
}

// buildExecutionWorkbook writes one row per candidate and one row per group
// allocation. Names come through the request loaders.
func buildExecutionWorkbook(ctx context.Context, record *matching.ExecutionRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", candidateSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(groupSheet); err != nil {
		return nil, err
	}

	headers := []interface{}{"ID", "Tipo", "Produtor", "Score", "Cobertura %", "Status", "Justificativa"}
	if err := f.SetSheetRow(candidateSheet, "A1", &headers); err != nil {
		return nil, err
	}
	groupHeaders := []interface{}{"Grupo", "Produtor", "Papel", "Item da demanda", "Quantidade", "Unidade", "Preco"}
	if err := f.SetSheetRow(groupSheet, "A1", &groupHeaders); err != nil {
		return nil, err
	}

	groupRow := 2
	for i, cand := range record.Candidates {
		name := strings.Join(cand.Explanation.Members, ", ")
		if cand.ProducerID != nil {
			var err error
			if name, err = producerName(ctx, *cand.ProducerID); err != nil {
				return nil, err
			}
		}
		row := []interface{}{
			cand.ID,
			string(cand.Kind),
			name,
			cand.Score,
			cand.CoveragePercent,
			string(cand.Status),
			cand.Explanation.Justification,
		}
		if err := f.SetSheetRow(candidateSheet, "A"+fmt.Sprint(i+2), &row); err != nil {
			return nil, err
		}

		if cand.SupplierGroupID == nil {
			continue
		}
		next, err := writeGroupRows(ctx, f, *cand.SupplierGroupID, groupRow)
		if err != nil {
			return nil, err
		}
		groupRow = next
	}
	return f, nil
}

func writeGroupRows(ctx context.Context, f *excelize.File, groupID int, rowNo int) (int, error) {
	members, err := middlewares.GetGroupMembers(ctx, groupID)
	if err != nil {
		return rowNo, err
	}
	roles := make(map[int]string, len(members))
	for _, m := range members {
		roles[m.ProducerID] = string(m.Role)
	}
	allocations, err := middlewares.GetGroupAllocations(ctx, groupID)
	if err != nil {
		return rowNo, err
	}
	producerIDs := make([]int, 0, len(allocations))
	for _, a := range allocations {
		producerIDs = append(producerIDs, a.ProducerID)
	}
	producerIDs = utils.UniqueSlice(producerIDs)
	profiles, errs := middlewares.GetProducers(ctx, producerIDs)
	names := make(map[int]string, len(profiles))
	for i, p := range profiles {
		if errs != nil && errs[i] != nil {
			return rowNo, errs[i]
		}
		names[producerIDs[i]] = displayName(p)
	}

	for _, a := range allocations {
		name := names[a.ProducerID]
		unit, err := middlewares.GetUnit(ctx, a.UnitID)
		if err != nil {
			return rowNo, err
		}
		price := ""
		if a.Price != nil {
			price = a.Price.StringFixed(2)
		}
		row := []interface{}{
			groupID,
			name,
			roles[a.ProducerID],
			a.DemandLineID,
			a.Quantity.InexactFloat64(),
			unit.Abbreviation,
			price,
		}
		if err := f.SetSheetRow(groupSheet, "A"+fmt.Sprint(rowNo), &row); err != nil {
			return rowNo, err
		}
		rowNo++
	}
	return rowNo, nil
}

func producerName(ctx context.Context, id int) (string, error) {
	p, err := middlewares.GetProducer(ctx, id)
	if err != nil {
		return "", err
	}
	return displayName(p), nil
}

func displayName(p *models.ProducerProfile) string {
	profile := matching.ProducerProfile{ID: p.ID}
	if p.User != nil {
		profile.Name = p.User.Name
	}
	return profile.DisplayName()
}
