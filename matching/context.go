package matching

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// MatchContext carries optional hints from the procurement notice.
type MatchContext struct {
	Seasonality string   `json:"sazonalidade,omitempty" validate:"max=120"`
	Urgency     string   `json:"urgencia,omitempty" validate:"omitempty,oneof=baixa media alta"`
	Priorities  []string `json:"prioridades_edital,omitempty" validate:"max=20,dive,max=120"`
	Notes       string   `json:"observacoes,omitempty" validate:"max=2000"`
}

var validate = validator.New()

// Normalize lowercases the urgency and trims the free-text fields.
func (c *MatchContext) Normalize() {
	if c == nil {
		return
	}
	c.Urgency = strings.ToLower(strings.TrimSpace(c.Urgency))
	c.Seasonality = strings.TrimSpace(c.Seasonality)
	c.Notes = strings.TrimSpace(c.Notes)
	priorities := c.Priorities[:0]
	for _, p := range c.Priorities {
		if p = strings.TrimSpace(p); p != "" {
			priorities = append(priorities, p)
		}
	}
	c.Priorities = priorities
}

// Validate normalizes the context and checks it. A nil context is valid.
func (c *MatchContext) Validate() error {
	if c == nil {
		return nil
	}
	c.Normalize()
	if err := validate.Struct(c); err != nil {
		return newValidationError(err)
	}
	return nil
}

func (c *MatchContext) IsEmpty() bool {
	return c == nil || (c.Seasonality == "" && c.Urgency == "" && len(c.Priorities) == 0 && c.Notes == "")
}

func (c *MatchContext) hasPriority(keyword string) bool {
	for _, p := range c.Priorities {
		if strings.Contains(strings.ToLower(p), keyword) {
			return true
		}
	}
	return false
}

// applyContext returns the additive adjustment and a note per rule that fired.
func applyContext(b *Breakdown, ctx *MatchContext) (float64, []string) {
	notes := []string{}
	if ctx == nil {
		return 0, notes
	}
	adj := 0.0
	response := b.Get(CriterionResponseTime).Score
	capacity := b.Get(CriterionCapacity).Score
	proximity := b.Get(CriterionProximity).Score
	certifications := b.Get(CriterionCertifications).Score

	switch strings.ToLower(ctx.Urgency) {
	case "alta":
		if response >= 0.75 {
			adj += 0.02
			notes = append(notes, "Bonus por boa resposta frente a urgencia alta.")
		} else {
			adj -= 0.03
			notes = append(notes, "Penalidade: urgencia alta e tempo de resposta moderado.")
		}
	case "baixa":
		if response >= 0.5 {
			adj += 0.01
			notes = append(notes, "Urgencia baixa libera pequeno bonus.")
		}
	}

	// "entressafra" also contains "safra"; the safra rule is checked first.
	season := strings.ToLower(ctx.Seasonality)
	if strings.Contains(season, "safra") && capacity >= 0.6 {
		adj += 0.015
		notes = append(notes, "Capacidade aderente a janela de safra informada.")
	} else if strings.Contains(season, "entressafra") && capacity < 0.5 {
		adj -= 0.015
		notes = append(notes, "Risco de capacidade em periodo de entressafra.")
	}

	if ctx.hasPriority("regional") {
		if proximity >= 0.7 {
			adj += 0.02
			notes = append(notes, "Bonus por proximidade alinhada a prioridade regional.")
		} else {
			adj -= 0.02
			notes = append(notes, "Penalidade: prioridade regional sem proximidade suficiente.")
		}
	}
	if ctx.hasPriority("certificacao") && certifications < 0.5 {
		adj -= 0.02
		notes = append(notes, "Prioridade por certificacoes nao atendida.")
	}
	return adj, notes
}
