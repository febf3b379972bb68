package matching

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	strengthThreshold = 0.7
	weaknessThreshold = 0.55
)

func confidence(b *Breakdown) (float64, string) {
	available := 0
	sum := 0.0
	for _, r := range b {
		if r.Available {
			available++
			sum += r.Score
		}
	}
	mean := 0.5
	if available > 0 {
		mean = sum / float64(available)
	}
	value := clamp(float64(available)/float64(criterionCount)*0.7+mean*0.3, 0.2, 1.0)
	return value, confidenceLabel(value)
}

func confidenceLabel(v float64) string {
	switch {
	case v >= 0.8:
		return "alta"
	case v >= 0.55:
		return "media"
	default:
		return "baixa"
	}
}

// byContribution orders criteria by weighted contribution, highest first. Ties keep declaration order.
func byContribution(b *Breakdown) []CriterionResult {
	ordered := make([]CriterionResult, 0, criterionCount)
	ordered = append(ordered, b[:]...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Contribution() > ordered[j].Contribution()
	})
	return ordered
}

func justification(b *Breakdown, total float64) string {
	parts := []string{fmt.Sprintf("Score combinado de %.1f%%.", total*100)}
	ordered := byContribution(b)

	var highlights []string
	for _, r := range ordered[:2] {
		if r.Score > 0 {
			highlights = append(highlights, fmt.Sprintf("%s (%.0f%% de desempenho)", strings.ToLower(r.Kind.Label()), r.Score*100))
		}
	}
	if len(highlights) > 0 {
		parts = append(parts, "Destaques: "+strings.Join(highlights, ", ")+".")
	}

	for i := len(ordered) - 1; i >= 0; i-- {
		r := ordered[i]
		if r.Score < weaknessThreshold {
			parts = append(parts, fmt.Sprintf("Atenção para %s (%.0f%%).", strings.ToLower(r.Kind.Label()), r.Score*100))
			break
		}
	}
	return strings.Join(parts, " ")
}

func strengths(b *Breakdown) []string {
	out := []string{}
	for _, r := range b {
		if !r.Available || r.Score < strengthThreshold {
			continue
		}
		switch d := r.Details.(type) {
		case ProductDetails:
			out = append(out, fmt.Sprintf("Cobre %d/%d itens previstos no edital.", d.CoveredItems, d.DemandItems))
		case CapacityDetails:
			out = append(out, fmt.Sprintf("Capacidade declarada cobre %s das %s unidades previstas.", formatQty(d.CoveredQuantity), formatQty(d.DemandedQuantity)))
		case HistoryDetails:
			out = append(out, fmt.Sprintf("Ja participou de %d propostas com %d contratos firmados.", d.TotalProposals, d.ClosedContracts))
		case ProximityDetails:
			if d.DistanceKm != nil {
				out = append(out, fmt.Sprintf("Distancia aproximada de %.1f km do ponto de entrega.", *d.DistanceKm))
			}
		case ResponseTimeDetails:
			if d.AverageHours != nil {
				out = append(out, fmt.Sprintf("Tempo medio de resposta de %.1f h.", *d.AverageHours))
			}
		case CertificationDetails:
			out = append(out, fmt.Sprintf("%d certificacoes/documentos aprovados ativos.", d.Approved))
		}
	}
	return out
}

var weaknessMessages = [criterionCount]string{
	CriterionProduct:        "Parte dos itens solicitados nao esta no portifolio informado.",
	CriterionCapacity:       "Capacidade declarada nao cobre toda a demanda.",
	CriterionHistory:        "Historico de contratos ainda limitado.",
	CriterionProximity:      "Distancia elevada pode elevar custos logisticos.",
	CriterionResponseTime:   "Tempo medio de resposta acima do desejado.",
	CriterionCertifications: "Certificacoes/selos pendentes ou insuficientes.",
}

func weaknesses(b *Breakdown) []string {
	out := []string{}
	for _, r := range b {
		switch {
		case !r.Available:
			out = append(out, "Sem dados suficientes para "+strings.ToLower(r.Kind.Label())+".")
		case r.Score < weaknessThreshold:
			out = append(out, weaknessMessages[r.Kind])
		}
	}
	return out
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
