package matching

import "github.com/shopspring/decimal"

type MatchStatus string

const (
	MatchStatusFound   MatchStatus = "match_encontrado"
	MatchStatusGroup   MatchStatus = "grupo_formado"
	MatchStatusPartial MatchStatus = "parcial"
	MatchStatusNone    MatchStatus = "sem_match"
)

const (
	OptionKindIndividual = "individual"
	OptionKindGroup      = "grupo"

	groupMemberJustification = "Membro de grupo complementar"
)

type OptionProducer struct {
	ID               int      `json:"id"`
	Name             string   `json:"nome"`
	Score            float64  `json:"score"`
	QuantityProvided float64  `json:"quantidade_fornecida"`
	PercentOfDemand  float64  `json:"percentual_da_demanda"`
	Justification    string   `json:"justificativa"`
	DistanceKm       *float64 `json:"distancia_km,omitempty"`
}

type MatchOption struct {
	Kind               string           `json:"tipo"`
	AggregateScore     float64          `json:"score_agregado"`
	CoveragePercent    float64          `json:"cobertura_percentual"`
	Producers          []OptionProducer `json:"produtores"`
	EstimatedTotalCost *float64         `json:"preco_total_estimado,omitempty"`

	// UnallocatedLines lists demand lines the group's allocations leave short.
	// Group coverage counts total quantity, so it can read 100 while a line stays open.
	UnallocatedLines []int `json:"linhas_nao_alocadas,omitempty"`
}

type SubstitutionSuggestion struct {
	ProductID    int    `json:"produto_id"`
	SubstituteID int    `json:"substituto_id"`
	Reason       string `json:"razao_equivalencia,omitempty"`
	Notes        string `json:"observacoes,omitempty"`
}

// MatchResult is the structured outcome of one orchestrator run.
type MatchResult struct {
	ExecutionID     int                      `json:"execucao_id"`
	DemandID        int                      `json:"demanda_id"`
	DemandVersionID int                      `json:"versao_demanda_id"`
	Status          MatchStatus              `json:"status"`
	CoveragePercent float64                  `json:"cobertura_percentual"`
	Options         []MatchOption            `json:"opcoes"`
	Alternatives    []MatchOption            `json:"alternativas"`
	Substitutions   []SubstitutionSuggestion `json:"substituicoes_sugeridas"`
	EligibleCount   int                      `json:"produtores_elegiveis"`
}

// ScoreResponse is the wire shape of a single producer score.
type ScoreResponse struct {
	DemandID          int                `json:"demanda_id"`
	DemandVersionID   int                `json:"versao_demanda_id"`
	ProducerID        int                `json:"produtor_id"`
	ScorePercent      float64            `json:"score_percentual"`
	Justification     string             `json:"justificativa"`
	Strengths         []string           `json:"pontos_fortes"`
	Weaknesses        []string           `json:"pontos_fracos"`
	ConfidencePercent float64            `json:"confianca_percentual"`
	ConfidenceLabel   string             `json:"confianca_label"`
	ContextNotes      []string           `json:"contexto_ajustes"`
	Breakdown         Breakdown          `json:"breakdown"`
	Weights           map[string]float64 `json:"pesos_utilizados"`
	Metadata          ScoreMetadata      `json:"metadados"`
}

type ScoreMetadata struct {
	DemandItems     int  `json:"itens_demanda"`
	ProducerItems   int  `json:"itens_produtor"`
	ContextProvided bool `json:"contexto_fornecido"`
}

func (r *ScoreResult) Response() ScoreResponse {
	return ScoreResponse{
		DemandID:          r.DemandID,
		DemandVersionID:   r.DemandVersionID,
		ProducerID:        r.ProducerID,
		ScorePercent:      round(r.Score*100, 2),
		Justification:     r.Justification,
		Strengths:         r.Strengths,
		Weaknesses:        r.Weaknesses,
		ConfidencePercent: round(r.Confidence*100, 2),
		ConfidenceLabel:   r.ConfidenceLabel,
		ContextNotes:      r.ContextNotes,
		Breakdown:         r.Breakdown,
		Weights:           Weights(),
		Metadata: ScoreMetadata{
			DemandItems:     r.DemandItemCount,
			ProducerItems:   r.ProducerItemCount,
			ContextProvided: r.ContextProvided,
		},
	}
}

func optionProducer(c RankedCandidate, justification string) OptionProducer {
	return OptionProducer{
		ID:               c.Producer.Profile.ID,
		Name:             c.Producer.Profile.DisplayName(),
		Score:            round(c.RankScore*100, 2),
		QuantityProvided: round(c.Result.CoveredQuantity.InexactFloat64(), 2),
		PercentOfDemand:  round(c.Result.CoveragePercent(), 2),
		Justification:    justification,
		DistanceKm:       roundPtr(c.Result.DistanceKm, 1),
	}
}

// estimatedCost prices the covered quantity at each producer's base price. It is
// nil unless every covered product has a known price.
func estimatedCost(candidates []RankedCandidate, quantities []map[int]decimal.Decimal) *float64 {
	total := decimal.Zero
	for i, c := range candidates {
		for pid, q := range quantities[i] {
			if !q.IsPositive() {
				continue
			}
			price := basePrice(c.Producer, pid)
			if price == nil {
				return nil
			}
			total = total.Add(q.Mul(*price))
		}
	}
	if total.IsZero() {
		return nil
	}
	v := round(total.InexactFloat64(), 2)
	return &v
}

func roundPtr(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	r := round(*v, places)
	return &r
}
