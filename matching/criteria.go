package matching

import "encoding/json"

// Criterion identifies one of the six scoring dimensions.
type Criterion int

const (
	CriterionProduct Criterion = iota
	CriterionCapacity
	CriterionHistory
	CriterionProximity
	CriterionResponseTime
	CriterionCertifications

	criterionCount
)

// Criteria lists every criterion in declaration order.
var Criteria = [criterionCount]Criterion{
	CriterionProduct,
	CriterionCapacity,
	CriterionHistory,
	CriterionProximity,
	CriterionResponseTime,
	CriterionCertifications,
}

type criterionInfo struct {
	key    string
	field  string
	label  string
	weight float64
}

var criterionTable = [criterionCount]criterionInfo{
	CriterionProduct:        {"produto", "compatibilidade_produto", "Compatibilidade de produto", 0.28},
	CriterionCapacity:       {"capacidade", "capacidade_entrega", "Capacidade de entrega", 0.22},
	CriterionHistory:        {"historico", "historico_sucesso", "Historico de sucesso", 0.18},
	CriterionProximity:      {"proximidade", "proximidade_geografica", "Proximidade geografica", 0.12},
	CriterionResponseTime:   {"tempo_resposta", "tempo_resposta", "Tempo medio de resposta", 0.10},
	CriterionCertifications: {"certificacoes", "certificacoes", "Certificacoes e selos", 0.10},
}

func (c Criterion) Key() string { return criterionTable[c].key }
func (c Criterion) Field() string { return criterionTable[c].field }
func (c Criterion) Label() string { return criterionTable[c].label }
func (c Criterion) Weight() float64 { return criterionTable[c].weight }
func (c Criterion) String() string { return c.Key() }

// Weights returns the weight table keyed by criterion key.
func Weights() map[string]float64 {
	out := make(map[string]float64, criterionCount)
	for _, c := range Criteria {
		out[c.Key()] = c.Weight()
	}
	return out
}

// CriterionDetails is implemented by exactly one struct per criterion.
type CriterionDetails interface {
	criterion() Criterion
}

type ProductDetails struct {
	DemandItems  int `json:"total_itens_demanda"`
	CoveredItems int `json:"itens_cobertos"`
}

type CapacityDetails struct {
	DemandedQuantity float64 `json:"quantidade_demandada"`
	CoveredQuantity  float64 `json:"quantidade_coberta"`
}

type HistoryDetails struct {
	TotalProposals  int `json:"total_propostas"`
	ClosedContracts int `json:"contratos_fechados"`
}

type ProximityDetails struct {
	DistanceKm *float64 `json:"distancia_km"`
}

type ResponseTimeDetails struct {
	AverageHours *float64 `json:"tempo_medio_horas"`
}

type CertificationDetails struct {
	Evaluated int `json:"documentos_avaliados"`
	Approved  int `json:"documentos_aprovados"`
}

func (ProductDetails) criterion() Criterion { return CriterionProduct }
func (CapacityDetails) criterion() Criterion { return CriterionCapacity }
func (HistoryDetails) criterion() Criterion { return CriterionHistory }
func (ProximityDetails) criterion() Criterion { return CriterionProximity }
func (ResponseTimeDetails) criterion() Criterion { return CriterionResponseTime }
func (CertificationDetails) criterion() Criterion { return CriterionCertifications }

// CriterionResult is the outcome of evaluating one criterion.
type CriterionResult struct {
	Kind      Criterion
	Score     float64
	Available bool
	Details   CriterionDetails
}

// Contribution is the weighted share of the criterion in the base score.
func (r CriterionResult) Contribution() float64 {
	return r.Score * r.Kind.Weight()
}

// Breakdown holds one result per criterion, indexed by Criterion.
type Breakdown [criterionCount]CriterionResult

func (b Breakdown) Get(c Criterion) CriterionResult {
	return b[c]
}

func (b *Breakdown) set(r CriterionResult) {
	if r.Details != nil && r.Details.criterion() != r.Kind {
		panic("matching: details do not belong to criterion " + r.Kind.Key())
	}
	b[r.Kind] = r
}

// BaseScore is the weighted sum of every criterion score.
func (b *Breakdown) BaseScore() float64 {
	total := 0.0
	for _, r := range b {
		total += r.Contribution()
	}
	return total
}

func (b *Breakdown) AvailableCount() int {
	n := 0
	for _, r := range b {
		if r.Available {
			n++
		}
	}
	return n
}

// CriterionView is the wire shape of one criterion.
type CriterionView struct {
	ScorePercent        float64          `json:"score_percentual"`
	Weight              float64          `json:"peso"`
	ContributionPercent float64          `json:"contribuicao_percentual"`
	DataAvailable       bool             `json:"dados_disponiveis"`
	Details             CriterionDetails `json:"detalhes"`
}

// MarshalJSON renders the breakdown as an object keyed by criterion field name.
func (b Breakdown) MarshalJSON() ([]byte, error) {
	view := struct {
		Product        CriterionView `json:"compatibilidade_produto"`
		Capacity       CriterionView `json:"capacidade_entrega"`
		History        CriterionView `json:"historico_sucesso"`
		Proximity      CriterionView `json:"proximidade_geografica"`
		ResponseTime   CriterionView `json:"tempo_resposta"`
		Certifications CriterionView `json:"certificacoes"`
	}{
		Product:        b.view(CriterionProduct),
		Capacity:       b.view(CriterionCapacity),
		History:        b.view(CriterionHistory),
		Proximity:      b.view(CriterionProximity),
		ResponseTime:   b.view(CriterionResponseTime),
		Certifications: b.view(CriterionCertifications),
	}
	return json.Marshal(view)
}

func (b *Breakdown) view(c Criterion) CriterionView {
	r := b[c]
	return CriterionView{
		ScorePercent:        round(r.Score*100, 2),
		Weight:              c.Weight(),
		ContributionPercent: round(r.Contribution()*100, 2),
		DataAvailable:       r.Available,
		Details:             r.Details,
	}
}
