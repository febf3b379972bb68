package matching

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type ProfileStatus string

const (
	ProfileStatusIncomplete ProfileStatus = "incomplete"
	ProfileStatusBlocked    ProfileStatus = "blocked"
	ProfileStatusComplete   ProfileStatus = "complete"
)

type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerManualAPI Trigger = "manual_api"
	TriggerAuto      Trigger = "auto"
)

func (t Trigger) IsValid() bool {
	switch t {
	case TriggerManual, TriggerManualAPI, TriggerAuto:
		return true
	}
	return false
}

type CandidateKind string

const (
	CandidateKindSingle CandidateKind = "single"
	CandidateKindGroup  CandidateKind = "group"
)

type CandidateStatus string

const (
	CandidateStatusActive     CandidateStatus = "active"
	CandidateStatusSuperseded CandidateStatus = "superseded"
	CandidateStatusRejected   CandidateStatus = "rejected"
)

type GroupStatus string

const (
	GroupStatusForming   GroupStatus = "forming"
	GroupStatusValidated GroupStatus = "validated"
	GroupStatusSubmitted GroupStatus = "submitted"
	GroupStatusWon       GroupStatus = "won"
	GroupStatusLost      GroupStatus = "lost"
	GroupStatusCancelled GroupStatus = "cancelled"
)

type MemberRole string

const (
	MemberRoleMember MemberRole = "member"
	MemberRoleLeader MemberRole = "leader"
)

// GeoPoint is a WGS84 coordinate in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is what the engine knows about a place: optional coordinates and a city name.
type Location struct {
	Point *GeoPoint `json:"point,omitempty"`
	City  string    `json:"city,omitempty"`
}

type DemandLine struct {
	ID            int              `json:"id"`
	ProductID     int              `json:"produto_id"`
	UnitID        int              `json:"unidade_id"`
	Quantity      decimal.Decimal  `json:"quantidade"`
	MaxPrice      *decimal.Decimal `json:"preco_maximo,omitempty"`
	DeliveryNotes string           `json:"cronograma_entrega,omitempty"`
}

// DemandVersion is an immutable snapshot of a procurement demand.
type DemandVersion struct {
	ID            int          `json:"id"`
	DemandID      int          `json:"demanda_id"`
	VersionNumber int          `json:"numero_versao"`
	Delivery      Location     `json:"local_entrega"`
	Lines         []DemandLine `json:"itens"`
}

// ProductIDs returns the distinct demanded product ids in first-seen order.
func (d *DemandVersion) ProductIDs() []int {
	seen := make(map[int]bool, len(d.Lines))
	out := make([]int, 0, len(d.Lines))
	for _, line := range d.Lines {
		if seen[line.ProductID] {
			continue
		}
		seen[line.ProductID] = true
		out = append(out, line.ProductID)
	}
	return out
}

// QuantityByProduct sums demanded quantities per product.
func (d *DemandVersion) QuantityByProduct() map[int]decimal.Decimal {
	out := make(map[int]decimal.Decimal, len(d.Lines))
	for _, line := range d.Lines {
		out[line.ProductID] = out[line.ProductID].Add(line.Quantity)
	}
	return out
}

func (d *DemandVersion) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, line := range d.Lines {
		total = total.Add(line.Quantity)
	}
	return total
}

type ProducerProfile struct {
	ID       int           `json:"id"`
	UserID   int           `json:"user_id"`
	Name     string        `json:"nome"`
	Status   ProfileStatus `json:"status_perfil"`
	Kind     string        `json:"tipo_produtor"`
	Location Location      `json:"localizacao"`
}

// DisplayName falls back to a generic label when the account has no name.
func (p *ProducerProfile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return "Produtor " + strconv.Itoa(p.ID)
}

type CapacityPeriod struct {
	ID               int             `json:"id"`
	ProductionItemID int             `json:"item_producao_id"`
	PeriodKind       string          `json:"tipo_periodo"`
	StartsOn         *time.Time      `json:"inicio,omitempty"`
	EndsOn           *time.Time      `json:"fim,omitempty"`
	Quantity         decimal.Decimal `json:"quantidade_capacidade"`
}

type ProductionItem struct {
	ID         int              `json:"id"`
	ProducerID int              `json:"produtor_id"`
	ProductID  int              `json:"produto_id"`
	UnitID     int              `json:"unidade_id"`
	BasePrice  *decimal.Decimal `json:"preco_base,omitempty"`
	Periods    []CapacityPeriod `json:"periodos"`
}

// DeclaredCapacity sums the capacity periods of the item.
func (i *ProductionItem) DeclaredCapacity() decimal.Decimal {
	total := decimal.Zero
	for _, p := range i.Periods {
		total = total.Add(p.Quantity)
	}
	return total
}

// Confirmation is one invitation a producer received to join a proposal.
type Confirmation struct {
	ProducerID  int        `json:"produtor_id"`
	InvitedAt   *time.Time `json:"convidado_em,omitempty"`
	RespondedAt *time.Time `json:"respondido_em,omitempty"`
	Status      string     `json:"status"`
}

type ProposalStats struct {
	Total           int `json:"total_propostas"`
	ClosedContracts int `json:"contratos_fechados"`
}

type DocumentStatus struct {
	Total    int `json:"total"`
	Approved int `json:"aprovados"`
}

type Substitution struct {
	FromProductID int    `json:"produto_id"`
	ToProductID   int    `json:"substituto_id"`
	Reason        string `json:"razao_equivalencia,omitempty"`
	Notes         string `json:"observacoes,omitempty"`
}

// ProducerData is the read-only bundle the scorer needs for one producer.
type ProducerData struct {
	Profile       ProducerProfile
	Items         []ProductionItem
	Proposals     ProposalStats
	Confirmations []Confirmation
	Documents     DocumentStatus
	OpenProposals int
}

// ProductIDs returns the distinct products of all production items.
func (p *ProducerData) ProductIDs() map[int]bool {
	out := make(map[int]bool, len(p.Items))
	for _, item := range p.Items {
		out[item.ProductID] = true
	}
	return out
}

// CapacityByProduct sums declared capacity per product, keeping only positive totals.
func (p *ProducerData) CapacityByProduct() map[int]decimal.Decimal {
	out := make(map[int]decimal.Decimal, len(p.Items))
	for i := range p.Items {
		total := p.Items[i].DeclaredCapacity()
		if !total.IsPositive() {
			continue
		}
		out[p.Items[i].ProductID] = out[p.Items[i].ProductID].Add(total)
	}
	return out
}

// Execution is the audit record of one orchestrator run.
type Execution struct {
	ID              int             `json:"id"`
	DemandVersionID int             `json:"versao_demanda_id"`
	Trigger         Trigger         `json:"tipo_execucao"`
	Status          ExecutionStatus `json:"status"`
	Parameters      json.RawMessage `json:"parametros,omitempty"`
	StartedAt       time.Time       `json:"iniciada_em"`
	FinishedAt      *time.Time      `json:"finalizada_em,omitempty"`
	CreatedByUserID *int            `json:"criada_por_user_id,omitempty"`
	CorrelationID   string          `json:"correlation_id,omitempty"`
}

type CandidateExplanation struct {
	Justification string   `json:"justificativa,omitempty"`
	Members       []string `json:"membros,omitempty"`
	ProducerIDs   []int    `json:"produtor_ids,omitempty"`
}

type Candidate struct {
	ID              int                  `json:"id"`
	ExecutionID     int                  `json:"execucao_match_id"`
	Kind            CandidateKind        `json:"tipo_candidato"`
	ProducerID      *int                 `json:"produtor_id,omitempty"`
	SupplierGroupID *int                 `json:"grupo_fornecedor_id,omitempty"`
	Score           float64              `json:"score_total"`
	CoveragePercent float64              `json:"percentual_cobertura"`
	Explanation     CandidateExplanation `json:"explicacao"`
	Status          CandidateStatus      `json:"status"`
}

type GroupMember struct {
	ProducerID int        `json:"produtor_id"`
	Role       MemberRole `json:"papel"`
}

type GroupAllocation struct {
	DemandLineID int              `json:"item_demanda_id"`
	ProducerID   int              `json:"produtor_id"`
	UnitID       int              `json:"unidade_id"`
	Quantity     decimal.Decimal  `json:"quantidade_alocada"`
	Price        *decimal.Decimal `json:"preco,omitempty"`
}

type SupplierGroup struct {
	ID              int               `json:"id"`
	DemandVersionID int               `json:"versao_demanda_id"`
	ExecutionID     int               `json:"criado_de_match_id"`
	Name            string            `json:"nome_grupo"`
	Status          GroupStatus       `json:"status"`
	Members         []GroupMember     `json:"membros"`
	Allocations     []GroupAllocation `json:"alocacoes"`
}

// ExecutionEvent is published after an execution reaches a terminal state.
type ExecutionEvent struct {
	Type            string    `json:"type"`
	ExecutionID     int       `json:"execution_id"`
	DemandVersionID int       `json:"demand_version_id"`
	Status          string    `json:"status"`
	Trigger         string    `json:"trigger"`
	CorrelationID   string    `json:"correlation_id"`
	OccurredAt      time.Time `json:"occurred_at"`
}

const (
	EventExecutionCompleted = "match.execution.completed"
	EventExecutionFailed    = "match.execution.failed"
)
