package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de nota fiscal emitidos pela oficina.
const (
	NoteKindProduct = "PRODUCT" // NF-e modelo 55 (venda de peças)
	NoteKindService = "SERVICE" // NFS-e municipal (mão de obra)
)

// Status do ciclo de vida da nota. Transições permitidas:
//
//	PENDING  -> AWAITING | AUTHORIZED | REJECTED
//	AWAITING -> AUTHORIZED | REJECTED   (via consulta pelo recibo)
//	AUTHORIZED -> CANCELLED             (somente por evento explícito)
//
// Qualquer outra transição é inválida e falha sem mutar o registro.
const (
	StatusPending    = "PENDING"
	StatusAwaiting   = "AWAITING"
	StatusAuthorized = "AUTHORIZED"
	StatusRejected   = "REJECTED"
	StatusCancelled  = "CANCELLED"
)

// CanTransition valida a máquina de estados da nota.
func CanTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusAwaiting || to == StatusAuthorized || to == StatusRejected
	case StatusAwaiting:
		return to == StatusAuthorized || to == StatusRejected
	case StatusAuthorized:
		return to == StatusCancelled
	default:
		return false
	}
}

// FiscalNote é a entidade central do subsistema: uma nota fiscal eletrônica
// com seus artefatos (XML assinado, retorno do provedor, DANFE) e vínculos
// com a ordem de serviço e o cliente fiscal.
type FiscalNote struct {
	ID       string
	Kind     string // PRODUCT | SERVICE
	Status   string
	OrderID  string // ordem de serviço que originou a nota
	ClientID string // cliente fiscal (cadastro próprio, distinto do cliente do ERP)

	Numero   int64  // sequencial por Kind, sem furos nem reuso
	Serie    int
	Ambiente string // "1" produção, "2" homologação

	ChaveAcesso string // 44 dígitos; única e imutável após autorização
	Protocolo   string // número de protocolo (só em autorização/evento)
	Recibo      string // número do recibo (só quando o lote fica em processamento)

	XMLAssinado     string // documento assinado enviado ao provedor
	RetornoProvedor string // última resposta bruta do provedor
	ItensJSON       string // linhas serializadas (espelho para reemissão/auditoria)
	PDF             []byte // DANFE; preenchido só após AUTHORIZED

	ValorTotal  decimal.Decimal
	CStat       int    // último código de status do provedor
	Motivo      string // última mensagem do provedor (xMotivo)
	ErroDetalhe string // detalhe de falha local (build/assinatura/transporte)

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NoteItem é uma linha da nota (peça ou serviço) como chega do chamador.
type NoteItem struct {
	ProductID   string          `json:"productId,omitempty"`
	ServiceID   string          `json:"serviceId,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Discount    decimal.Decimal `json:"discount"`
}

// LineTotal devolve qty*unitPrice arredondado a 2 casas.
func (i NoteItem) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice).Round(2)
}

// NetLine devolve o total da linha menos o desconto.
func (i NoteItem) NetLine() decimal.Decimal {
	return i.LineTotal().Sub(i.Discount).Round(2)
}
