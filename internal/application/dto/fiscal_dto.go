package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/oficinapro/fiscal-api/internal/domain/entity"
)

// NoteItemRequest linha da nota como chega na emissão.
type NoteItemRequest struct {
	ProductID   string          `json:"productId,omitempty"`
	ServiceID   string          `json:"serviceId,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Discount    decimal.Decimal `json:"discount"`
}

// ToEntity converte a linha para o tipo de domínio.
func (r NoteItemRequest) ToEntity() entity.NoteItem {
	return entity.NoteItem{
		ProductID:   r.ProductID,
		ServiceID:   r.ServiceID,
		Description: r.Description,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
		Discount:    r.Discount,
	}
}

// ItemsToEntity converte o lote de linhas.
func ItemsToEntity(items []NoteItemRequest) []entity.NoteItem {
	out := make([]entity.NoteItem, 0, len(items))
	for _, it := range items {
		out = append(out, it.ToEntity())
	}
	return out
}

// IssueNoteRequest emissão de NF-e de produto a partir de uma ordem de serviço.
type IssueNoteRequest struct {
	OrderID  string            `json:"orderId" validate:"required"`
	ClientID string            `json:"clientId" validate:"required"`
	Items    []NoteItemRequest `json:"items" validate:"required,min=1"`
}

// IssueServiceNoteRequest emissão de NFS-e de serviço.
type IssueServiceNoteRequest struct {
	OrderID    string          `json:"orderId" validate:"required"`
	ClientID   string          `json:"clientId" validate:"required"`
	ServiceID  string          `json:"serviceId" validate:"required"`
	Quantidade decimal.Decimal `json:"quantidade"`
	Descricao  string          `json:"descricao"`
}

// CancelNoteRequest cancelamento de nota autorizada.
type CancelNoteRequest struct {
	Justificativa string `json:"justificativa" validate:"required,min=15"`
}

// CorrectNoteRequest carta de correção eletrônica.
type CorrectNoteRequest struct {
	Correcao string `json:"correcao" validate:"required,min=15"`
}

// WebhookEventRequest evento de confirmação de pagamento do gateway.
type WebhookEventRequest struct {
	Type     string            `json:"type"`
	OrderID  string            `json:"orderId"`
	ClientID string            `json:"clientId"`
	Items    []NoteItemRequest `json:"items"`
}

// FiscalNoteResponse visão da nota exposta pela API. O XML e o PDF ficam de
// fora; saem por endpoints próprios quando necessário.
type FiscalNoteResponse struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Status      string          `json:"status"`
	OrderID     string          `json:"orderId"`
	ClientID    string          `json:"clientId"`
	Numero      int64           `json:"numero"`
	Serie       int             `json:"serie"`
	Ambiente    string          `json:"ambiente"`
	ChaveAcesso string          `json:"chaveAcesso,omitempty"`
	Protocolo   string          `json:"protocolo,omitempty"`
	Recibo      string          `json:"recibo,omitempty"`
	ValorTotal  decimal.Decimal `json:"valorTotal"`
	CStat       int             `json:"cStat,omitempty"`
	Motivo      string          `json:"motivo,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ToFiscalNoteResponse converte a entidade para a visão da API.
func ToFiscalNoteResponse(n *entity.FiscalNote) *FiscalNoteResponse {
	if n == nil {
		return nil
	}
	return &FiscalNoteResponse{
		ID:          n.ID,
		Kind:        n.Kind,
		Status:      n.Status,
		OrderID:     n.OrderID,
		ClientID:    n.ClientID,
		Numero:      n.Numero,
		Serie:       n.Serie,
		Ambiente:    n.Ambiente,
		ChaveAcesso: n.ChaveAcesso,
		Protocolo:   n.Protocolo,
		Recibo:      n.Recibo,
		ValorTotal:  n.ValorTotal,
		CStat:       n.CStat,
		Motivo:      n.Motivo,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

// FiscalNoteListResponse listagem paginada de notas.
type FiscalNoteListResponse struct {
	Items []FiscalNoteResponse `json:"items"`
	Page  PageResponse         `json:"page"`
}
