package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/oficinapro/fiscal-api/internal/domain/entity"
)

// CreateFiscalClientRequest cadastro de destinatário fiscal.
type CreateFiscalClientRequest struct {
	Nome            string `json:"nome" validate:"required"`
	CpfCnpj         string `json:"cpfCnpj" validate:"required"`
	IE              string `json:"ie"`
	Email           string `json:"email" validate:"omitempty,email"`
	Endereco        string `json:"endereco"`
	CodigoMunicipio string `json:"codigoMunicipio"`
	UF              string `json:"uf"`
	CEP             string `json:"cep"`
}

// UpdateFiscalClientRequest atualização parcial do destinatário.
type UpdateFiscalClientRequest struct {
	Nome            *string `json:"nome"`
	CpfCnpj         *string `json:"cpfCnpj"`
	IE              *string `json:"ie"`
	Email           *string `json:"email"`
	Endereco        *string `json:"endereco"`
	CodigoMunicipio *string `json:"codigoMunicipio"`
	UF              *string `json:"uf"`
	CEP             *string `json:"cep"`
}

// FiscalClientResponse visão do destinatário na API.
type FiscalClientResponse struct {
	ID              string    `json:"id"`
	Nome            string    `json:"nome"`
	CpfCnpj         string    `json:"cpfCnpj"`
	IE              string    `json:"ie,omitempty"`
	Email           string    `json:"email,omitempty"`
	Endereco        string    `json:"endereco,omitempty"`
	CodigoMunicipio string    `json:"codigoMunicipio,omitempty"`
	UF              string    `json:"uf,omitempty"`
	CEP             string    `json:"cep,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// FiscalClientListResponse listagem paginada de destinatários.
type FiscalClientListResponse struct {
	Items []FiscalClientResponse `json:"items"`
	Page  PageResponse           `json:"page"`
}

// ToFiscalClientResponse converte a entidade para a visão da API.
func ToFiscalClientResponse(c *entity.FiscalClient) *FiscalClientResponse {
	if c == nil {
		return nil
	}
	return &FiscalClientResponse{
		ID:              c.ID,
		Nome:            c.Nome,
		CpfCnpj:         c.CpfCnpj,
		IE:              c.IE,
		Email:           c.Email,
		Endereco:        c.Endereco,
		CodigoMunicipio: c.CodigoMunicipio,
		UF:              c.UF,
		CEP:             c.CEP,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// CreateFiscalProductRequest cadastro fiscal de peça.
type CreateFiscalProductRequest struct {
	Codigo         string          `json:"codigo" validate:"required"`
	Descricao      string          `json:"descricao" validate:"required"`
	NCM            string          `json:"ncm" validate:"required,len=8"`
	CFOP           string          `json:"cfop" validate:"required"`
	Unidade        string          `json:"unidade"`
	Preco          decimal.Decimal `json:"preco"`
	AliquotaICMS   decimal.Decimal `json:"aliquotaIcms"`
	AliquotaPIS    decimal.Decimal `json:"aliquotaPis"`
	AliquotaCOFINS decimal.Decimal `json:"aliquotaCofins"`
}

// UpdateFiscalProductRequest atualização parcial da peça.
type UpdateFiscalProductRequest struct {
	Codigo         *string          `json:"codigo"`
	Descricao      *string          `json:"descricao"`
	NCM            *string          `json:"ncm"`
	CFOP           *string          `json:"cfop"`
	Unidade        *string          `json:"unidade"`
	Preco          *decimal.Decimal `json:"preco"`
	AliquotaICMS   *decimal.Decimal `json:"aliquotaIcms"`
	AliquotaPIS    *decimal.Decimal `json:"aliquotaPis"`
	AliquotaCOFINS *decimal.Decimal `json:"aliquotaCofins"`
}

// FiscalProductResponse visão da peça na API.
type FiscalProductResponse struct {
	ID             string          `json:"id"`
	Codigo         string          `json:"codigo"`
	Descricao      string          `json:"descricao"`
	NCM            string          `json:"ncm"`
	CFOP           string          `json:"cfop"`
	Unidade        string          `json:"unidade"`
	Preco          decimal.Decimal `json:"preco"`
	AliquotaICMS   decimal.Decimal `json:"aliquotaIcms"`
	AliquotaPIS    decimal.Decimal `json:"aliquotaPis"`
	AliquotaCOFINS decimal.Decimal `json:"aliquotaCofins"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// FiscalProductListResponse listagem paginada de peças.
type FiscalProductListResponse struct {
	Items []FiscalProductResponse `json:"items"`
	Page  PageResponse            `json:"page"`
}

// ToFiscalProductResponse converte a entidade para a visão da API.
func ToFiscalProductResponse(p *entity.FiscalProduct) *FiscalProductResponse {
	if p == nil {
		return nil
	}
	return &FiscalProductResponse{
		ID:             p.ID,
		Codigo:         p.Codigo,
		Descricao:      p.Descricao,
		NCM:            p.NCM,
		CFOP:           p.CFOP,
		Unidade:        p.Unidade,
		Preco:          p.Preco,
		AliquotaICMS:   p.AliquotaICMS,
		AliquotaPIS:    p.AliquotaPIS,
		AliquotaCOFINS: p.AliquotaCOFINS,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// CreateFiscalServiceRequest cadastro fiscal de serviço.
type CreateFiscalServiceRequest struct {
	Descricao        string          `json:"descricao" validate:"required"`
	CodigoServico    string          `json:"codigoServico" validate:"required"`
	CodigoTributacao string          `json:"codigoTributacao"`
	AliquotaISS      decimal.Decimal `json:"aliquotaIss"`
	Preco            decimal.Decimal `json:"preco"`
}

// UpdateFiscalServiceRequest atualização parcial do serviço.
type UpdateFiscalServiceRequest struct {
	Descricao        *string          `json:"descricao"`
	CodigoServico    *string          `json:"codigoServico"`
	CodigoTributacao *string          `json:"codigoTributacao"`
	AliquotaISS      *decimal.Decimal `json:"aliquotaIss"`
	Preco            *decimal.Decimal `json:"preco"`
}

// FiscalServiceResponse visão do serviço na API.
type FiscalServiceResponse struct {
	ID               string          `json:"id"`
	Descricao        string          `json:"descricao"`
	CodigoServico    string          `json:"codigoServico"`
	CodigoTributacao string          `json:"codigoTributacao,omitempty"`
	AliquotaISS      decimal.Decimal `json:"aliquotaIss"`
	Preco            decimal.Decimal `json:"preco"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// FiscalServiceListResponse listagem paginada de serviços.
type FiscalServiceListResponse struct {
	Items []FiscalServiceResponse `json:"items"`
	Page  PageResponse            `json:"page"`
}

// ToFiscalServiceResponse converte a entidade para a visão da API.
func ToFiscalServiceResponse(s *entity.FiscalService) *FiscalServiceResponse {
	if s == nil {
		return nil
	}
	return &FiscalServiceResponse{
		ID:               s.ID,
		Descricao:        s.Descricao,
		CodigoServico:    s.CodigoServico,
		CodigoTributacao: s.CodigoTributacao,
		AliquotaISS:      s.AliquotaISS,
		Preco:            s.Preco,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

// StockResponse saldo físico de uma peça.
type StockResponse struct {
	ProductID string          `json:"productId"`
	Quantity  decimal.Decimal `json:"quantity"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// SetStockRequest define o saldo físico de uma peça (inventário).
type SetStockRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}
