package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// FiscalProduct é o cadastro fiscal de uma peça vendida pela oficina.
// As alíquotas só são aplicadas no regime normal; no Simples o builder usa o
// código de presunção (CSOSN) e ignora os percentuais.
type FiscalProduct struct {
	ID             string
	Codigo         string // código interno/SKU
	Descricao      string
	NCM            string // nomenclatura comum do Mercosul (8 dígitos)
	CFOP           string
	Unidade        string // UN, PC, LT...
	Preco          decimal.Decimal
	AliquotaICMS   decimal.Decimal // percentual (ex: 18.00)
	AliquotaPIS    decimal.Decimal
	AliquotaCOFINS decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FiscalService é o cadastro fiscal de um serviço (mão de obra) para NFS-e.
type FiscalService struct {
	ID               string
	Descricao        string
	CodigoServico    string // item da lista de serviços (LC 116)
	CodigoTributacao string // código de tributação municipal
	AliquotaISS      decimal.Decimal // percentual
	Preco            decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Stock é o saldo físico de uma peça. Debitado pelo pipeline pós-autorização
// dentro de uma transação com lock de linha.
type Stock struct {
	ProductID string
	Quantity  decimal.Decimal
	UpdatedAt time.Time
}
