// Package nfse implementa a emissão de nota fiscal de serviço municipal.
// Cada prefeitura conveniada tem sua própria gramática e protocolo; o pacote
// expõe uma estratégia por padrão de provedor e um registro por código IBGE
// de município. Suportar uma cidade nova é registrar uma estratégia.
package nfse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oficinapro/fiscal-api/internal/domain"
	"github.com/oficinapro/fiscal-api/internal/domain/entity"
	"github.com/oficinapro/fiscal-api/pkg/config"
)

// IssueInput dados da emissão de uma NFS-e.
type IssueInput struct {
	Prestador  config.FiscalConfig
	Tomador    *entity.FiscalClient
	Servico    *entity.FiscalService
	Quantidade decimal.Decimal
	Valor      decimal.Decimal // valor total do serviço, já com desconto
	Numero     int64           // número do RPS
	Emissao    time.Time
	Descricao  string
}

// Outcome resultado normalizado da emissão, independente do provedor.
type Outcome struct {
	Status     string // entity.StatusAuthorized, StatusAwaiting ou StatusRejected
	Protocolo  string // protocolo de acompanhamento (padrões assíncronos)
	NumeroNFSe string // número da nota atribuído pela prefeitura (padrões síncronos)
	Motivo     string
	Raw        string // resposta bruta para auditoria
}

// Strategy porto de emissão de NFS-e de um provedor municipal.
type Strategy interface {
	Issue(ctx context.Context, in *IssueInput) (*Outcome, error)
}

// Registry mapeia código IBGE de município para a estratégia do seu provedor.
type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register vincula um município a uma estratégia. Sobrescreve registro anterior.
func (r *Registry) Register(codigoMunicipio string, s Strategy) {
	r.strategies[codigoMunicipio] = s
}

// For resolve a estratégia do município. Município sem convênio cadastrado
// falha com KindUnsupportedMunicipality.
func (r *Registry) For(codigoMunicipio string) (Strategy, error) {
	s, ok := r.strategies[codigoMunicipio]
	if !ok {
		return nil, domain.NewFiscalError(domain.KindUnsupportedMunicipality,
			fmt.Sprintf("município %q sem provedor de NFS-e cadastrado", codigoMunicipio))
	}
	return s, nil
}

// Supported lista os municípios com estratégia registrada.
func (r *Registry) Supported() []string {
	out := make([]string, 0, len(r.strategies))
	for code := range r.strategies {
		out = append(out, code)
	}
	return out
}
