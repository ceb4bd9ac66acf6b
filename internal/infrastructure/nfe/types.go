// Package nfe implementa a geração do XML da NF-e (modelo 55, layout 4.00),
// a assinatura envelopada, o transporte SOAP com TLS mútuo e a interpretação
// das respostas da SEFAZ.
package nfe

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/oficinapro/fiscal-api/internal/domain/entity"
	"github.com/oficinapro/fiscal-api/pkg/config"
)

// LineForXML linha da nota com o cadastro fiscal do produto resolvido
// (NCM, CFOP, unidade, alíquotas) para o builder.
type LineForXML struct {
	Item    entity.NoteItem
	Produto *entity.FiscalProduct // nil quando o item só tem descrição livre
}

// BuildContext reúne tudo que o builder precisa para montar o XML da nota.
type BuildContext struct {
	Emitente config.FiscalConfig
	Cliente  *entity.FiscalClient
	Linhas   []LineForXML

	Numero   int64
	Serie    int
	Emissao  time.Time
	CodigoNF string // nonce numérico de 8 dígitos (cNF)
	NatOp    string // natureza da operação; default "VENDA"
}

// BuildResult é a saída do builder: documento sem assinatura + chave + número.
type BuildResult struct {
	XML    []byte
	Chave  string
	Numero int64
	Total  decimal.Decimal
}
