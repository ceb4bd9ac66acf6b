package nfe

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/oficinapro/fiscal-api/internal/domain"
	pkgnfe "github.com/oficinapro/fiscal-api/pkg/nfe"
)

// Texto de condição de uso exigido pelo layout da carta de correção.
const condicaoUsoCCe = "A Carta de Correcao e disciplinada pelo paragrafo 1o-A do art. 7o do Convenio S/N, de 15 de dezembro de 1970 e pode ser utilizada para regularizacao de erro ocorrido na emissao de documento fiscal, desde que o erro nao esteja relacionado com: I - as variaveis que determinam o valor do imposto tais como: base de calculo, aliquota, diferenca de preco, quantidade, valor da operacao ou da prestacao; II - a correcao de dados cadastrais que implique mudanca do remetente ou do destinatario; III - a data de emissao ou de saida."

// EventContext parâmetros de um evento sobre uma nota autorizada.
type EventContext struct {
	Emitente  string // CNPJ do emitente
	CodigoUF  string // cOrgao
	Ambiente  string
	Chave     string // chave de acesso da nota alvo
	Protocolo string // nProt da autorização (exigido no cancelamento)
	Sequencia int    // nSeqEvento; 1 na primeira ocorrência
	Emissao   time.Time
}

// EventBuilderService monta o XML de eventos pós-autorização (cancelamento e
// carta de correção), pronto para ser assinado e enviado em envEvento.
type EventBuilderService struct{}

func NewEventBuilderService() *EventBuilderService {
	return &EventBuilderService{}
}

// BuildCancelamento monta o evento 110111. A justificativa já foi validada
// pelo orquestrador (mínimo 15 caracteres).
func (s *EventBuilderService) BuildCancelamento(ctx *EventContext, justificativa string) ([]byte, error) {
	return s.build(ctx, pkgnfe.EventoCancelamento, func(enc *xml.Encoder) {
		writeText(enc, "descEvento", "Cancelamento")
		writeText(enc, "nProt", ctx.Protocolo)
		writeText(enc, "xJust", justificativa)
	})
}

// BuildCartaCorrecao monta o evento 110110 com o texto de correção.
func (s *EventBuilderService) BuildCartaCorrecao(ctx *EventContext, correcao string) ([]byte, error) {
	return s.build(ctx, pkgnfe.EventoCartaCorrecao, func(enc *xml.Encoder) {
		writeText(enc, "descEvento", "Carta de Correcao")
		writeText(enc, "xCorrecao", correcao)
		writeText(enc, "xCondUso", condicaoUsoCCe)
	})
}

func (s *EventBuilderService) build(ctx *EventContext, tpEvento string, det func(*xml.Encoder)) ([]byte, error) {
	if ctx == nil {
		return nil, domain.NewFiscalError(domain.KindDocumentBuild, "contexto do evento nulo")
	}
	if err := pkgnfe.ValidateChave(ctx.Chave); err != nil {
		return nil, domain.WrapFiscal(domain.KindDocumentBuild, "chave de acesso do evento", err)
	}
	seq := ctx.Sequencia
	if seq <= 0 {
		seq = 1
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{
		Name: xml.Name{Local: "evento"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: NsNFe},
			{Name: xml.Name{Local: "versao"}, Value: pkgnfe.VersaoEventoCancel},
		},
	}
	_ = enc.EncodeToken(root)

	// Id = "ID" + tpEvento + chave + sequência em 2 dígitos.
	inf := xml.StartElement{
		Name: xml.Name{Local: "infEvento"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "Id"}, Value: fmt.Sprintf("ID%s%s%02d", tpEvento, ctx.Chave, seq)},
		},
	}
	_ = enc.EncodeToken(inf)

	writeText(enc, "cOrgao", ctx.CodigoUF)
	writeText(enc, "tpAmb", ctx.Ambiente)
	writeText(enc, "CNPJ", pkgnfe.OnlyDigits(ctx.Emitente))
	writeText(enc, "chNFe", ctx.Chave)
	writeText(enc, "dhEvento", ctx.Emissao.Format("2006-01-02T15:04:05-07:00"))
	writeText(enc, "tpEvento", tpEvento)
	writeText(enc, "nSeqEvento", strconv.Itoa(seq))
	writeText(enc, "verEvento", pkgnfe.VersaoEventoCancel)

	detStart := xml.StartElement{
		Name: xml.Name{Local: "detEvento"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "versao"}, Value: pkgnfe.VersaoEventoCancel}},
	}
	_ = enc.EncodeToken(detStart)
	det(enc)
	_ = enc.EncodeToken(xml.EndElement{Name: detStart.Name})

	_ = enc.EncodeToken(xml.EndElement{Name: inf.Name})
	_ = enc.EncodeToken(root.End())
	if err := enc.Flush(); err != nil {
		return nil, domain.WrapFiscal(domain.KindDocumentBuild, "serializar evento", err)
	}
	return buf.Bytes(), nil
}
