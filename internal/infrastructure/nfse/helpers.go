package nfse

import (
	"context"
	"encoding/xml"
	"errors"
	"net"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/oficinapro/fiscal-api/internal/domain"
)

// classifyError separa timeout (retentável) de falha dura de transporte,
// com a mesma regra do cliente SOAP da NF-e.
func classifyError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return domain.WrapFiscal(domain.KindProviderTimeout, "timeout na chamada ao provedor municipal", err)
	case errors.Is(err, context.Canceled):
		return domain.WrapFiscal(domain.KindProviderTimeout, "chamada ao provedor municipal cancelada", err)
	}
	return domain.WrapFiscal(domain.KindProviderError, "falha de transporte com o provedor municipal", err)
}

// issAmount = valor × alíquota/100, 2 casas.
func issAmount(in *IssueInput) decimal.Decimal {
	return in.Valor.Mul(in.Servico.AliquotaISS).Div(decimal.NewFromInt(100)).Round(2)
}

func discriminacao(in *IssueInput) string {
	if in.Descricao != "" {
		return in.Descricao
	}
	return in.Servico.Descricao
}

// findText busca o texto do primeiro elemento com a tag local dada.
func findText(el *etree.Element, local string) string {
	if localTag(el.Tag) == local {
		return strings.TrimSpace(el.Text())
	}
	for _, child := range el.ChildElements() {
		if found := findText(child, local); found != "" {
			return found
		}
	}
	return ""
}

func localTag(tag string) string {
	if idx := strings.LastIndex(tag, ":"); idx >= 0 {
		return tag[idx+1:]
	}
	return tag
}

func writeEl(enc *xml.Encoder, local string, body func()) {
	start := xml.StartElement{Name: xml.Name{Local: local}}
	_ = enc.EncodeToken(start)
	body()
	_ = enc.EncodeToken(xml.EndElement{Name: start.Name})
}

func writeText(enc *xml.Encoder, local, value string) {
	start := xml.StartElement{Name: xml.Name{Local: local}}
	_ = enc.EncodeToken(start)
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(xml.EndElement{Name: start.Name})
}
