package nfe

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	pkgnfe "github.com/oficinapro/fiscal-api/pkg/nfe"
)

// ProviderResponse resultado normalizado de uma resposta da SEFAZ,
// independente do envelope SOAP que a cercava.
type ProviderResponse struct {
	CStat     int    // código de status; 0 quando a resposta não pôde ser interpretada
	Motivo    string // xMotivo
	Protocolo string // nProt (quando autorizado ou evento registrado)
	Chave     string // chNFe ecoada pelo protocolo
	Recibo    string // nRec (quando o lote ficou em processamento)
	Recebido  string // dhRecbto
	Raw       string // corpo bruto, persistido na nota para auditoria
}

// Authorized indica autorização de uso (cStat 100).
func (r *ProviderResponse) Authorized() bool { return r.CStat == pkgnfe.CStatAutorizado }

// Processing indica lote ainda em processamento (cStat 105/106).
func (r *ProviderResponse) Processing() bool { return pkgnfe.IsProcessing(r.CStat) }

// EventAccepted indica evento registrado (cStat 135/155).
func (r *ProviderResponse) EventAccepted() bool { return pkgnfe.IsEventAccepted(r.CStat) }

// ResponseParserService interpreta respostas dos webservices da SEFAZ.
// A busca é em profundidade e ignora os invólucros SOAP: autorizadores
// diferentes usam prefixos e wrappers diferentes para o mesmo conteúdo.
type ResponseParserService struct{}

func NewResponseParserService() *ResponseParserService {
	return &ResponseParserService{}
}

// Parse extrai cStat, xMotivo, protocolo, chave e recibo da resposta bruta.
// Resposta não interpretável não aborta o fluxo: devolve cStat 0 com o corpo
// bruto como motivo, e o chamador trata como rejeição.
func (p *ResponseParserService) Parse(raw []byte) *ProviderResponse {
	resp := &ProviderResponse{Raw: string(raw)}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil || doc.Root() == nil {
		resp.Motivo = "resposta do provedor não pôde ser interpretada"
		return resp
	}

	// O protocolo de interesse fica no infProt (lote processado) ou no
	// infEvento de retorno; quando o lote ainda está na fila só existe o
	// cStat do retEnviNFe/retConsReciNFe.
	carrier := deepFind(doc.Root(), "infProt")
	if carrier == nil {
		carrier = deepFind(doc.Root(), "infEvento")
	}
	if carrier != nil && childText(carrier, "cStat") != "" {
		p.fill(resp, carrier)
	} else if generic := deepFindWithChild(doc.Root(), "cStat"); generic != nil {
		p.fill(resp, generic)
	} else {
		resp.Motivo = "resposta do provedor sem cStat"
		return resp
	}

	if resp.Recibo == "" {
		if rec := deepFind(doc.Root(), "infRec"); rec != nil {
			resp.Recibo = childText(rec, "nRec")
		}
	}
	return resp
}

func (p *ResponseParserService) fill(resp *ProviderResponse, el *etree.Element) {
	if v, err := strconv.Atoi(strings.TrimSpace(childText(el, "cStat"))); err == nil {
		resp.CStat = v
	}
	resp.Motivo = strings.TrimSpace(childText(el, "xMotivo"))
	resp.Protocolo = strings.TrimSpace(childText(el, "nProt"))
	resp.Chave = strings.TrimSpace(childText(el, "chNFe"))
	resp.Recebido = strings.TrimSpace(childText(el, "dhRecbto"))
	resp.Recibo = strings.TrimSpace(childText(el, "nRec"))
}

// deepFind busca o primeiro elemento com a tag local dada, em qualquer nível.
func deepFind(el *etree.Element, local string) *etree.Element {
	if localTag(el) == local {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := deepFind(child, local); found != nil {
			return found
		}
	}
	return nil
}

// deepFindWithChild busca o primeiro elemento que tenha um filho direto com a
// tag local dada.
func deepFindWithChild(el *etree.Element, childLocal string) *etree.Element {
	for _, child := range el.ChildElements() {
		if localTag(child) == childLocal {
			return el
		}
	}
	for _, child := range el.ChildElements() {
		if found := deepFindWithChild(child, childLocal); found != nil {
			return found
		}
	}
	return nil
}

func childText(el *etree.Element, local string) string {
	for _, child := range el.ChildElements() {
		if localTag(child) == local {
			return child.Text()
		}
	}
	return ""
}

func localTag(el *etree.Element) string {
	if idx := strings.LastIndex(el.Tag, ":"); idx >= 0 {
		return el.Tag[idx+1:]
	}
	return el.Tag
}
