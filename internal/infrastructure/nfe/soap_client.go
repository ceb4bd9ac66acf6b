package nfe

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/oficinapro/fiscal-api/internal/domain"
)

const (
	soap12NS   = "http://www.w3.org/2003/05/soap-envelope"
	wsdlNSBase = "http://www.portalfiscal.inf.br/nfe/wsdl/"
)

// Transport define o porto de saída para os webservices da SEFAZ.
// A implementação concreta usa SOAP 1.2 com TLS mútuo; para tests se
// injeta um fake.
type Transport interface {
	// EnviarLote envia o lote com a NF-e assinada (enviNFe, indSinc=0)
	// e devolve o corpo bruto da resposta SOAP.
	EnviarLote(ctx context.Context, uf, ambiente string, xmlAssinado []byte, idLote string) ([]byte, error)
	// ConsultarRecibo consulta o resultado do processamento de um lote.
	ConsultarRecibo(ctx context.Context, uf, ambiente, recibo string) ([]byte, error)
	// EnviarEvento envia um lote de eventos (cancelamento, carta de correção).
	EnviarEvento(ctx context.Context, uf, ambiente string, eventoAssinado []byte, idLote string) ([]byte, error)
}

// SOAPClient implementa Transport contra os autorizadores da tabela de
// endpoints. O certificado do emitente autentica o canal (TLS mútuo).
type SOAPClient struct {
	httpClient *http.Client
}

// NewSOAPClient constrói o cliente com o certificado A1 do emitente e um
// timeout limitado. A SEFAZ pode demorar alguns segundos; 30s cobre o pior
// caso observado sem segurar a goroutine indefinidamente.
func NewSOAPClient(cert tls.Certificate, timeout time.Duration) *SOAPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
	}
	return &SOAPClient{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
	}
}

type soapEnvelope struct {
	XMLName   xml.Name `xml:"soap12:Envelope"`
	XmlnsSoap string   `xml:"xmlns:soap12,attr"`
	Body      soapBody `xml:"soap12:Body"`
}

type soapBody struct {
	DadosMsg nfeDadosMsg `xml:"nfeDadosMsg"`
}

type nfeDadosMsg struct {
	Xmlns   string `xml:"xmlns,attr"`
	Payload []byte `xml:",innerxml"`
}

// EnviarLote monta o enviNFe em torno do documento assinado e o despacha
// para o serviço de autorização da UF.
func (c *SOAPClient) EnviarLote(ctx context.Context, uf, ambiente string, xmlAssinado []byte, idLote string) ([]byte, error) {
	var payload bytes.Buffer
	payload.WriteString(`<enviNFe xmlns="` + NsNFe + `" versao="` + VersaoLayout + `">`)
	payload.WriteString(`<idLote>` + idLote + `</idLote><indSinc>0</indSinc>`)
	payload.Write(stripXMLDecl(xmlAssinado))
	payload.WriteString(`</enviNFe>`)
	return c.call(ctx, uf, ambiente, OperacaoAutorizacao, payload.Bytes())
}

// ConsultarRecibo monta o consReciNFe para o recibo devolvido pelo envio.
func (c *SOAPClient) ConsultarRecibo(ctx context.Context, uf, ambiente, recibo string) ([]byte, error) {
	var payload bytes.Buffer
	payload.WriteString(`<consReciNFe xmlns="` + NsNFe + `" versao="` + VersaoLayout + `">`)
	payload.WriteString(`<tpAmb>` + ambiente + `</tpAmb><nRec>` + recibo + `</nRec>`)
	payload.WriteString(`</consReciNFe>`)
	return c.call(ctx, uf, ambiente, OperacaoRetAutorizacao, payload.Bytes())
}

// EnviarEvento envolve o evento assinado em um envEvento de um elemento.
func (c *SOAPClient) EnviarEvento(ctx context.Context, uf, ambiente string, eventoAssinado []byte, idLote string) ([]byte, error) {
	var payload bytes.Buffer
	payload.WriteString(`<envEvento xmlns="` + NsNFe + `" versao="1.00">`)
	payload.WriteString(`<idLote>` + idLote + `</idLote>`)
	payload.Write(stripXMLDecl(eventoAssinado))
	payload.WriteString(`</envEvento>`)
	return c.call(ctx, uf, ambiente, OperacaoRecepcaoEvento, payload.Bytes())
}

func (c *SOAPClient) call(ctx context.Context, uf, ambiente string, op Operacao, payload []byte) ([]byte, error) {
	url, err := EndpointFor(uf, ambiente, op)
	if err != nil {
		return nil, domain.WrapFiscal(domain.KindProviderError, "resolver endpoint", err)
	}

	envelope := soapEnvelope{
		XmlnsSoap: soap12NS,
		Body: soapBody{DadosMsg: nfeDadosMsg{
			Xmlns:   wsdlNSBase + string(op),
			Payload: payload,
		}},
	}
	body, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envelope: %w", err)
	}
	body = append([]byte(xml.Header), body...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("soap: criar request: %w", err)
	}
	req.Header.Set("Content-Type", `application/soap+xml; charset=utf-8`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, domain.WrapFiscal(domain.KindProviderError, "ler resposta SOAP", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewFiscalError(domain.KindProviderError,
			fmt.Sprintf("SEFAZ respondeu HTTP %d: %s", resp.StatusCode, truncate(raw, 512)))
	}
	return raw, nil
}

// classifyTransportError separa falhas retryáveis (timeout, rede) de falhas
// duras de transporte.
func classifyTransportError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.WrapFiscal(domain.KindProviderTimeout, "timeout na chamada à SEFAZ", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return domain.WrapFiscal(domain.KindProviderTimeout, "timeout na chamada à SEFAZ", err)
	case errors.Is(err, context.Canceled):
		return domain.WrapFiscal(domain.KindProviderTimeout, "chamada à SEFAZ cancelada", err)
	}
	return domain.WrapFiscal(domain.KindProviderError, "falha de transporte com a SEFAZ", err)
}

// stripXMLDecl remove a declaração <?xml ...?> para o embed dentro do lote.
func stripXMLDecl(xmlBytes []byte) []byte {
	trimmed := bytes.TrimSpace(xmlBytes)
	if bytes.HasPrefix(trimmed, []byte("<?xml")) {
		if idx := bytes.Index(trimmed, []byte("?>")); idx >= 0 {
			return bytes.TrimSpace(trimmed[idx+2:])
		}
	}
	return trimmed
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

var _ Transport = (*SOAPClient)(nil)
