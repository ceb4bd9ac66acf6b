package nfse

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/oficinapro/fiscal-api/internal/domain"
	"github.com/oficinapro/fiscal-api/internal/domain/entity"
	pkgnfe "github.com/oficinapro/fiscal-api/pkg/nfe"
)

// PatternAStrategy atende provedores assíncronos no estilo GInfes: o RPS vai
// em um lote com o corpo em base64 e a prefeitura devolve um protocolo de
// acompanhamento. A nota fica AWAITING até a consulta posterior.
type PatternAStrategy struct {
	endpoint   string
	httpClient *http.Client
}

// NewPatternAStrategy cria a estratégia apontando para o endpoint do convênio.
func NewPatternAStrategy(endpoint string, timeout time.Duration) *PatternAStrategy {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PatternAStrategy{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Issue envia o lote de RPS e devolve o protocolo. Resposta sem protocolo é
// tratada como rejeição com o corpo bruto preservado.
func (s *PatternAStrategy) Issue(ctx context.Context, in *IssueInput) (*Outcome, error) {
	rpsXML, err := s.buildLote(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(rpsXML))
	if err != nil {
		return nil, fmt.Errorf("nfse: criar request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.WrapFiscal(domain.KindProviderError, "ler resposta do provedor municipal", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewFiscalError(domain.KindProviderError,
			fmt.Sprintf("provedor municipal respondeu HTTP %d", resp.StatusCode))
	}

	return s.parse(raw), nil
}

// buildLote monta EnviarLoteRps com o corpo do RPS em base64, como o provedor
// exige.
func (s *PatternAStrategy) buildLote(in *IssueInput) ([]byte, error) {
	if in == nil || in.Tomador == nil || in.Servico == nil {
		return nil, domain.NewFiscalError(domain.KindDocumentBuild, "emissão de NFS-e sem tomador ou serviço")
	}

	var rps bytes.Buffer
	enc := xml.NewEncoder(&rps)
	writeEl(enc, "Rps", func() {
		writeEl(enc, "IdentificacaoRps", func() {
			writeText(enc, "Numero", strconv.FormatInt(in.Numero, 10))
			writeText(enc, "Serie", strconv.Itoa(in.Prestador.Serie))
			writeText(enc, "Tipo", "1")
		})
		writeText(enc, "DataEmissao", in.Emissao.Format("2006-01-02T15:04:05"))
		writeEl(enc, "Servico", func() {
			writeText(enc, "ItemListaServico", in.Servico.CodigoServico)
			writeText(enc, "CodigoTributacaoMunicipio", in.Servico.CodigoTributacao)
			writeText(enc, "Discriminacao", discriminacao(in))
			writeText(enc, "CodigoMunicipio", in.Prestador.CodigoMunicipio)
			writeEl(enc, "Valores", func() {
				writeText(enc, "ValorServicos", in.Valor.StringFixed(2))
				writeText(enc, "Aliquota", in.Servico.AliquotaISS.StringFixed(2))
				writeText(enc, "ValorIss", issAmount(in).StringFixed(2))
			})
		})
		writeEl(enc, "Prestador", func() {
			writeText(enc, "Cnpj", pkgnfe.OnlyDigits(in.Prestador.CNPJ))
			writeText(enc, "InscricaoMunicipal", in.Prestador.IM)
		})
		writeEl(enc, "Tomador", func() {
			doc := pkgnfe.OnlyDigits(in.Tomador.CpfCnpj)
			writeEl(enc, "IdentificacaoTomador", func() {
				writeEl(enc, "CpfCnpj", func() {
					if len(doc) == 14 {
						writeText(enc, "Cnpj", doc)
					} else {
						writeText(enc, "Cpf", doc)
					}
				})
			})
			writeText(enc, "RazaoSocial", in.Tomador.Nome)
		})
	})
	if err := enc.Flush(); err != nil {
		return nil, domain.WrapFiscal(domain.KindDocumentBuild, "serializar RPS", err)
	}

	var lote bytes.Buffer
	lenc := xml.NewEncoder(&lote)
	writeEl(lenc, "EnviarLoteRpsEnvio", func() {
		writeEl(lenc, "LoteRps", func() {
			writeText(lenc, "NumeroLote", strconv.FormatInt(in.Numero, 10))
			writeText(lenc, "Cnpj", pkgnfe.OnlyDigits(in.Prestador.CNPJ))
			writeText(lenc, "InscricaoMunicipal", in.Prestador.IM)
			writeText(lenc, "QuantidadeRps", "1")
			writeText(lenc, "ListaRps", base64.StdEncoding.EncodeToString(rps.Bytes()))
		})
	})
	if err := lenc.Flush(); err != nil {
		return nil, domain.WrapFiscal(domain.KindDocumentBuild, "serializar lote de RPS", err)
	}
	return lote.Bytes(), nil
}

func (s *PatternAStrategy) parse(raw []byte) *Outcome {
	out := &Outcome{Status: entity.StatusRejected, Raw: string(raw)}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil || doc.Root() == nil {
		out.Motivo = "resposta do provedor municipal não pôde ser interpretada"
		return out
	}
	if proto := findText(doc.Root(), "Protocolo"); proto != "" {
		out.Status = entity.StatusAwaiting
		out.Protocolo = proto
		out.Motivo = "lote recebido; aguardando processamento"
		return out
	}
	if msg := findText(doc.Root(), "Mensagem"); msg != "" {
		out.Motivo = msg
		return out
	}
	out.Motivo = "resposta do provedor municipal sem protocolo"
	return out
}

var _ Strategy = (*PatternAStrategy)(nil)
