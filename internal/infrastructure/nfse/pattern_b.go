package nfse

import (
	"bytes"
	"context"
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

// PatternBStrategy atende provedores síncronos no estilo ABRASF: a emissão
// devolve o número da nota na própria resposta, sem protocolo intermediário.
type PatternBStrategy struct {
	endpoint   string
	httpClient *http.Client
}

func NewPatternBStrategy(endpoint string, timeout time.Duration) *PatternBStrategy {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PatternBStrategy{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Issue emite de forma síncrona. Resposta com número de NFS-e autoriza na
// hora; resposta com mensagem de erro rejeita com o motivo do provedor.
func (s *PatternBStrategy) Issue(ctx context.Context, in *IssueInput) (*Outcome, error) {
	body, err := s.buildEnvio(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("nfse: criar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")

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

func (s *PatternBStrategy) buildEnvio(in *IssueInput) ([]byte, error) {
	if in == nil || in.Tomador == nil || in.Servico == nil {
		return nil, domain.NewFiscalError(domain.KindDocumentBuild, "emissão de NFS-e sem tomador ou serviço")
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	writeEl(enc, "GerarNfseEnvio", func() {
		writeEl(enc, "Rps", func() {
			writeEl(enc, "InfDeclaracaoPrestacaoServico", func() {
				writeEl(enc, "Rps", func() {
					writeEl(enc, "IdentificacaoRps", func() {
						writeText(enc, "Numero", strconv.FormatInt(in.Numero, 10))
						writeText(enc, "Serie", strconv.Itoa(in.Prestador.Serie))
						writeText(enc, "Tipo", "1")
					})
					writeText(enc, "DataEmissao", in.Emissao.Format("2006-01-02"))
					writeText(enc, "Status", "1")
				})
				writeText(enc, "Competencia", in.Emissao.Format("2006-01-02"))
				writeEl(enc, "Servico", func() {
					writeEl(enc, "Valores", func() {
						writeText(enc, "ValorServicos", in.Valor.StringFixed(2))
						writeText(enc, "Aliquota", in.Servico.AliquotaISS.StringFixed(2))
						writeText(enc, "ValorIss", issAmount(in).StringFixed(2))
					})
					writeText(enc, "IssRetido", "2")
					writeText(enc, "ItemListaServico", in.Servico.CodigoServico)
					writeText(enc, "CodigoTributacaoMunicipio", in.Servico.CodigoTributacao)
					writeText(enc, "Discriminacao", discriminacao(in))
					writeText(enc, "CodigoMunicipio", in.Prestador.CodigoMunicipio)
				})
				writeEl(enc, "Prestador", func() {
					writeEl(enc, "CpfCnpj", func() {
						writeText(enc, "Cnpj", pkgnfe.OnlyDigits(in.Prestador.CNPJ))
					})
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
		})
	})
	if err := enc.Flush(); err != nil {
		return nil, domain.WrapFiscal(domain.KindDocumentBuild, "serializar GerarNfseEnvio", err)
	}
	return buf.Bytes(), nil
}

func (s *PatternBStrategy) parse(raw []byte) *Outcome {
	out := &Outcome{Status: entity.StatusRejected, Raw: string(raw)}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil || doc.Root() == nil {
		out.Motivo = "resposta do provedor municipal não pôde ser interpretada"
		return out
	}
	if numero := findText(doc.Root(), "Numero"); numero != "" {
		out.Status = entity.StatusAuthorized
		out.NumeroNFSe = numero
		out.Protocolo = findText(doc.Root(), "CodigoVerificacao")
		out.Motivo = "NFS-e gerada"
		return out
	}
	if msg := findText(doc.Root(), "Mensagem"); msg != "" {
		out.Motivo = msg
		return out
	}
	out.Motivo = "resposta do provedor municipal sem número de NFS-e"
	return out
}

var _ Strategy = (*PatternBStrategy)(nil)
