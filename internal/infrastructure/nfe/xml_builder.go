package nfe

import (
	"bytes"
	"encoding/xml"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/oficinapro/fiscal-api/internal/domain"
	pkgnfe "github.com/oficinapro/fiscal-api/pkg/nfe"
)

// Namespace oficial do portal da NF-e e versão do layout.
const (
	NsNFe        = "http://www.portalfiscal.inf.br/nfe"
	VersaoLayout = "4.00"

	// Percentual estimado de tributos totais exibido em vTotTrib (Lei 12.741).
	percTributosEstimados = "13.45"
)

// XMLBuilderService monta o XML da NF-e (sem assinatura).
type XMLBuilderService struct {
	chaves *pkgnfe.ChaveGeneratorService
}

// NewXMLBuilderService cria o serviço.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{chaves: pkgnfe.NewChaveGeneratorService()}
}

// Build gera o documento NFe/infNFe conforme o layout 4.00 e devolve o XML sem
// assinatura, a chave de acesso e o número atribuído.
//
// Política de arredondamento única: cada valor monetário é arredondado (meia
// para cima) na precisão do campo ANTES de entrar nas somas, de modo que o
// bloco de totais feche exatamente com a soma das linhas.
func (s *XMLBuilderService) Build(ctx *BuildContext) (*BuildResult, error) {
	if ctx == nil || ctx.Cliente == nil || len(ctx.Linhas) == 0 {
		return nil, domain.NewFiscalError(domain.KindDocumentBuild, "contexto incompleto: cliente e linhas são obrigatórios")
	}

	chave, err := s.chaves.Generate(&pkgnfe.ChaveParams{
		UF:       ctx.Emitente.CodigoUF,
		Emissao:  ctx.Emissao,
		CNPJ:     ctx.Emitente.CNPJ,
		Modelo:   pkgnfe.ModeloNFe,
		Serie:    ctx.Serie,
		Numero:   ctx.Numero,
		TpEmis:   pkgnfe.TpEmisNormal,
		CodigoNF: ctx.CodigoNF,
	})
	if err != nil {
		return nil, domain.WrapFiscal(domain.KindDocumentBuild, "gerar chave de acesso", err)
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "NFe"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: NsNFe}},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	// infNFe com Id referenciado pela assinatura (Reference URI="#NFe<chave>").
	inf := xml.StartElement{
		Name: xml.Name{Local: "infNFe"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "Id"}, Value: "NFe" + chave},
			{Name: xml.Name{Local: "versao"}, Value: VersaoLayout},
		},
	}
	_ = enc.EncodeToken(inf)

	s.writeIde(enc, ctx, chave)
	s.writeEmit(enc, ctx)
	s.writeDest(enc, ctx)

	totais := s.writeDetLines(enc, ctx)
	s.writeTotal(enc, totais)
	s.writeTransp(enc)
	s.writePag(enc, totais.vNF)

	_ = enc.EncodeToken(xml.EndElement{Name: inf.Name})
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, domain.WrapFiscal(domain.KindDocumentBuild, "serializar XML", err)
	}

	return &BuildResult{XML: buf.Bytes(), Chave: chave, Numero: ctx.Numero, Total: totais.vNF}, nil
}

// lineTotals acumula os totais do documento a partir das linhas já arredondadas.
type lineTotals struct {
	vProd, vDesc, vBC, vICMS, vPIS, vCOFINS, vNF decimal.Decimal
}

func (s *XMLBuilderService) writeIde(enc *xml.Encoder, ctx *BuildContext, chave string) {
	natOp := ctx.NatOp
	if natOp == "" {
		natOp = "VENDA"
	}
	writeEl(enc, "ide", func() {
		writeText(enc, "cUF", ctx.Emitente.CodigoUF)
		writeText(enc, "cNF", ctx.CodigoNF)
		writeText(enc, "natOp", natOp)
		writeText(enc, "mod", pkgnfe.ModeloNFe)
		writeText(enc, "serie", strconv.Itoa(ctx.Serie))
		writeText(enc, "nNF", strconv.FormatInt(ctx.Numero, 10))
		writeText(enc, "dhEmi", ctx.Emissao.Format("2006-01-02T15:04:05-07:00"))
		writeText(enc, "tpNF", "1") // saída
		writeText(enc, "idDest", "1")
		writeText(enc, "cMunFG", ctx.Emitente.CodigoMunicipio)
		writeText(enc, "tpImp", "1")
		writeText(enc, "tpEmis", pkgnfe.TpEmisNormal)
		writeText(enc, "cDV", chave[43:])
		writeText(enc, "tpAmb", ctx.Emitente.Ambiente)
		writeText(enc, "finNFe", "1") // NF-e normal
		writeText(enc, "indFinal", "1")
		writeText(enc, "indPres", "1")
		writeText(enc, "procEmi", "0")
		writeText(enc, "verProc", "fiscal-api")
	})
}

func (s *XMLBuilderService) writeEmit(enc *xml.Encoder, ctx *BuildContext) {
	writeEl(enc, "emit", func() {
		writeText(enc, "CNPJ", pkgnfe.OnlyDigits(ctx.Emitente.CNPJ))
		writeText(enc, "xNome", ctx.Emitente.RazaoSocial)
		if ctx.Emitente.NomeFantasia != "" {
			writeText(enc, "xFant", ctx.Emitente.NomeFantasia)
		}
		writeEl(enc, "enderEmit", func() {
			writeText(enc, "xLgr", ctx.Emitente.Endereco)
			writeText(enc, "cMun", ctx.Emitente.CodigoMunicipio)
			writeText(enc, "UF", ctx.Emitente.UF)
		})
		writeText(enc, "IE", pkgnfe.OnlyDigits(ctx.Emitente.IE))
		writeText(enc, "CRT", ctx.Emitente.Regime)
	})
}

// writeDest ramifica pessoa física (CPF) vs jurídica (CNPJ) pelo tamanho do documento.
func (s *XMLBuilderService) writeDest(enc *xml.Encoder, ctx *BuildContext) {
	doc := pkgnfe.OnlyDigits(ctx.Cliente.CpfCnpj)
	writeEl(enc, "dest", func() {
		if len(doc) == 14 {
			writeText(enc, "CNPJ", doc)
		} else {
			writeText(enc, "CPF", doc)
		}
		writeText(enc, "xNome", ctx.Cliente.Nome)
		writeEl(enc, "enderDest", func() {
			writeText(enc, "xLgr", ctx.Cliente.Endereco)
			writeText(enc, "cMun", ctx.Cliente.CodigoMunicipio)
			writeText(enc, "UF", ctx.Cliente.UF)
			if ctx.Cliente.CEP != "" {
				writeText(enc, "CEP", pkgnfe.OnlyDigits(ctx.Cliente.CEP))
			}
		})
		if len(doc) == 14 && ctx.Cliente.IE != "" {
			writeText(enc, "indIEDest", "1")
			writeText(enc, "IE", pkgnfe.OnlyDigits(ctx.Cliente.IE))
		} else {
			writeText(enc, "indIEDest", "9") // não contribuinte
		}
	})
}

// writeDetLines escreve um det por linha e acumula os totais do documento.
func (s *XMLBuilderService) writeDetLines(enc *xml.Encoder, ctx *BuildContext) *lineTotals {
	t := &lineTotals{
		vProd: decimal.Zero, vDesc: decimal.Zero, vBC: decimal.Zero,
		vICMS: decimal.Zero, vPIS: decimal.Zero, vCOFINS: decimal.Zero, vNF: decimal.Zero,
	}
	simples := ctx.Emitente.Regime == pkgnfe.RegimeSimples

	for i, linha := range ctx.Linhas {
		item := linha.Item
		lineTotal := item.LineTotal()
		netLine := item.NetLine()

		codigo, ncm, cfop, unidade := "ITEM"+strconv.Itoa(i+1), "00000000", pkgnfe.CFOPVendaDentroUF, pkgnfe.UnidadeUN
		descricao := item.Description
		if p := linha.Produto; p != nil {
			codigo, ncm, unidade = p.Codigo, p.NCM, p.Unidade
			if p.CFOP != "" {
				cfop = p.CFOP
			}
			if descricao == "" {
				descricao = p.Descricao
			}
		}

		det := xml.StartElement{
			Name: xml.Name{Local: "det"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "nItem"}, Value: strconv.Itoa(i + 1)}},
		}
		_ = enc.EncodeToken(det)

		writeEl(enc, "prod", func() {
			writeText(enc, "cProd", codigo)
			writeText(enc, "xProd", descricao)
			writeText(enc, "NCM", ncm)
			writeText(enc, "CFOP", cfop)
			writeText(enc, "uCom", unidade)
			writeText(enc, "qCom", item.Quantity.Round(4).StringFixed(4))
			writeText(enc, "vUnCom", formatUnitPrice(item.UnitPrice))
			writeText(enc, "vProd", lineTotal.StringFixed(2))
			if item.Discount.IsPositive() {
				writeText(enc, "vDesc", item.Discount.Round(2).StringFixed(2))
			}
			writeText(enc, "indTot", "1")
		})

		var vICMS, vPIS, vCOFINS decimal.Decimal
		writeEl(enc, "imposto", func() {
			if simples {
				// Simples Nacional: código de presunção, sem destaque de imposto.
				writeEl(enc, "ICMS", func() {
					writeEl(enc, "ICMSSN102", func() {
						writeText(enc, "orig", "0")
						writeText(enc, "CSOSN", pkgnfe.CSOSNSimples)
					})
				})
				return
			}
			// Regime normal: imposto = líquido da linha × alíquota/100 para cada tributo.
			if p := linha.Produto; p != nil {
				vICMS = taxAmount(netLine, p.AliquotaICMS)
				vPIS = taxAmount(netLine, p.AliquotaPIS)
				vCOFINS = taxAmount(netLine, p.AliquotaCOFINS)
				writeEl(enc, "ICMS", func() {
					writeEl(enc, "ICMS00", func() {
						writeText(enc, "orig", "0")
						writeText(enc, "CST", pkgnfe.CSTNormal)
						writeText(enc, "modBC", "3")
						writeText(enc, "vBC", netLine.StringFixed(2))
						writeText(enc, "pICMS", p.AliquotaICMS.StringFixed(2))
						writeText(enc, "vICMS", vICMS.StringFixed(2))
					})
				})
				writeEl(enc, "PIS", func() {
					writeEl(enc, "PISAliq", func() {
						writeText(enc, "CST", "01")
						writeText(enc, "vBC", netLine.StringFixed(2))
						writeText(enc, "pPIS", p.AliquotaPIS.StringFixed(2))
						writeText(enc, "vPIS", vPIS.StringFixed(2))
					})
				})
				writeEl(enc, "COFINS", func() {
					writeEl(enc, "COFINSAliq", func() {
						writeText(enc, "CST", "01")
						writeText(enc, "vBC", netLine.StringFixed(2))
						writeText(enc, "pCOFINS", p.AliquotaCOFINS.StringFixed(2))
						writeText(enc, "vCOFINS", vCOFINS.StringFixed(2))
					})
				})
			}
		})

		_ = enc.EncodeToken(xml.EndElement{Name: det.Name})

		t.vProd = t.vProd.Add(lineTotal)
		t.vDesc = t.vDesc.Add(item.Discount.Round(2))
		if !simples && linha.Produto != nil {
			t.vBC = t.vBC.Add(netLine)
			t.vICMS = t.vICMS.Add(vICMS)
			t.vPIS = t.vPIS.Add(vPIS)
			t.vCOFINS = t.vCOFINS.Add(vCOFINS)
		}
		t.vNF = t.vNF.Add(netLine)
	}
	return t
}

func (s *XMLBuilderService) writeTotal(enc *xml.Encoder, t *lineTotals) {
	// vTotTrib: estimativa fixa de carga tributária exibida ao consumidor.
	vTotTrib := taxAmount(t.vNF, decimal.RequireFromString(percTributosEstimados))
	writeEl(enc, "total", func() {
		writeEl(enc, "ICMSTot", func() {
			writeText(enc, "vBC", t.vBC.StringFixed(2))
			writeText(enc, "vICMS", t.vICMS.StringFixed(2))
			writeText(enc, "vProd", t.vProd.StringFixed(2))
			writeText(enc, "vDesc", t.vDesc.StringFixed(2))
			writeText(enc, "vPIS", t.vPIS.StringFixed(2))
			writeText(enc, "vCOFINS", t.vCOFINS.StringFixed(2))
			writeText(enc, "vNF", t.vNF.StringFixed(2))
			writeText(enc, "vTotTrib", vTotTrib.StringFixed(2))
		})
	})
}

// writeTransp: oficina entrega no balcão; sempre sem ocorrência de frete.
func (s *XMLBuilderService) writeTransp(enc *xml.Encoder) {
	writeEl(enc, "transp", func() {
		writeText(enc, "modFrete", pkgnfe.ModFreteSemFrete)
	})
}

// writePag: pagamento único à vista no valor total da nota.
func (s *XMLBuilderService) writePag(enc *xml.Encoder, vNF decimal.Decimal) {
	writeEl(enc, "pag", func() {
		writeEl(enc, "detPag", func() {
			writeText(enc, "indPag", pkgnfe.PagamentoAVista)
			writeText(enc, "tPag", pkgnfe.MeioPagDinheiro)
			writeText(enc, "vPag", vNF.StringFixed(2))
		})
	})
}

// taxAmount = base × alíquota/100, arredondado a 2 casas.
func taxAmount(base, aliquota decimal.Decimal) decimal.Decimal {
	return base.Mul(aliquota).Div(decimal.NewFromInt(100)).Round(2)
}

// formatUnitPrice formata vUnCom com até 10 casas (mínimo 2), sem zeros excedentes.
func formatUnitPrice(d decimal.Decimal) string {
	r := d.Round(10)
	if r.Exponent() >= -2 {
		return r.StringFixed(2)
	}
	return r.String()
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
