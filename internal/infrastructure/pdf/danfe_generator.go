// Package pdf implementa a representação gráfica simplificada da NF-e
// (DANFE) entregue ao cliente da oficina.
//
// Layout da página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Razão social + CNPJ  │  Nº da nota + Data           │
//	│  ───────────────────────────────────────────────────────── │
//	│  EMITENTE: Endereço / UF                                    │
//	│  DESTINATÁRIO: Nome + CPF/CNPJ                              │
//	│  ───────────────────────────────────────────────────────── │
//	│  TABELA: Qtd | Descrição | Vl. Unit | Desc. | Total         │
//	│  ───────────────────────────────────────────────────────── │
//	│  TOTAIS: Valor total da nota                                │
//	│  ───────────────────────────────────────────────────────── │
//	│  RODAPÉ: Chave de acesso + QR de consulta + protocolo       │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	marotoconfig "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/oficinapro/fiscal-api/internal/domain/entity"
	"github.com/oficinapro/fiscal-api/pkg/config"
)

var (
	colorPrimary = &props.Color{Red: 16, Green: 78, Blue: 66}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// ptBR formata valores monetários no padrão brasileiro (1.234,56).
var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// DANFEGenerator gera o DANFE simplificado via Maroto v2.
type DANFEGenerator struct{}

func NewDANFEGenerator() *DANFEGenerator { return &DANFEGenerator{} }

// Generate produz os bytes do PDF da nota autorizada.
func (g *DANFEGenerator) Generate(
	_ context.Context,
	note *entity.FiscalNote,
	emitente config.FiscalConfig,
	cliente *entity.FiscalClient,
	itens []entity.NoteItem,
) ([]byte, error) {
	cfg := marotoconfig.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("DANFE", true).
		WithAuthor(emitente.RazaoSocial, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(note, emitente))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(emitenteRow(emitente))
	m.AddRows(destinatarioRow(cliente))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range tableItemRows(itens) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalRow(note.ValorTotal))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	for _, r := range fiscalFooterRows(note) {
		m.AddRows(r)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: gerar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// headerRow: razão social + CNPJ (esq) e número + data (dir).
func headerRow(note *entity.FiscalNote, emitente config.FiscalConfig) core.Row {
	numero := fmt.Sprintf("Nº %09d  Série %03d", note.Numero, note.Serie)
	data := note.CreatedAt.Format("02/01/2006")

	return row.New(18).Add(
		col.New(7).Add(
			text.New(emitente.RazaoSocial, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("CNPJ: "+emitente.CNPJ, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("DANFE - DOCUMENTO AUXILIAR DA NF-e", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(numero, props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 7,
			}),
			text.New("Emissão: "+data, props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func emitenteRow(emitente config.FiscalConfig) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("EMITENTE", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Endereço: %s   |   UF: %s   |   IE: %s",
				nonEmpty(emitente.Endereco, "—"),
				nonEmpty(emitente.UF, "—"),
				nonEmpty(emitente.IE, "—"),
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

func destinatarioRow(cliente *entity.FiscalClient) core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New("DESTINATÁRIO", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(cliente.Nome, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("CPF/CNPJ: %s   |   Município: %s   |   UF: %s",
				cliente.CpfCnpj,
				nonEmpty(cliente.CodigoMunicipio, "—"),
				nonEmpty(cliente.UF, "—"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Qtd.", 1, align.Center),
		h("Descrição do produto/serviço", 5, align.Left),
		h("Vl. Unit.", 2, align.Right),
		h("Desc.", 1, align.Right),
		h("Total", 3, align.Right),
	)
}

func tableItemRows(itens []entity.NoteItem) []core.Row {
	result := make([]core.Row, 0, len(itens))
	for _, it := range itens {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(
				it.Quantity.StringFixed(0),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(5).Add(text.New(
				it.Description,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(2).Add(text.New(
				"R$ "+formatMoney(it.UnitPrice),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(1).Add(text.New(
				formatMoney(it.Discount),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(3).Add(text.New(
				"R$ "+formatMoney(it.NetLine()),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

func totalRow(total decimal.Decimal) core.Row {
	return row.New(12).Add(
		col.New(6),
		col.New(3).Add(
			text.New("VALOR TOTAL DA NOTA:", props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right,
				Color: colorPrimary, Right: 2, Top: 2,
			}),
		),
		col.New(3).Add(
			text.New("R$ "+formatMoney(total), props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right,
				Color: colorPrimary, Right: 1, Top: 2,
			}),
		),
	)
}

// fiscalFooterRows: chave de acesso + QR de consulta + protocolo.
func fiscalFooterRows(note *entity.FiscalNote) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("INFORMAÇÕES FISCAIS", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
		)),
	}

	if note.ChaveAcesso != "" {
		rows = append(rows, row.New(5).Add(col.New(12).Add(
			text.New("Chave de acesso:", props.Text{
				Style: fontstyle.Bold, Size: 7, Top: 1,
			}),
		)))
		rows = append(rows, row.New(4).Add(col.New(12).Add(
			text.New(groupDigits(note.ChaveAcesso, 4), props.Text{
				Size: 7, Color: colorGray, Top: 0.5, Left: 2,
			}),
		)))

		consulta := "https://www.nfe.fazenda.gov.br/portal/consultaRecaptcha.aspx?chNFe=" + note.ChaveAcesso
		rows = append(rows, row.New(3))
		rows = append(rows, row.New(50).Add(
			col.New(4).Add(code.NewQr(consulta, props.Rect{
				Percent: 95,
				Center:  true,
			})),
			col.New(8).Add(
				text.New("Consulte pela chave de acesso no portal\nnacional da NF-e ou pelo QR ao lado.", props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
				text.New("Protocolo de autorização:\n"+nonEmpty(note.Protocolo, "—"), props.Text{
					Style: fontstyle.Bold, Size: 9, Top: 22,
					Left: 3, Color: colorPrimary,
				}),
			),
		))
	}

	rows = append(rows, row.New(8).Add(col.New(12).Add(
		text.New(
			"Documento auxiliar da nota fiscal eletrônica. Não possui valor fiscal; "+
				"a validade é conferida pela consulta da chave de acesso no portal da SEFAZ.",
			props.Text{Size: 6.5, Color: colorGray, Top: 2},
		),
	)))

	return rows
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// formatMoney formata o decimal no padrão pt-BR com 2 casas.
func formatMoney(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return ptBR.Sprintf("%.2f", f)
}

// groupDigits agrupa a chave em blocos de 4 dígitos para leitura.
func groupDigits(s string, n int) string {
	out := make([]byte, 0, len(s)+len(s)/n)
	for i := 0; i < len(s); i++ {
		if i > 0 && i%n == 0 {
			out = append(out, ' ')
		}
		out = append(out, s[i])
	}
	return string(out)
}
