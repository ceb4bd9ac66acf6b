// Package fiscal contém validações de domínio para a emissão de nota fiscal
// eletrônica, aplicadas antes de qualquer chamada de transporte.
package fiscal

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/oficinapro/fiscal-api/internal/domain"
	"github.com/oficinapro/fiscal-api/internal/domain/entity"
	"github.com/oficinapro/fiscal-api/pkg/nfe"
)

// ErrInvalidNote agrupa erros de validação da nota.
var ErrInvalidNote = errors.New("nota inválida para emissão")

// ValidateIssuance valida destinatário e itens antes de montar o documento.
// Documento do tomador com dígito verificador inválido falha com
// KindInvalidTaxID; nada é enviado ao provedor nesse caso.
func ValidateIssuance(client *entity.FiscalClient, items []entity.NoteItem) error {
	if client == nil {
		return fmt.Errorf("%w: destinatário nulo", ErrInvalidNote)
	}
	if !nfe.IsValidCpfCnpj(client.CpfCnpj) {
		return domain.NewFiscalError(domain.KindInvalidTaxID,
			fmt.Sprintf("CPF/CNPJ do destinatário inválido: %q", client.CpfCnpj))
	}
	if len(items) == 0 {
		return domain.WrapFiscal(domain.KindInvalidInput, "a nota deve ter ao menos um item", ErrInvalidNote)
	}
	var errs []error
	for i, it := range items {
		if !it.Quantity.GreaterThan(decimal.Zero) {
			errs = append(errs, fmt.Errorf("item %d: quantidade deve ser positiva", i+1))
		}
		if it.UnitPrice.LessThan(decimal.Zero) {
			errs = append(errs, fmt.Errorf("item %d: preço unitário negativo", i+1))
		}
		if it.Discount.LessThan(decimal.Zero) || it.Discount.GreaterThan(it.LineTotal()) {
			errs = append(errs, fmt.Errorf("item %d: desconto fora do intervalo [0, total da linha]", i+1))
		}
	}
	if len(errs) > 0 {
		return domain.WrapFiscal(domain.KindInvalidInput, "itens inválidos",
			errors.Join(append([]error{ErrInvalidNote}, errs...)...))
	}
	return nil
}

// TotalOf soma o líquido das linhas com a mesma política de arredondamento do
// builder (meia para cima, 2 casas por linha), garantindo que o total da
// entidade feche com o total do XML.
func TotalOf(items []entity.NoteItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.NetLine())
	}
	return total.Round(2)
}
