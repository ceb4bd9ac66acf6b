package repository

import (
	"context"

	"github.com/oficinapro/fiscal-api/internal/domain/entity"
)

// FiscalNoteRepository persiste notas fiscais e o sequencial por tipo.
type FiscalNoteRepository interface {
	Create(ctx context.Context, note *entity.FiscalNote) error
	Update(ctx context.Context, note *entity.FiscalNote) error
	GetByID(ctx context.Context, id string) (*entity.FiscalNote, error)
	// GetAuthorizedByOrderID devolve a nota AUTHORIZED da ordem, ou nil.
	// Guarda de idempotência do webhook; o índice único parcial em
	// (order_id) WHERE status='AUTHORIZED' fecha a janela de corrida.
	GetAuthorizedByOrderID(ctx context.Context, orderID string) (*entity.FiscalNote, error)
	List(ctx context.Context, kind string, limit, offset int) ([]*entity.FiscalNote, error)
	// NextNumber consome e devolve o próximo número do tipo (estritamente
	// crescente, sem furos; números de notas depois rejeitadas não voltam).
	NextNumber(ctx context.Context, kind string) (int64, error)
}
