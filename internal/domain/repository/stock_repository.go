package repository

import (
	"context"

	"github.com/oficinapro/fiscal-api/internal/domain/entity"
)

// StockRepository saldo físico das peças. GetForUpdate deve bloquear a linha
// (SELECT FOR UPDATE) para serializar débitos concorrentes do mesmo produto.
type StockRepository interface {
	Get(ctx context.Context, productID string) (*entity.Stock, error)
	GetForUpdate(ctx context.Context, productID string) (*entity.Stock, error)
	Upsert(ctx context.Context, stock *entity.Stock) error
}
