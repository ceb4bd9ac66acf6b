package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oficinapro/fiscal-api/internal/domain/repository"
)

// TxRunner executa callbacks dentro de uma transação PostgreSQL. O débito de
// estoque pós-autorização roda inteiro por aqui: ou todas as linhas debitam,
// ou nenhuma.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run abre a transação, executa fn com repositórios atados à tx e faz
// Commit ou Rollback conforme o retorno.
func (r *TxRunner) Run(ctx context.Context, fn func(
	noteRepo repository.FiscalNoteRepository,
	stockRepo repository.StockRepository,
	productRepo repository.FiscalProductRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	noteRepo := NewFiscalNoteRepository(tx)
	stockRepo := NewStockRepository(tx)
	productRepo := NewFiscalProductRepository(tx)

	if err := fn(noteRepo, stockRepo, productRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
