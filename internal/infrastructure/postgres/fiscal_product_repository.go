package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oficinapro/fiscal-api/internal/domain"
	"github.com/oficinapro/fiscal-api/internal/domain/entity"
	"github.com/oficinapro/fiscal-api/internal/domain/repository"
)

var _ repository.FiscalProductRepository = (*FiscalProductRepo)(nil)

// FiscalProductRepo cadastro fiscal de peças (usável com pool ou tx).
type FiscalProductRepo struct {
	q Querier
}

func NewFiscalProductRepository(q Querier) *FiscalProductRepo {
	return &FiscalProductRepo{q: q}
}

// Create persiste uma peça. Código duplicado vira ErrDuplicate.
func (r *FiscalProductRepo) Create(ctx context.Context, p *entity.FiscalProduct) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	query := `
		INSERT INTO fiscal_products (id, codigo, descricao, ncm, cfop, unidade, preco, aliquota_icms, aliquota_pis, aliquota_cofins, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.Codigo, p.Descricao, p.NCM, p.CFOP, p.Unidade,
		p.Preco, p.AliquotaICMS, p.AliquotaPIS, p.AliquotaCOFINS,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert fiscal product: %w", err)
	}
	return nil
}

func (r *FiscalProductRepo) Update(ctx context.Context, p *entity.FiscalProduct) error {
	query := `
		UPDATE fiscal_products
		SET codigo = $2, descricao = $3, ncm = $4, cfop = $5, unidade = $6,
		    preco = $7, aliquota_icms = $8, aliquota_pis = $9, aliquota_cofins = $10,
		    updated_at = now()
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.Codigo, p.Descricao, p.NCM, p.CFOP, p.Unidade,
		p.Preco, p.AliquotaICMS, p.AliquotaPIS, p.AliquotaCOFINS,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("update fiscal product: %w", err)
	}
	return nil
}

func (r *FiscalProductRepo) GetByID(ctx context.Context, id string) (*entity.FiscalProduct, error) {
	query := `
		SELECT id, codigo, descricao, ncm, cfop, unidade, preco, aliquota_icms, aliquota_pis, aliquota_cofins, created_at, updated_at
		FROM fiscal_products WHERE id = $1`
	var p entity.FiscalProduct
	err := r.q.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Codigo, &p.Descricao, &p.NCM, &p.CFOP, &p.Unidade,
		&p.Preco, &p.AliquotaICMS, &p.AliquotaPIS, &p.AliquotaCOFINS,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get fiscal product: %w", err)
	}
	return &p, nil
}

func (r *FiscalProductRepo) List(ctx context.Context, limit, offset int) ([]*entity.FiscalProduct, error) {
	query := `
		SELECT id, codigo, descricao, ncm, cfop, unidade, preco, aliquota_icms, aliquota_pis, aliquota_cofins, created_at, updated_at
		FROM fiscal_products ORDER BY codigo LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list fiscal products: %w", err)
	}
	defer rows.Close()
	var list []*entity.FiscalProduct
	for rows.Next() {
		var p entity.FiscalProduct
		if err := rows.Scan(&p.ID, &p.Codigo, &p.Descricao, &p.NCM, &p.CFOP, &p.Unidade,
			&p.Preco, &p.AliquotaICMS, &p.AliquotaPIS, &p.AliquotaCOFINS,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan fiscal product: %w", err)
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

func (r *FiscalProductRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM fiscal_products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete fiscal product: %w", err)
	}
	return nil
}
