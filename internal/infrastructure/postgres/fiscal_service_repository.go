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

var _ repository.FiscalServiceRepository = (*FiscalServiceRepo)(nil)

// FiscalServiceRepo cadastro fiscal de serviços para NFS-e (usável com pool ou tx).
type FiscalServiceRepo struct {
	q Querier
}

func NewFiscalServiceRepository(q Querier) *FiscalServiceRepo {
	return &FiscalServiceRepo{q: q}
}

func (r *FiscalServiceRepo) Create(ctx context.Context, s *entity.FiscalService) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	query := `
		INSERT INTO fiscal_services (id, descricao, codigo_servico, codigo_tributacao, aliquota_iss, preco, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())`
	_, err := r.q.Exec(ctx, query,
		s.ID, s.Descricao, s.CodigoServico, s.CodigoTributacao, s.AliquotaISS, s.Preco,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert fiscal service: %w", err)
	}
	return nil
}

func (r *FiscalServiceRepo) Update(ctx context.Context, s *entity.FiscalService) error {
	query := `
		UPDATE fiscal_services
		SET descricao = $2, codigo_servico = $3, codigo_tributacao = $4, aliquota_iss = $5, preco = $6, updated_at = now()
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		s.ID, s.Descricao, s.CodigoServico, s.CodigoTributacao, s.AliquotaISS, s.Preco,
	)
	if err != nil {
		return fmt.Errorf("update fiscal service: %w", err)
	}
	return nil
}

func (r *FiscalServiceRepo) GetByID(ctx context.Context, id string) (*entity.FiscalService, error) {
	query := `
		SELECT id, descricao, codigo_servico, codigo_tributacao, aliquota_iss, preco, created_at, updated_at
		FROM fiscal_services WHERE id = $1`
	var s entity.FiscalService
	err := r.q.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.Descricao, &s.CodigoServico, &s.CodigoTributacao, &s.AliquotaISS, &s.Preco,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get fiscal service: %w", err)
	}
	return &s, nil
}

func (r *FiscalServiceRepo) List(ctx context.Context, limit, offset int) ([]*entity.FiscalService, error) {
	query := `
		SELECT id, descricao, codigo_servico, codigo_tributacao, aliquota_iss, preco, created_at, updated_at
		FROM fiscal_services ORDER BY descricao LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list fiscal services: %w", err)
	}
	defer rows.Close()
	var list []*entity.FiscalService
	for rows.Next() {
		var s entity.FiscalService
		if err := rows.Scan(&s.ID, &s.Descricao, &s.CodigoServico, &s.CodigoTributacao,
			&s.AliquotaISS, &s.Preco, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan fiscal service: %w", err)
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

func (r *FiscalServiceRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM fiscal_services WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete fiscal service: %w", err)
	}
	return nil
}
