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

var _ repository.FiscalClientRepository = (*FiscalClientRepo)(nil)

// FiscalClientRepo cadastro de destinatários fiscais (usável com pool ou tx).
type FiscalClientRepo struct {
	q Querier
}

func NewFiscalClientRepository(q Querier) *FiscalClientRepo {
	return &FiscalClientRepo{q: q}
}

// Create persiste um destinatário. CPF/CNPJ duplicado vira ErrDuplicate.
func (r *FiscalClientRepo) Create(ctx context.Context, c *entity.FiscalClient) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO fiscal_clients (id, nome, cpf_cnpj, ie, email, endereco, codigo_municipio, uf, cep, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`
	_, err := r.q.Exec(ctx, query,
		c.ID, c.Nome, c.CpfCnpj, c.IE, c.Email, c.Endereco, c.CodigoMunicipio, c.UF, c.CEP,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert fiscal client: %w", err)
	}
	return nil
}

func (r *FiscalClientRepo) Update(ctx context.Context, c *entity.FiscalClient) error {
	query := `
		UPDATE fiscal_clients
		SET nome = $2, cpf_cnpj = $3, ie = $4, email = $5, endereco = $6,
		    codigo_municipio = $7, uf = $8, cep = $9, updated_at = now()
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		c.ID, c.Nome, c.CpfCnpj, c.IE, c.Email, c.Endereco, c.CodigoMunicipio, c.UF, c.CEP,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("update fiscal client: %w", err)
	}
	return nil
}

func (r *FiscalClientRepo) GetByID(ctx context.Context, id string) (*entity.FiscalClient, error) {
	query := `
		SELECT id, nome, cpf_cnpj, ie, email, endereco, codigo_municipio, uf, cep, created_at, updated_at
		FROM fiscal_clients WHERE id = $1`
	var c entity.FiscalClient
	err := r.q.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Nome, &c.CpfCnpj, &c.IE, &c.Email, &c.Endereco, &c.CodigoMunicipio, &c.UF, &c.CEP,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get fiscal client: %w", err)
	}
	return &c, nil
}

func (r *FiscalClientRepo) List(ctx context.Context, limit, offset int) ([]*entity.FiscalClient, error) {
	query := `
		SELECT id, nome, cpf_cnpj, ie, email, endereco, codigo_municipio, uf, cep, created_at, updated_at
		FROM fiscal_clients ORDER BY nome LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list fiscal clients: %w", err)
	}
	defer rows.Close()
	var list []*entity.FiscalClient
	for rows.Next() {
		var c entity.FiscalClient
		if err := rows.Scan(&c.ID, &c.Nome, &c.CpfCnpj, &c.IE, &c.Email, &c.Endereco,
			&c.CodigoMunicipio, &c.UF, &c.CEP, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan fiscal client: %w", err)
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

func (r *FiscalClientRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM fiscal_clients WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete fiscal client: %w", err)
	}
	return nil
}
