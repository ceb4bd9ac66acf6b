package repository

import (
	"context"

	"github.com/oficinapro/fiscal-api/internal/domain/entity"
)

// FiscalClientRepository cadastro de destinatários fiscais.
type FiscalClientRepository interface {
	Create(ctx context.Context, c *entity.FiscalClient) error
	Update(ctx context.Context, c *entity.FiscalClient) error
	GetByID(ctx context.Context, id string) (*entity.FiscalClient, error)
	List(ctx context.Context, limit, offset int) ([]*entity.FiscalClient, error)
	Delete(ctx context.Context, id string) error
}

// FiscalProductRepository cadastro fiscal de peças.
type FiscalProductRepository interface {
	Create(ctx context.Context, p *entity.FiscalProduct) error
	Update(ctx context.Context, p *entity.FiscalProduct) error
	GetByID(ctx context.Context, id string) (*entity.FiscalProduct, error)
	List(ctx context.Context, limit, offset int) ([]*entity.FiscalProduct, error)
	Delete(ctx context.Context, id string) error
}

// FiscalServiceRepository cadastro fiscal de serviços (NFS-e).
type FiscalServiceRepository interface {
	Create(ctx context.Context, s *entity.FiscalService) error
	Update(ctx context.Context, s *entity.FiscalService) error
	GetByID(ctx context.Context, id string) (*entity.FiscalService, error)
	List(ctx context.Context, limit, offset int) ([]*entity.FiscalService, error)
	Delete(ctx context.Context, id string) error
}
