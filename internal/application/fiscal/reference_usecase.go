package fiscal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/oficinapro/fiscal-api/internal/application/dto"
	"github.com/oficinapro/fiscal-api/internal/domain"
	"github.com/oficinapro/fiscal-api/internal/domain/entity"
	"github.com/oficinapro/fiscal-api/internal/domain/repository"
	pkgnfe "github.com/oficinapro/fiscal-api/pkg/nfe"
)

// ClientUseCase CRUD do cadastro de destinatários fiscais. O CPF/CNPJ é
// validado pelos dígitos verificadores antes de qualquer escrita.
type ClientUseCase struct {
	repo repository.FiscalClientRepository
}

func NewClientUseCase(repo repository.FiscalClientRepository) *ClientUseCase {
	return &ClientUseCase{repo: repo}
}

// Create cadastra um destinatário.
func (uc *ClientUseCase) Create(ctx context.Context, in dto.CreateFiscalClientRequest) (*dto.FiscalClientResponse, error) {
	doc := pkgnfe.OnlyDigits(in.CpfCnpj)
	if !pkgnfe.IsValidCpfCnpj(doc) {
		return nil, domain.NewFiscalError(domain.KindInvalidTaxID, "CPF/CNPJ inválido")
	}
	now := time.Now()
	c := &entity.FiscalClient{
		ID:              uuid.New().String(),
		Nome:            in.Nome,
		CpfCnpj:         doc,
		IE:              in.IE,
		Email:           in.Email,
		Endereco:        in.Endereco,
		CodigoMunicipio: in.CodigoMunicipio,
		UF:              in.UF,
		CEP:             in.CEP,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := uc.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return dto.ToFiscalClientResponse(c), nil
}

// GetByID busca um destinatário por ID.
func (uc *ClientUseCase) GetByID(ctx context.Context, id string) (*dto.FiscalClientResponse, error) {
	c, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.ToFiscalClientResponse(c), nil
}

// Update atualização parcial do destinatário. Trocar o CPF/CNPJ exige
// documento válido.
func (uc *ClientUseCase) Update(ctx context.Context, id string, in dto.UpdateFiscalClientRequest) (*dto.FiscalClientResponse, error) {
	c, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Nome != nil {
		c.Nome = *in.Nome
	}
	if in.CpfCnpj != nil {
		doc := pkgnfe.OnlyDigits(*in.CpfCnpj)
		if !pkgnfe.IsValidCpfCnpj(doc) {
			return nil, domain.NewFiscalError(domain.KindInvalidTaxID, "CPF/CNPJ inválido")
		}
		c.CpfCnpj = doc
	}
	if in.IE != nil {
		c.IE = *in.IE
	}
	if in.Email != nil {
		c.Email = *in.Email
	}
	if in.Endereco != nil {
		c.Endereco = *in.Endereco
	}
	if in.CodigoMunicipio != nil {
		c.CodigoMunicipio = *in.CodigoMunicipio
	}
	if in.UF != nil {
		c.UF = *in.UF
	}
	if in.CEP != nil {
		c.CEP = *in.CEP
	}
	c.UpdatedAt = time.Now()
	if err := uc.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return dto.ToFiscalClientResponse(c), nil
}

// List lista destinatários com paginação.
func (uc *ClientUseCase) List(ctx context.Context, limit, offset int) (*dto.FiscalClientListResponse, error) {
	list, err := uc.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.FiscalClientResponse, 0, len(list))
	for _, c := range list {
		items = append(items, *dto.ToFiscalClientResponse(c))
	}
	return &dto.FiscalClientListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset},
	}, nil
}

// Delete remove um destinatário.
func (uc *ClientUseCase) Delete(ctx context.Context, id string) error {
	return uc.repo.Delete(ctx, id)
}

// ProductUseCase CRUD do cadastro fiscal de peças. O saldo físico vive à
// parte, em StockRepository, e só muda pelo pipeline ou pelo ajuste de
// inventário.
type ProductUseCase struct {
	repo  repository.FiscalProductRepository
	stock repository.StockRepository
}

func NewProductUseCase(repo repository.FiscalProductRepository, stock repository.StockRepository) *ProductUseCase {
	return &ProductUseCase{repo: repo, stock: stock}
}

// Create cadastra uma peça.
func (uc *ProductUseCase) Create(ctx context.Context, in dto.CreateFiscalProductRequest) (*dto.FiscalProductResponse, error) {
	if in.Unidade == "" {
		in.Unidade = "UN"
	}
	now := time.Now()
	p := &entity.FiscalProduct{
		ID:             uuid.New().String(),
		Codigo:         in.Codigo,
		Descricao:      in.Descricao,
		NCM:            in.NCM,
		CFOP:           in.CFOP,
		Unidade:        in.Unidade,
		Preco:          in.Preco,
		AliquotaICMS:   in.AliquotaICMS,
		AliquotaPIS:    in.AliquotaPIS,
		AliquotaCOFINS: in.AliquotaCOFINS,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return dto.ToFiscalProductResponse(p), nil
}

// GetByID busca uma peça por ID.
func (uc *ProductUseCase) GetByID(ctx context.Context, id string) (*dto.FiscalProductResponse, error) {
	p, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.ToFiscalProductResponse(p), nil
}

// Update atualização parcial da peça.
func (uc *ProductUseCase) Update(ctx context.Context, id string, in dto.UpdateFiscalProductRequest) (*dto.FiscalProductResponse, error) {
	p, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Codigo != nil {
		p.Codigo = *in.Codigo
	}
	if in.Descricao != nil {
		p.Descricao = *in.Descricao
	}
	if in.NCM != nil {
		p.NCM = *in.NCM
	}
	if in.CFOP != nil {
		p.CFOP = *in.CFOP
	}
	if in.Unidade != nil {
		p.Unidade = *in.Unidade
	}
	if in.Preco != nil {
		p.Preco = *in.Preco
	}
	if in.AliquotaICMS != nil {
		p.AliquotaICMS = *in.AliquotaICMS
	}
	if in.AliquotaPIS != nil {
		p.AliquotaPIS = *in.AliquotaPIS
	}
	if in.AliquotaCOFINS != nil {
		p.AliquotaCOFINS = *in.AliquotaCOFINS
	}
	p.UpdatedAt = time.Now()
	if err := uc.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return dto.ToFiscalProductResponse(p), nil
}

// List lista peças com paginação.
func (uc *ProductUseCase) List(ctx context.Context, limit, offset int) (*dto.FiscalProductListResponse, error) {
	list, err := uc.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.FiscalProductResponse, 0, len(list))
	for _, p := range list {
		items = append(items, *dto.ToFiscalProductResponse(p))
	}
	return &dto.FiscalProductListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset},
	}, nil
}

// Delete remove uma peça.
func (uc *ProductUseCase) Delete(ctx context.Context, id string) error {
	return uc.repo.Delete(ctx, id)
}

// GetStock devolve o saldo físico da peça.
func (uc *ProductUseCase) GetStock(ctx context.Context, productID string) (*dto.StockResponse, error) {
	if _, err := uc.repo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	s, err := uc.stock.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &dto.StockResponse{ProductID: s.ProductID, Quantity: s.Quantity, UpdatedAt: s.UpdatedAt}, nil
}

// SetStock define o saldo físico da peça (ajuste de inventário).
func (uc *ProductUseCase) SetStock(ctx context.Context, productID string, in dto.SetStockRequest) (*dto.StockResponse, error) {
	if in.Quantity.IsNegative() {
		return nil, domain.NewFiscalError(domain.KindInvalidInput, "quantidade não pode ser negativa")
	}
	if _, err := uc.repo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	s := &entity.Stock{ProductID: productID, Quantity: in.Quantity, UpdatedAt: time.Now()}
	if err := uc.stock.Upsert(ctx, s); err != nil {
		return nil, err
	}
	return &dto.StockResponse{ProductID: s.ProductID, Quantity: s.Quantity, UpdatedAt: s.UpdatedAt}, nil
}

// ServiceUseCase CRUD do cadastro fiscal de serviços.
type ServiceUseCase struct {
	repo repository.FiscalServiceRepository
}

func NewServiceUseCase(repo repository.FiscalServiceRepository) *ServiceUseCase {
	return &ServiceUseCase{repo: repo}
}

// Create cadastra um serviço.
func (uc *ServiceUseCase) Create(ctx context.Context, in dto.CreateFiscalServiceRequest) (*dto.FiscalServiceResponse, error) {
	now := time.Now()
	s := &entity.FiscalService{
		ID:               uuid.New().String(),
		Descricao:        in.Descricao,
		CodigoServico:    in.CodigoServico,
		CodigoTributacao: in.CodigoTributacao,
		AliquotaISS:      in.AliquotaISS,
		Preco:            in.Preco,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := uc.repo.Create(ctx, s); err != nil {
		return nil, err
	}
	return dto.ToFiscalServiceResponse(s), nil
}

// GetByID busca um serviço por ID.
func (uc *ServiceUseCase) GetByID(ctx context.Context, id string) (*dto.FiscalServiceResponse, error) {
	s, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.ToFiscalServiceResponse(s), nil
}

// Update atualização parcial do serviço.
func (uc *ServiceUseCase) Update(ctx context.Context, id string, in dto.UpdateFiscalServiceRequest) (*dto.FiscalServiceResponse, error) {
	s, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Descricao != nil {
		s.Descricao = *in.Descricao
	}
	if in.CodigoServico != nil {
		s.CodigoServico = *in.CodigoServico
	}
	if in.CodigoTributacao != nil {
		s.CodigoTributacao = *in.CodigoTributacao
	}
	if in.AliquotaISS != nil {
		s.AliquotaISS = *in.AliquotaISS
	}
	if in.Preco != nil {
		s.Preco = *in.Preco
	}
	s.UpdatedAt = time.Now()
	if err := uc.repo.Update(ctx, s); err != nil {
		return nil, err
	}
	return dto.ToFiscalServiceResponse(s), nil
}

// List lista serviços com paginação.
func (uc *ServiceUseCase) List(ctx context.Context, limit, offset int) (*dto.FiscalServiceListResponse, error) {
	list, err := uc.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.FiscalServiceResponse, 0, len(list))
	for _, s := range list {
		items = append(items, *dto.ToFiscalServiceResponse(s))
	}
	return &dto.FiscalServiceListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset},
	}, nil
}

// Delete remove um serviço.
func (uc *ServiceUseCase) Delete(ctx context.Context, id string) error {
	return uc.repo.Delete(ctx, id)
}
