package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oficinapro/fiscal-api/internal/application/dto"
	"github.com/oficinapro/fiscal-api/internal/application/fiscal"
)

// FiscalProductHandler CRUD do cadastro fiscal de peças e do saldo físico
// (protegido).
type FiscalProductHandler struct {
	uc *fiscal.ProductUseCase
}

// NewFiscalProductHandler constrói o handler.
func NewFiscalProductHandler(uc *fiscal.ProductUseCase) *FiscalProductHandler {
	return &FiscalProductHandler{uc: uc}
}

// Create cadastra uma peça.
// POST /api/fiscal/products
func (h *FiscalProductHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateFiscalProductRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	if in.Codigo == "" || in.Descricao == "" || len(in.NCM) != 8 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "codigo, descricao e ncm (8 dígitos) são obrigatórios"})
	}
	out, err := h.uc.Create(c.Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID busca uma peça por ID.
// GET /api/fiscal/products/:id
func (h *FiscalProductHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Update atualização parcial da peça.
// PUT /api/fiscal/products/:id
func (h *FiscalProductHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateFiscalProductRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	out, err := h.uc.Update(c.Context(), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// List lista peças com paginação.
// GET /api/fiscal/products
func (h *FiscalProductHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginação inválida"})
	}
	page.DefaultPage()
	out, err := h.uc.List(c.Context(), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Delete remove uma peça.
// DELETE /api/fiscal/products/:id
func (h *FiscalProductHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(c.Context(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetStock devolve o saldo físico da peça.
// GET /api/fiscal/products/:id/stock
func (h *FiscalProductHandler) GetStock(c *fiber.Ctx) error {
	out, err := h.uc.GetStock(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// SetStock define o saldo físico da peça (ajuste de inventário).
// PUT /api/fiscal/products/:id/stock
func (h *FiscalProductHandler) SetStock(c *fiber.Ctx) error {
	var in dto.SetStockRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	out, err := h.uc.SetStock(c.Context(), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}
