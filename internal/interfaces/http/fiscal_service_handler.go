package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oficinapro/fiscal-api/internal/application/dto"
	"github.com/oficinapro/fiscal-api/internal/application/fiscal"
)

// FiscalServiceHandler CRUD do cadastro fiscal de serviços (protegido).
type FiscalServiceHandler struct {
	uc *fiscal.ServiceUseCase
}

// NewFiscalServiceHandler constrói o handler.
func NewFiscalServiceHandler(uc *fiscal.ServiceUseCase) *FiscalServiceHandler {
	return &FiscalServiceHandler{uc: uc}
}

// Create cadastra um serviço.
// POST /api/fiscal/services
func (h *FiscalServiceHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateFiscalServiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	if in.Descricao == "" || in.CodigoServico == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "descricao e codigoServico são obrigatórios"})
	}
	out, err := h.uc.Create(c.Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID busca um serviço por ID.
// GET /api/fiscal/services/:id
func (h *FiscalServiceHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Update atualização parcial do serviço.
// PUT /api/fiscal/services/:id
func (h *FiscalServiceHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateFiscalServiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	out, err := h.uc.Update(c.Context(), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// List lista serviços com paginação.
// GET /api/fiscal/services
func (h *FiscalServiceHandler) List(c *fiber.Ctx) error {
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

// Delete remove um serviço.
// DELETE /api/fiscal/services/:id
func (h *FiscalServiceHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(c.Context(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
