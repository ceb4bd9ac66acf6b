package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oficinapro/fiscal-api/internal/application/dto"
	"github.com/oficinapro/fiscal-api/internal/application/fiscal"
)

// FiscalClientHandler CRUD do cadastro de destinatários fiscais (protegido).
type FiscalClientHandler struct {
	uc *fiscal.ClientUseCase
}

// NewFiscalClientHandler constrói o handler.
func NewFiscalClientHandler(uc *fiscal.ClientUseCase) *FiscalClientHandler {
	return &FiscalClientHandler{uc: uc}
}

// Create cadastra um destinatário fiscal.
// POST /api/fiscal/clients
func (h *FiscalClientHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateFiscalClientRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	if in.Nome == "" || in.CpfCnpj == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "nome e cpfCnpj são obrigatórios"})
	}
	out, err := h.uc.Create(c.Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID busca um destinatário por ID.
// GET /api/fiscal/clients/:id
func (h *FiscalClientHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Update atualização parcial do destinatário.
// PUT /api/fiscal/clients/:id
func (h *FiscalClientHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateFiscalClientRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	out, err := h.uc.Update(c.Context(), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// List lista destinatários com paginação.
// GET /api/fiscal/clients
func (h *FiscalClientHandler) List(c *fiber.Ctx) error {
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

// Delete remove um destinatário.
// DELETE /api/fiscal/clients/:id
func (h *FiscalClientHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(c.Context(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
