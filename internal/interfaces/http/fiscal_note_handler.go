package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oficinapro/fiscal-api/internal/application/dto"
	"github.com/oficinapro/fiscal-api/internal/application/fiscal"
	"github.com/oficinapro/fiscal-api/internal/domain/entity"
	"github.com/oficinapro/fiscal-api/internal/domain/repository"
)

// FiscalNoteHandler rotas de emissão e ciclo de vida das notas (protegido).
type FiscalNoteHandler struct {
	orchestrator *fiscal.LifecycleOrchestrator
	noteRepo     repository.FiscalNoteRepository
}

// NewFiscalNoteHandler constrói o handler.
func NewFiscalNoteHandler(orchestrator *fiscal.LifecycleOrchestrator,
	noteRepo repository.FiscalNoteRepository) *FiscalNoteHandler {
	return &FiscalNoteHandler{orchestrator: orchestrator, noteRepo: noteRepo}
}

// Issue emite uma NF-e de produto para uma ordem de serviço.
// POST /api/fiscal/notes
func (h *FiscalNoteHandler) Issue(c *fiber.Ctx) error {
	var in dto.IssueNoteRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	if in.OrderID == "" || in.ClientID == "" || len(in.Items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "orderId, clientId e items são obrigatórios"})
	}
	note, err := h.orchestrator.Issue(c.Context(), &fiscal.IssueInput{
		OrderID:  in.OrderID,
		ClientID: in.ClientID,
		Items:    dto.ItemsToEntity(in.Items),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToFiscalNoteResponse(note))
}

// IssueService emite uma NFS-e de serviço pela estratégia do município do tomador.
// POST /api/fiscal/notes/service
func (h *FiscalNoteHandler) IssueService(c *fiber.Ctx) error {
	var in dto.IssueServiceNoteRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	if in.OrderID == "" || in.ClientID == "" || in.ServiceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "orderId, clientId e serviceId são obrigatórios"})
	}
	note, err := h.orchestrator.IssueService(c.Context(), &fiscal.ServiceIssueInput{
		OrderID:    in.OrderID,
		ClientID:   in.ClientID,
		ServiceID:  in.ServiceID,
		Quantidade: in.Quantidade,
		Descricao:  in.Descricao,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToFiscalNoteResponse(note))
}

// GetByID devolve uma nota pelo ID.
// GET /api/fiscal/notes/:id
func (h *FiscalNoteHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id obrigatório"})
	}
	note, err := h.noteRepo.GetByID(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToFiscalNoteResponse(note))
}

// List lista notas, opcionalmente filtradas por tipo (?kind=PRODUCT|SERVICE).
// GET /api/fiscal/notes
func (h *FiscalNoteHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginação inválida"})
	}
	page.DefaultPage()
	kind := c.Query("kind")
	if kind != "" && kind != entity.NoteKindProduct && kind != entity.NoteKindService {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "kind deve ser PRODUCT ou SERVICE"})
	}
	notes, err := h.noteRepo.List(c.Context(), kind, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	items := make([]dto.FiscalNoteResponse, 0, len(notes))
	for _, n := range notes {
		items = append(items, *dto.ToFiscalNoteResponse(n))
	}
	return c.JSON(dto.FiscalNoteListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// Cancel cancela uma nota autorizada (evento 110111).
// POST /api/fiscal/notes/:id/cancel
func (h *FiscalNoteHandler) Cancel(c *fiber.Ctx) error {
	id := c.Params("id")
	var in dto.CancelNoteRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	note, err := h.orchestrator.Cancel(c.Context(), id, in.Justificativa)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToFiscalNoteResponse(note))
}

// Correct registra uma carta de correção eletrônica (evento 110110).
// POST /api/fiscal/notes/:id/correct
func (h *FiscalNoteHandler) Correct(c *fiber.Ctx) error {
	id := c.Params("id")
	var in dto.CorrectNoteRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	note, err := h.orchestrator.Correct(c.Context(), id, in.Correcao)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToFiscalNoteResponse(note))
}

// Poll força a consulta do recibo de uma nota em AWAITING. Útil depois de um
// restart, quando o agendamento em memória se perdeu.
// POST /api/fiscal/notes/:id/poll
func (h *FiscalNoteHandler) Poll(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id obrigatório"})
	}
	if err := h.orchestrator.Poll(c.Context(), id); err != nil {
		return respondError(c, err)
	}
	note, err := h.noteRepo.GetByID(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToFiscalNoteResponse(note))
}

// GetDANFE devolve o PDF do DANFE de uma nota autorizada.
// GET /api/fiscal/notes/:id/danfe
func (h *FiscalNoteHandler) GetDANFE(c *fiber.Ctx) error {
	id := c.Params("id")
	note, err := h.noteRepo.GetByID(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if len(note.PDF) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "DANFE ainda não gerado"})
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	return c.Send(note.PDF)
}

// GetXML devolve o XML assinado enviado ao provedor.
// GET /api/fiscal/notes/:id/xml
func (h *FiscalNoteHandler) GetXML(c *fiber.Ctx) error {
	id := c.Params("id")
	note, err := h.noteRepo.GetByID(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if note.XMLAssinado == "" {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "nota sem XML assinado"})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	return c.SendString(note.XMLAssinado)
}
