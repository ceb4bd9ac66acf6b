package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oficinapro/fiscal-api/internal/application/dto"
	"github.com/oficinapro/fiscal-api/internal/application/fiscal"
	"github.com/oficinapro/fiscal-api/pkg/logger"
)

// WebhookHandler recebe confirmações de pagamento do gateway. Sempre responde
// 200: falha interna não pode provocar tempestade de reentregas; o erro fica
// no log e a nota, quando criada, fica REJECTED com o motivo.
type WebhookHandler struct {
	ingestor *fiscal.WebhookIngestor
	log      *logger.Logger
}

// NewWebhookHandler constrói o handler.
func NewWebhookHandler(ingestor *fiscal.WebhookIngestor, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor, log: log}
}

// Receive processa um evento do gateway de pagamento.
// POST /api/fiscal/webhooks/payment
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	var in dto.WebhookEventRequest
	if err := c.BodyParser(&in); err != nil {
		h.log.Warn().Err(err).Msg("webhook com corpo ilegível")
		return c.SendStatus(fiber.StatusOK)
	}
	note, err := h.ingestor.Ingest(c.Context(), &fiscal.WebhookEvent{
		Type:     in.Type,
		OrderID:  in.OrderID,
		ClientID: in.ClientID,
		Items:    dto.ItemsToEntity(in.Items),
	})
	if err != nil {
		h.log.Error().Err(err).Str("tipo", in.Type).Str("order_id", in.OrderID).
			Msg("falha ao processar webhook de pagamento")
		return c.SendStatus(fiber.StatusOK)
	}
	if note == nil {
		return c.SendStatus(fiber.StatusOK)
	}
	return c.Status(fiber.StatusOK).JSON(dto.ToFiscalNoteResponse(note))
}
