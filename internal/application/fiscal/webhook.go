package fiscal

import (
	"context"
	"errors"
	"fmt"

	"github.com/oficinapro/fiscal-api/internal/domain"
	"github.com/oficinapro/fiscal-api/internal/domain/entity"
	"github.com/oficinapro/fiscal-api/internal/domain/repository"
	"github.com/oficinapro/fiscal-api/pkg/logger"
)

// Eventos do gateway de pagamento que disparam emissão automática.
var defaultAllowedEvents = map[string]struct{}{
	"payment.approved":  {},
	"payment.confirmed": {},
	"order.paid":        {},
}

// WebhookEvent evento de confirmação de pagamento como chega do gateway.
type WebhookEvent struct {
	Type     string
	OrderID  string
	ClientID string
	Items    []entity.NoteItem
}

// WebhookIngestor traduz confirmações de pagamento em emissões. Idempotente
// por ordem: uma ordem com nota AUTHORIZED nunca gera segunda nota, mesmo com
// entregas repetidas ou concorrentes do webhook.
type WebhookIngestor struct {
	noteRepo     repository.FiscalNoteRepository
	orchestrator *LifecycleOrchestrator
	allowed      map[string]struct{}
	log          *logger.Logger
}

func NewWebhookIngestor(noteRepo repository.FiscalNoteRepository,
	orchestrator *LifecycleOrchestrator, log *logger.Logger) *WebhookIngestor {
	return &WebhookIngestor{
		noteRepo:     noteRepo,
		orchestrator: orchestrator,
		allowed:      defaultAllowedEvents,
		log:          log,
	}
}

// Ingest processa o evento. Tipo fora da lista de confirmações é um no-op
// silencioso (nil, nil); ordem já autorizada devolve a nota existente.
func (w *WebhookIngestor) Ingest(ctx context.Context, evt *WebhookEvent) (*entity.FiscalNote, error) {
	if _, ok := w.allowed[evt.Type]; !ok {
		w.log.Debug().Str("tipo", evt.Type).Msg("evento de webhook ignorado")
		return nil, nil
	}
	if evt.OrderID == "" || evt.ClientID == "" {
		return nil, domain.NewFiscalError(domain.KindInvalidInput,
			"evento de confirmação exige orderId e clientId")
	}

	existing, err := w.noteRepo.GetAuthorizedByOrderID(ctx, evt.OrderID)
	if err != nil {
		return nil, fmt.Errorf("consultar nota da ordem %s: %w", evt.OrderID, err)
	}
	if existing != nil {
		w.log.Info().Str("order_id", evt.OrderID).Str("note_id", existing.ID).
			Msg("ordem já autorizada; webhook é no-op")
		return existing, nil
	}

	note, err := w.orchestrator.Issue(ctx, &IssueInput{
		OrderID:  evt.OrderID,
		ClientID: evt.ClientID,
		Items:    evt.Items,
	})
	if err != nil {
		// Corrida entre entregas simultâneas: a outra já autorizou.
		if errors.Is(err, domain.ErrDuplicate) {
			if existing, gErr := w.noteRepo.GetAuthorizedByOrderID(ctx, evt.OrderID); gErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return note, nil
}
