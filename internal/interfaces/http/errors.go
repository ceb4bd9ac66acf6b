package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/oficinapro/fiscal-api/internal/application/dto"
	"github.com/oficinapro/fiscal-api/internal/domain"
)

// respondError traduz erros do domínio para status HTTP. O Kind do FiscalError
// é a única fonte da decisão; a mensagem vai no corpo sem reformatação.
func respondError(c *fiber.Ctx, err error) error {
	var fe *domain.FiscalError
	if errors.As(err, &fe) {
		return c.Status(statusForKind(fe.Kind)).JSON(dto.ErrorResponse{
			Code:    string(fe.Kind),
			Message: fe.Message,
		})
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso não encontrado"})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: "recurso duplicado"})
	case errors.Is(err, domain.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INVALID_TRANSITION", Message: "transição de status inválida"})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: "conflito com o estado atual"})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "dados inválidos"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidTaxID, domain.KindInvalidInput:
		return fiber.StatusBadRequest
	case domain.KindNoteNotFound:
		return fiber.StatusNotFound
	case domain.KindInsufficientStock:
		return fiber.StatusConflict
	case domain.KindProviderRejected, domain.KindUnsupportedMunicipality:
		return fiber.StatusUnprocessableEntity
	case domain.KindProviderTimeout:
		return fiber.StatusGatewayTimeout
	case domain.KindProviderError:
		return fiber.StatusBadGateway
	default:
		// CertificateExpired/Invalid, Signature, DocumentBuild, EmailDispatch:
		// falhas do lado do emitente, não do chamador.
		return fiber.StatusInternalServerError
	}
}
