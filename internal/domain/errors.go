package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifica as falhas do subsistema fiscal. O enum é fechado:
// handlers e chamadores decidem status HTTP e retry olhando só para o Kind.
type ErrorKind string

const (
	KindInvalidTaxID            ErrorKind = "INVALID_TAX_ID"
	KindInvalidInput            ErrorKind = "INVALID_INPUT"
	KindCertificateExpired      ErrorKind = "CERTIFICATE_EXPIRED"
	KindCertificateInvalid      ErrorKind = "CERTIFICATE_INVALID"
	KindProviderTimeout         ErrorKind = "PROVIDER_TIMEOUT" // retentável
	KindProviderRejected        ErrorKind = "PROVIDER_REJECTED"
	KindProviderError           ErrorKind = "PROVIDER_ERROR"
	KindNoteNotFound            ErrorKind = "NOTE_NOT_FOUND"
	KindInsufficientStock       ErrorKind = "INSUFFICIENT_STOCK"
	KindUnsupportedMunicipality ErrorKind = "UNSUPPORTED_MUNICIPALITY"
	KindEmailDispatch           ErrorKind = "EMAIL_DISPATCH"
	KindDocumentBuild           ErrorKind = "DOCUMENT_BUILD"
	KindSignature               ErrorKind = "SIGNATURE"
)

// FiscalError carrega um Kind fixo mais mensagem legível e causa opcional.
// Substitui payloads abertos: todo detalhe estruturado vive em campos tipados.
type FiscalError struct {
	Kind    ErrorKind
	Message string
	Err     error // causa encadeada, opcional
}

func (e *FiscalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FiscalError) Unwrap() error { return e.Err }

// NewFiscalError cria um erro classificado.
func NewFiscalError(kind ErrorKind, message string) *FiscalError {
	return &FiscalError{Kind: kind, Message: message}
}

// WrapFiscal classifica uma causa existente.
func WrapFiscal(kind ErrorKind, message string, err error) *FiscalError {
	return &FiscalError{Kind: kind, Message: message, Err: err}
}

// KindOf devolve o Kind de um erro, ou "" se não for FiscalError.
func KindOf(err error) ErrorKind {
	var fe *FiscalError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsRetryable indica se a falha admite nova tentativa (somente timeout de provedor).
func IsRetryable(err error) bool {
	return KindOf(err) == KindProviderTimeout
}

// Sentinelas de uso geral (CRUD e transições).
var (
	ErrNotFound          = errors.New("recurso não encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrConflict          = errors.New("conflito com o estado atual")
	ErrInsufficientStock = errors.New("estoque insuficiente")
	ErrInvalidTransition = errors.New("transição de status inválida")
)
