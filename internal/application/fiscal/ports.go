package fiscal

import (
	"context"
	"crypto/tls"
	"time"

	infranfe "github.com/oficinapro/fiscal-api/internal/infrastructure/nfe"
	"github.com/oficinapro/fiscal-api/internal/infrastructure/nfse"

	"github.com/oficinapro/fiscal-api/internal/domain/entity"
	"github.com/oficinapro/fiscal-api/internal/domain/repository"
	"github.com/oficinapro/fiscal-api/pkg/config"
)

// Portos de saída do orquestrador. As implementações concretas vivem em
// internal/infrastructure; os tests injetam fakes.

// DocumentBuilder monta o XML da NF-e sem assinatura.
type DocumentBuilder interface {
	Build(ctx *infranfe.BuildContext) (*infranfe.BuildResult, error)
}

// EventBuilder monta o XML dos eventos pós-autorização.
type EventBuilder interface {
	BuildCancelamento(ctx *infranfe.EventContext, justificativa string) ([]byte, error)
	BuildCartaCorrecao(ctx *infranfe.EventContext, correcao string) ([]byte, error)
}

// ResponseParser interpreta respostas brutas da SEFAZ.
type ResponseParser interface {
	Parse(raw []byte) *infranfe.ProviderResponse
}

// CertProvider resolve o certificado A1 vigente do emitente. A carga valida
// vigência e tipo de chave; certificado vencido falha aqui, antes de qualquer
// transporte.
type CertProvider func() (tls.Certificate, error)

// PDFGenerator produz o DANFE da nota autorizada.
type PDFGenerator interface {
	Generate(ctx context.Context, note *entity.FiscalNote, emitente config.FiscalConfig,
		cliente *entity.FiscalClient, itens []entity.NoteItem) ([]byte, error)
}

// EmailSender despacha o DANFE para o e-mail do cliente.
type EmailSender interface {
	SendDANFE(ctx context.Context, to, subject, body string, pdf []byte, filename string) error
}

// TxRunner executa fn dentro de uma transação com repositórios atados a ela.
// Usado pelo débito de estoque pós-autorização.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		noteRepo repository.FiscalNoteRepository,
		stockRepo repository.StockRepository,
		productRepo repository.FiscalProductRepository,
	) error) error
}

// PollScheduler agenda a consulta futura de um recibo. Uma entrada por nota;
// reagendar substitui, cancelar remove. A implementação padrão é em processo
// (não sobrevive a restart; a nota fica em AWAITING e pode ser consultada
// manualmente).
type PollScheduler interface {
	Schedule(noteID string, delay time.Duration, fn func())
	Cancel(noteID string)
}

// NfseRegistry resolve a estratégia de NFS-e pelo código IBGE do município.
type NfseRegistry interface {
	For(codigoMunicipio string) (nfse.Strategy, error)
}
