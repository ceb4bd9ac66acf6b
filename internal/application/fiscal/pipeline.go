package fiscal

import (
	"context"
	"fmt"

	"github.com/oficinapro/fiscal-api/internal/domain"
	"github.com/oficinapro/fiscal-api/internal/domain/entity"
	"github.com/oficinapro/fiscal-api/internal/domain/repository"
	"github.com/oficinapro/fiscal-api/pkg/config"
	"github.com/oficinapro/fiscal-api/pkg/logger"
)

// PostAuthorizationPipeline executa os efeitos de uma nota AUTHORIZED:
// débito de estoque, DANFE e e-mail. Nenhuma falha aqui reverte a
// autorização; cada etapa falha isolada e fica no log.
type PostAuthorizationPipeline struct {
	tx       TxRunner
	noteRepo repository.FiscalNoteRepository
	pdf      PDFGenerator
	mail     EmailSender
	emitente config.FiscalConfig
	log      *logger.Logger
}

func NewPostAuthorizationPipeline(
	tx TxRunner,
	noteRepo repository.FiscalNoteRepository,
	pdf PDFGenerator,
	mail EmailSender,
	emitente config.FiscalConfig,
	log *logger.Logger,
) *PostAuthorizationPipeline {
	return &PostAuthorizationPipeline{
		tx:       tx,
		noteRepo: noteRepo,
		pdf:      pdf,
		mail:     mail,
		emitente: emitente,
		log:      log,
	}
}

// Run executa as três etapas em sequência. O débito de estoque só se aplica a
// notas de produto.
func (p *PostAuthorizationPipeline) Run(ctx context.Context, note *entity.FiscalNote,
	cliente *entity.FiscalClient, itens []entity.NoteItem) {
	if note.Kind == entity.NoteKindProduct {
		if err := p.debitStock(ctx, note, itens); err != nil {
			p.log.Warn().Err(err).Str("note_id", note.ID).Msg("débito de estoque falhou; nota segue AUTHORIZED")
		}
	}

	if cliente == nil {
		p.log.Warn().Str("note_id", note.ID).Msg("pipeline sem cliente; DANFE e e-mail pulados")
		return
	}

	pdfBytes, err := p.pdf.Generate(ctx, note, p.emitente, cliente, itens)
	if err != nil {
		p.log.Warn().Err(err).Str("note_id", note.ID).Msg("geração do DANFE falhou")
		return
	}
	note.PDF = pdfBytes
	if err := p.noteRepo.Update(ctx, note); err != nil {
		p.log.Error().Err(err).Str("note_id", note.ID).Msg("persistir DANFE na nota")
	}

	if cliente.Email == "" {
		return
	}
	subject := fmt.Sprintf("Nota fiscal %09d autorizada", note.Numero)
	body := fmt.Sprintf("Olá %s,\n\nSua nota fiscal foi autorizada. O DANFE segue em anexo.\n\nChave de acesso: %s\n",
		cliente.Nome, note.ChaveAcesso)
	filename := fmt.Sprintf("danfe-%09d.pdf", note.Numero)
	if err := p.mail.SendDANFE(ctx, cliente.Email, subject, body, pdfBytes, filename); err != nil {
		p.log.Warn().Err(err).Str("note_id", note.ID).Str("email", cliente.Email).Msg("envio do DANFE falhou")
		return
	}
	p.log.Info().Str("note_id", note.ID).Str("email", cliente.Email).Msg("DANFE enviado")
}

// debitStock debita todas as linhas com produto em uma única transação com
// lock de linha. Estoque insuficiente em qualquer linha aborta a transação
// inteira: ou todas debitam, ou nenhuma.
func (p *PostAuthorizationPipeline) debitStock(ctx context.Context, note *entity.FiscalNote,
	itens []entity.NoteItem) error {
	if p.tx == nil {
		return nil
	}
	return p.tx.Run(ctx, func(
		_ repository.FiscalNoteRepository,
		stockRepo repository.StockRepository,
		_ repository.FiscalProductRepository,
	) error {
		for _, it := range itens {
			if it.ProductID == "" {
				continue
			}
			saldo, err := stockRepo.GetForUpdate(ctx, it.ProductID)
			if err != nil {
				return fmt.Errorf("travar estoque de %s: %w", it.ProductID, err)
			}
			if saldo.Quantity.LessThan(it.Quantity) {
				return domain.WrapFiscal(domain.KindInsufficientStock,
					fmt.Sprintf("produto %s: saldo %s, necessário %s",
						it.ProductID, saldo.Quantity.String(), it.Quantity.String()),
					domain.ErrInsufficientStock)
			}
			saldo.Quantity = saldo.Quantity.Sub(it.Quantity)
			if err := stockRepo.Upsert(ctx, saldo); err != nil {
				return fmt.Errorf("gravar estoque de %s: %w", it.ProductID, err)
			}
		}
		return nil
	})
}
