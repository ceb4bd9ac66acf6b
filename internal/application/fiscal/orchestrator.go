package fiscal

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oficinapro/fiscal-api/internal/domain"
	domfiscal "github.com/oficinapro/fiscal-api/internal/domain/fiscal"

	"github.com/oficinapro/fiscal-api/internal/domain/entity"
	"github.com/oficinapro/fiscal-api/internal/domain/repository"
	infranfe "github.com/oficinapro/fiscal-api/internal/infrastructure/nfe"
	"github.com/oficinapro/fiscal-api/internal/infrastructure/nfse"
	"github.com/oficinapro/fiscal-api/pkg/config"
	"github.com/oficinapro/fiscal-api/pkg/logger"
	pkgnfe "github.com/oficinapro/fiscal-api/pkg/nfe"
)

// Intervalo entre o envio do lote e a consulta do recibo.
const defaultPollDelay = 3 * time.Second

// Tamanho mínimo da justificativa de cancelamento e do texto de correção.
const minJustificativa = 15

// LifecycleOrchestrator conduz o ciclo de vida completo da nota:
//
//	montar XML → assinar → transportar → interpretar → transicionar status
//
// Falha local (build, certificado, assinatura, transporte) depois da criação
// da nota resolve o registro para REJECTED com a mensagem capturada; o erro
// não sobe para o chamador. Falha de validação antes da criação sobe como
// FiscalError e nenhuma nota é persistida.
type LifecycleOrchestrator struct {
	noteRepo    repository.FiscalNoteRepository
	clientRepo  repository.FiscalClientRepository
	productRepo repository.FiscalProductRepository
	serviceRepo repository.FiscalServiceRepository

	builder   DocumentBuilder
	events    EventBuilder
	signer    pkgnfe.Signer
	certs     CertProvider
	transport infranfe.Transport
	parser    ResponseParser
	nfse      NfseRegistry

	pipeline  *PostAuthorizationPipeline
	scheduler PollScheduler

	emitente  config.FiscalConfig
	log       *logger.Logger
	pollDelay time.Duration
	now       func() time.Time
	cnf       func() string
}

// OrchestratorDeps dependências do orquestrador (injeção explícita).
type OrchestratorDeps struct {
	NoteRepo    repository.FiscalNoteRepository
	ClientRepo  repository.FiscalClientRepository
	ProductRepo repository.FiscalProductRepository
	ServiceRepo repository.FiscalServiceRepository

	Builder   DocumentBuilder
	Events    EventBuilder
	Signer    pkgnfe.Signer
	Certs     CertProvider
	Transport infranfe.Transport
	Parser    ResponseParser
	Nfse      NfseRegistry

	Pipeline  *PostAuthorizationPipeline
	Scheduler PollScheduler

	Emitente config.FiscalConfig
	Log      *logger.Logger

	// PollDelay, Now e CNF têm defaults de produção; os tests os substituem.
	PollDelay time.Duration
	Now       func() time.Time
	CNF       func() string
}

func NewLifecycleOrchestrator(d OrchestratorDeps) *LifecycleOrchestrator {
	o := &LifecycleOrchestrator{
		noteRepo:    d.NoteRepo,
		clientRepo:  d.ClientRepo,
		productRepo: d.ProductRepo,
		serviceRepo: d.ServiceRepo,
		builder:     d.Builder,
		events:      d.Events,
		signer:      d.Signer,
		certs:       d.Certs,
		transport:   d.Transport,
		parser:      d.Parser,
		nfse:        d.Nfse,
		pipeline:    d.Pipeline,
		scheduler:   d.Scheduler,
		emitente:    d.Emitente,
		log:         d.Log,
		pollDelay:   d.PollDelay,
		now:         d.Now,
		cnf:         d.CNF,
	}
	if o.pollDelay <= 0 {
		o.pollDelay = defaultPollDelay
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.cnf == nil {
		o.cnf = randomCNF
	}
	return o
}

// IssueInput entrada da emissão de NF-e de produto.
type IssueInput struct {
	OrderID  string
	ClientID string
	Items    []entity.NoteItem
}

// Issue emite uma NF-e de produto para a ordem de serviço. A validação de
// destinatário e itens acontece antes de qualquer persistência ou transporte;
// documento fiscal inválido falha com KindInvalidTaxID sem consumir número.
func (o *LifecycleOrchestrator) Issue(ctx context.Context, in *IssueInput) (*entity.FiscalNote, error) {
	cliente, err := o.clientRepo.GetByID(ctx, in.ClientID)
	if err != nil {
		return nil, domain.WrapFiscal(domain.KindInvalidInput,
			fmt.Sprintf("cliente fiscal %s", in.ClientID), err)
	}
	if err := domfiscal.ValidateIssuance(cliente, in.Items); err != nil {
		return nil, err
	}

	numero, err := o.noteRepo.NextNumber(ctx, entity.NoteKindProduct)
	if err != nil {
		return nil, fmt.Errorf("consumir número da nota: %w", err)
	}

	note, err := o.createPending(ctx, entity.NoteKindProduct, in.OrderID, in.ClientID, numero, in.Items)
	if err != nil {
		return nil, err
	}

	// Daqui em diante toda falha resolve a nota, nunca aborta sem registro.
	linhas := o.resolveLines(ctx, in.Items)
	build, err := o.builder.Build(&infranfe.BuildContext{
		Emitente: o.emitente,
		Cliente:  cliente,
		Linhas:   linhas,
		Numero:   numero,
		Serie:    o.emitente.Serie,
		Emissao:  o.now(),
		CodigoNF: o.cnf(),
	})
	if err != nil {
		return note, o.resolveRejected(ctx, note, "build", err)
	}
	note.ChaveAcesso = build.Chave
	note.ValorTotal = build.Total

	cert, err := o.certs()
	if err != nil {
		return note, o.resolveRejected(ctx, note, "certificado", err)
	}
	signed, err := o.signer.Sign(build.XML, cert)
	if err != nil {
		return note, o.resolveRejected(ctx, note, "assinatura", err)
	}
	note.XMLAssinado = string(signed)

	raw, err := o.transport.EnviarLote(ctx, o.emitente.UF, o.emitente.Ambiente,
		signed, strconv.FormatInt(numero, 10))
	if err != nil {
		return note, o.resolveRejected(ctx, note, "transporte", err)
	}

	resp := o.parser.Parse(raw)
	note.RetornoProvedor = resp.Raw
	note.CStat = resp.CStat
	note.Motivo = resp.Motivo

	switch {
	case resp.Authorized():
		note.Protocolo = resp.Protocolo
		o.finishAuthorized(ctx, note, cliente, in.Items)
	case resp.Processing():
		note.Status = entity.StatusAwaiting
		note.Recibo = resp.Recibo
		if err := o.noteRepo.Update(ctx, note); err != nil {
			o.log.Error().Err(err).Str("note_id", note.ID).Msg("persistir AWAITING")
			return note, err
		}
		o.schedulePoll(note.ID)
	default:
		note.Status = entity.StatusRejected
		if err := o.noteRepo.Update(ctx, note); err != nil {
			o.log.Error().Err(err).Str("note_id", note.ID).Msg("persistir REJECTED")
			return note, err
		}
		o.log.Warn().Str("note_id", note.ID).Int("c_stat", resp.CStat).
			Str("motivo", resp.Motivo).Msg("nota rejeitada pela SEFAZ")
	}
	return note, nil
}

// Poll consulta o recibo de uma nota AWAITING e resolve o status. Idempotente:
// nota que já saiu de AWAITING é um no-op. A consulta nunca se reagenda: a
// única consulta implícita é a agendada na emissão; depois dela, nova
// tentativa é decisão do chamador. O recibo é um conceito da SEFAZ, então só
// notas de produto são consultáveis; NFS-e assíncrona resolve pelo protocolo
// municipal, fora deste fluxo.
func (o *LifecycleOrchestrator) Poll(ctx context.Context, noteID string) error {
	note, err := o.noteRepo.GetByID(ctx, noteID)
	if err != nil {
		return domain.WrapFiscal(domain.KindNoteNotFound, noteID, err)
	}
	if note.Status != entity.StatusAwaiting {
		return nil
	}
	if note.Kind != entity.NoteKindProduct {
		return domain.NewFiscalError(domain.KindInvalidInput,
			fmt.Sprintf("nota %s é %s; a consulta de recibo só se aplica a NF-e de produto", noteID, note.Kind))
	}

	raw, err := o.transport.ConsultarRecibo(ctx, o.emitente.UF, o.emitente.Ambiente, note.Recibo)
	if err != nil {
		if domain.IsRetryable(err) {
			// Timeout deixa a nota como está; o chamador decide consultar de novo.
			o.log.Warn().Err(err).Str("note_id", noteID).Msg("timeout na consulta do recibo; nota segue AWAITING")
			return err
		}
		return o.resolveRejected(ctx, note, "consulta do recibo", err)
	}

	resp := o.parser.Parse(raw)
	note.RetornoProvedor = resp.Raw
	note.CStat = resp.CStat
	note.Motivo = resp.Motivo

	switch {
	case resp.Authorized():
		note.Protocolo = resp.Protocolo
		cliente, itens := o.noteContext(ctx, note)
		o.finishAuthorized(ctx, note, cliente, itens)
	case resp.Processing():
		// Lote ainda na fila: grava o retorno e mantém AWAITING, sem reagendar.
		if err := o.noteRepo.Update(ctx, note); err != nil {
			return err
		}
	default:
		note.Status = entity.StatusRejected
		if err := o.noteRepo.Update(ctx, note); err != nil {
			return err
		}
		o.log.Warn().Str("note_id", noteID).Int("c_stat", resp.CStat).
			Str("motivo", resp.Motivo).Msg("lote rejeitado na consulta do recibo")
	}
	return nil
}

// Cancel registra o evento de cancelamento de uma nota AUTHORIZED. A
// justificativa deve ter ao menos 15 caracteres. Qualquer falha deixa a nota
// intocada em AUTHORIZED.
func (o *LifecycleOrchestrator) Cancel(ctx context.Context, noteID, justificativa string) (*entity.FiscalNote, error) {
	if len(strings.TrimSpace(justificativa)) < minJustificativa {
		return nil, domain.NewFiscalError(domain.KindInvalidInput,
			fmt.Sprintf("justificativa deve ter ao menos %d caracteres", minJustificativa))
	}
	note, err := o.noteRepo.GetByID(ctx, noteID)
	if err != nil {
		return nil, domain.WrapFiscal(domain.KindNoteNotFound, noteID, err)
	}
	if !entity.CanTransition(note.Status, entity.StatusCancelled) {
		return nil, domain.WrapFiscal(domain.KindInvalidInput,
			fmt.Sprintf("nota %s em %s não pode ser cancelada", noteID, note.Status),
			domain.ErrInvalidTransition)
	}

	resp, err := o.sendEvent(ctx, note, func(evCtx *infranfe.EventContext) ([]byte, error) {
		return o.events.BuildCancelamento(evCtx, justificativa)
	})
	if err != nil {
		return nil, err
	}
	if !resp.EventAccepted() {
		return nil, domain.NewFiscalError(domain.KindProviderRejected,
			fmt.Sprintf("cancelamento não registrado (cStat %d): %s", resp.CStat, resp.Motivo))
	}

	note.Status = entity.StatusCancelled
	note.Protocolo = resp.Protocolo
	note.CStat = resp.CStat
	note.Motivo = resp.Motivo
	note.RetornoProvedor = resp.Raw
	if err := o.noteRepo.Update(ctx, note); err != nil {
		return nil, fmt.Errorf("persistir CANCELLED: %w", err)
	}
	o.scheduler.Cancel(note.ID)
	o.log.Info().Str("note_id", note.ID).Str("protocolo", resp.Protocolo).Msg("nota cancelada")
	return note, nil
}

// Correct registra uma carta de correção eletrônica. O status da nota não
// muda; o retorno do evento fica gravado para auditoria.
func (o *LifecycleOrchestrator) Correct(ctx context.Context, noteID, correcao string) (*entity.FiscalNote, error) {
	if len(strings.TrimSpace(correcao)) < minJustificativa {
		return nil, domain.NewFiscalError(domain.KindInvalidInput,
			fmt.Sprintf("texto de correção deve ter ao menos %d caracteres", minJustificativa))
	}
	note, err := o.noteRepo.GetByID(ctx, noteID)
	if err != nil {
		return nil, domain.WrapFiscal(domain.KindNoteNotFound, noteID, err)
	}
	if note.Status != entity.StatusAuthorized {
		return nil, domain.NewFiscalError(domain.KindInvalidInput,
			fmt.Sprintf("carta de correção exige nota AUTHORIZED; nota %s está em %s", noteID, note.Status))
	}

	resp, err := o.sendEvent(ctx, note, func(evCtx *infranfe.EventContext) ([]byte, error) {
		return o.events.BuildCartaCorrecao(evCtx, correcao)
	})
	if err != nil {
		return nil, err
	}
	if !resp.EventAccepted() {
		return nil, domain.NewFiscalError(domain.KindProviderRejected,
			fmt.Sprintf("carta de correção não registrada (cStat %d): %s", resp.CStat, resp.Motivo))
	}

	note.RetornoProvedor = resp.Raw
	note.CStat = resp.CStat
	note.Motivo = resp.Motivo
	if err := o.noteRepo.Update(ctx, note); err != nil {
		return nil, fmt.Errorf("persistir retorno da correção: %w", err)
	}
	o.log.Info().Str("note_id", note.ID).Msg("carta de correção registrada")
	return note, nil
}

// ServiceIssueInput entrada da emissão de NFS-e.
type ServiceIssueInput struct {
	OrderID    string
	ClientID   string
	ServiceID  string
	Quantidade decimal.Decimal // horas/unidades; zero vale 1
	Descricao  string
}

// IssueService emite uma NFS-e pela estratégia do município do tomador.
// Município sem convênio falha com KindUnsupportedMunicipality antes de
// consumir número.
func (o *LifecycleOrchestrator) IssueService(ctx context.Context, in *ServiceIssueInput) (*entity.FiscalNote, error) {
	cliente, err := o.clientRepo.GetByID(ctx, in.ClientID)
	if err != nil {
		return nil, domain.WrapFiscal(domain.KindInvalidInput,
			fmt.Sprintf("cliente fiscal %s", in.ClientID), err)
	}
	if !pkgnfe.IsValidCpfCnpj(cliente.CpfCnpj) {
		return nil, domain.NewFiscalError(domain.KindInvalidTaxID,
			fmt.Sprintf("CPF/CNPJ do tomador inválido: %q", cliente.CpfCnpj))
	}
	servico, err := o.serviceRepo.GetByID(ctx, in.ServiceID)
	if err != nil {
		return nil, domain.WrapFiscal(domain.KindInvalidInput,
			fmt.Sprintf("serviço fiscal %s", in.ServiceID), err)
	}
	strategy, err := o.nfse.For(cliente.CodigoMunicipio)
	if err != nil {
		return nil, err
	}

	qtd := in.Quantidade
	if !qtd.IsPositive() {
		qtd = decimal.NewFromInt(1)
	}
	item := entity.NoteItem{
		ServiceID:   servico.ID,
		Description: firstNonEmpty(in.Descricao, servico.Descricao),
		Quantity:    qtd,
		UnitPrice:   servico.Preco,
	}

	numero, err := o.noteRepo.NextNumber(ctx, entity.NoteKindService)
	if err != nil {
		return nil, fmt.Errorf("consumir número do RPS: %w", err)
	}
	note, err := o.createPending(ctx, entity.NoteKindService, in.OrderID, in.ClientID, numero,
		[]entity.NoteItem{item})
	if err != nil {
		return nil, err
	}

	outcome, err := strategy.Issue(ctx, &nfse.IssueInput{
		Prestador:  o.emitente,
		Tomador:    cliente,
		Servico:    servico,
		Quantidade: item.Quantity,
		Valor:      item.NetLine(),
		Numero:     numero,
		Emissao:    o.now(),
		Descricao:  item.Description,
	})
	if err != nil {
		return note, o.resolveRejected(ctx, note, "provedor municipal", err)
	}

	note.RetornoProvedor = outcome.Raw
	note.Motivo = outcome.Motivo
	switch outcome.Status {
	case entity.StatusAuthorized:
		note.Protocolo = firstNonEmpty(outcome.NumeroNFSe, outcome.Protocolo)
		o.finishAuthorized(ctx, note, cliente, []entity.NoteItem{item})
	case entity.StatusAwaiting:
		note.Status = entity.StatusAwaiting
		note.Recibo = outcome.Protocolo
		if err := o.noteRepo.Update(ctx, note); err != nil {
			return note, err
		}
	default:
		note.Status = entity.StatusRejected
		if err := o.noteRepo.Update(ctx, note); err != nil {
			return note, err
		}
		o.log.Warn().Str("note_id", note.ID).Str("motivo", outcome.Motivo).
			Msg("NFS-e rejeitada pelo provedor municipal")
	}
	return note, nil
}

// ─── internos ───────────────────────────────────────────────────────────────

func (o *LifecycleOrchestrator) createPending(ctx context.Context, kind, orderID, clientID string,
	numero int64, itens []entity.NoteItem) (*entity.FiscalNote, error) {
	itensJSON, _ := json.Marshal(itens)
	note := &entity.FiscalNote{
		Kind:       kind,
		Status:     entity.StatusPending,
		OrderID:    orderID,
		ClientID:   clientID,
		Numero:     numero,
		Serie:      o.emitente.Serie,
		Ambiente:   o.emitente.Ambiente,
		ItensJSON:  string(itensJSON),
		ValorTotal: domfiscal.TotalOf(itens),
	}
	if err := o.noteRepo.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("criar nota %s: %w", kind, err)
	}
	return note, nil
}

// resolveLines anexa o cadastro fiscal do produto a cada linha. Item sem
// cadastro entra como descrição livre com os defaults do builder.
func (o *LifecycleOrchestrator) resolveLines(ctx context.Context, itens []entity.NoteItem) []infranfe.LineForXML {
	linhas := make([]infranfe.LineForXML, len(itens))
	for i, it := range itens {
		linhas[i] = infranfe.LineForXML{Item: it}
		if it.ProductID == "" {
			continue
		}
		if p, err := o.productRepo.GetByID(ctx, it.ProductID); err == nil {
			linhas[i].Produto = p
		}
	}
	return linhas
}

// resolveRejected grava a falha local na nota e a resolve para REJECTED.
// O erro original não sobe: a resolução fica registrada no próprio registro.
func (o *LifecycleOrchestrator) resolveRejected(ctx context.Context, note *entity.FiscalNote, step string, cause error) error {
	note.Status = entity.StatusRejected
	note.ErroDetalhe = fmt.Sprintf("%s: %v", step, cause)
	if err := o.noteRepo.Update(ctx, note); err != nil {
		o.log.Error().Err(err).Str("note_id", note.ID).Msg("persistir REJECTED após falha local")
		return err
	}
	o.log.Warn().Str("note_id", note.ID).Str("etapa", step).Err(cause).Msg("emissão resolvida para REJECTED")
	return nil
}

// finishAuthorized transiciona para AUTHORIZED e dispara o pipeline
// pós-autorização em goroutine própria, desacoplada do ciclo HTTP.
func (o *LifecycleOrchestrator) finishAuthorized(ctx context.Context, note *entity.FiscalNote,
	cliente *entity.FiscalClient, itens []entity.NoteItem) {
	note.Status = entity.StatusAuthorized
	if err := o.noteRepo.Update(ctx, note); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// Corrida do webhook: outra nota da mesma ordem autorizou primeiro.
			note.Status = entity.StatusRejected
			note.ErroDetalhe = "ordem já possui nota autorizada"
			if uErr := o.noteRepo.Update(ctx, note); uErr != nil {
				o.log.Error().Err(uErr).Str("note_id", note.ID).Msg("persistir REJECTED por duplicidade")
			}
			return
		}
		o.log.Error().Err(err).Str("note_id", note.ID).Msg("persistir AUTHORIZED")
		return
	}
	o.log.Info().Str("note_id", note.ID).Str("protocolo", note.Protocolo).Msg("nota autorizada")

	if o.pipeline != nil {
		go func() {
			pctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			o.pipeline.Run(pctx, note, cliente, itens)
		}()
	}
}

// sendEvent assina e envia um evento sobre a nota, devolvendo o retorno
// interpretado. Falha de certificado, assinatura ou transporte sobe como
// FiscalError sem tocar a nota.
func (o *LifecycleOrchestrator) sendEvent(ctx context.Context, note *entity.FiscalNote,
	build func(*infranfe.EventContext) ([]byte, error)) (*infranfe.ProviderResponse, error) {
	evCtx := &infranfe.EventContext{
		Emitente:  o.emitente.CNPJ,
		CodigoUF:  o.emitente.CodigoUF,
		Ambiente:  o.emitente.Ambiente,
		Chave:     note.ChaveAcesso,
		Protocolo: note.Protocolo,
		Sequencia: 1,
		Emissao:   o.now(),
	}
	eventXML, err := build(evCtx)
	if err != nil {
		return nil, err
	}
	cert, err := o.certs()
	if err != nil {
		return nil, err
	}
	signed, err := o.signer.Sign(eventXML, cert)
	if err != nil {
		return nil, err
	}
	raw, err := o.transport.EnviarEvento(ctx, o.emitente.UF, o.emitente.Ambiente,
		signed, strconv.FormatInt(note.Numero, 10))
	if err != nil {
		return nil, err
	}
	return o.parser.Parse(raw), nil
}

// noteContext recarrega cliente e itens da nota para o pipeline.
func (o *LifecycleOrchestrator) noteContext(ctx context.Context, note *entity.FiscalNote) (*entity.FiscalClient, []entity.NoteItem) {
	cliente, err := o.clientRepo.GetByID(ctx, note.ClientID)
	if err != nil {
		o.log.Warn().Err(err).Str("note_id", note.ID).Msg("cliente da nota não encontrado para o pipeline")
	}
	var itens []entity.NoteItem
	if note.ItensJSON != "" {
		if err := json.Unmarshal([]byte(note.ItensJSON), &itens); err != nil {
			o.log.Warn().Err(err).Str("note_id", note.ID).Msg("itens da nota ilegíveis")
		}
	}
	return cliente, itens
}

func (o *LifecycleOrchestrator) schedulePoll(noteID string) {
	if o.scheduler == nil {
		return
	}
	o.scheduler.Schedule(noteID, o.pollDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := o.Poll(ctx, noteID); err != nil {
			o.log.Error().Err(err).Str("note_id", noteID).Msg("consulta agendada do recibo falhou")
		}
	})
}

// randomCNF gera o nonce de 8 dígitos do cNF.
func randomCNF() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%08d", time.Now().UnixNano()%100000000)
	}
	return fmt.Sprintf("%08d", binary.BigEndian.Uint32(b[:])%100000000)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
