package fiscal_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fiscal "github.com/oficinapro/fiscal-api/internal/application/fiscal"
	"github.com/oficinapro/fiscal-api/internal/domain"
	"github.com/oficinapro/fiscal-api/internal/domain/entity"
	"github.com/oficinapro/fiscal-api/internal/infrastructure/nfse"
)

func TestIssue_AutorizacaoSincrona(t *testing.T) {
	e := newEnv()

	note, err := e.orch.Issue(context.Background(), &fiscal.IssueInput{
		OrderID:  "ord-1",
		ClientID: "cli-1",
		Items:    itensTeste(),
	})
	require.NoError(t, err)
	require.NotNil(t, note)

	assert.Equal(t, entity.StatusAuthorized, note.Status)
	assert.Equal(t, entity.NoteKindProduct, note.Kind)
	assert.Equal(t, int64(1), note.Numero)
	assert.Equal(t, chaveFake, note.ChaveAcesso)
	assert.Equal(t, "135250000012345", note.Protocolo)
	assert.Equal(t, 100, note.CStat)
	assert.Contains(t, note.XMLAssinado, "<!--signed-->")
	assert.Equal(t, "190.00", note.ValorTotal.StringFixed(2))

	// O estado persistido acompanha o devolvido
	saved := e.notes.saved(note.ID)
	require.NotNil(t, saved)
	assert.Equal(t, entity.StatusAuthorized, saved.Status)
	assert.Equal(t, "135250000012345", saved.Protocolo)

	// O builder recebeu série, nonce e emissão injetados
	require.NotNil(t, e.builder.last)
	assert.Equal(t, 1, e.builder.last.Serie)
	assert.Equal(t, "01154464", e.builder.last.CodigoNF)
	require.Len(t, e.builder.last.Linhas, 1)
	assert.Equal(t, "prod-1", e.builder.last.Linhas[0].Produto.ID)
}

// Validação falha antes de qualquer persistência: nenhuma nota é criada e o
// sequencial não anda.
func TestIssue_ValidacaoNaoConsomeNumero(t *testing.T) {
	t.Run("cliente inexistente", func(t *testing.T) {
		e := newEnv()
		_, err := e.orch.Issue(context.Background(), &fiscal.IssueInput{
			OrderID: "ord-1", ClientID: "cli-x", Items: itensTeste(),
		})
		require.Error(t, err)
		assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
		assert.Zero(t, e.notes.count())
		assert.Zero(t, e.notes.consumed(entity.NoteKindProduct))
	})

	t.Run("documento do destinatário inválido", func(t *testing.T) {
		e := newEnv()
		e.clients.clients["cli-1"].CpfCnpj = "11111111111"
		_, err := e.orch.Issue(context.Background(), &fiscal.IssueInput{
			OrderID: "ord-1", ClientID: "cli-1", Items: itensTeste(),
		})
		require.Error(t, err)
		assert.Equal(t, domain.KindInvalidTaxID, domain.KindOf(err))
		assert.Zero(t, e.notes.count())
		assert.Zero(t, e.notes.consumed(entity.NoteKindProduct))
	})

	t.Run("quantidade não positiva", func(t *testing.T) {
		e := newEnv()
		itens := itensTeste()
		itens[0].Quantity = decimal.Zero
		_, err := e.orch.Issue(context.Background(), &fiscal.IssueInput{
			OrderID: "ord-1", ClientID: "cli-1", Items: itens,
		})
		require.Error(t, err)
		assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
		assert.Zero(t, e.notes.count())
	})
}

// Lote recebido para processamento: a nota fica AWAITING com o recibo e uma
// consulta é agendada.
func TestIssue_LoteEmProcessamento(t *testing.T) {
	e := newEnv()
	e.transport.loteResp = []byte(respLoteRecebido)

	note, err := e.orch.Issue(context.Background(), &fiscal.IssueInput{
		OrderID: "ord-1", ClientID: "cli-1", Items: itensTeste(),
	})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusAwaiting, note.Status)
	assert.Equal(t, "351000012345678", note.Recibo)
	assert.Equal(t, []string{note.ID}, e.scheduler.scheduled())
}

func TestIssue_RejeitadaPelaSefaz(t *testing.T) {
	e := newEnv()
	e.transport.loteResp = []byte(respRejeitada)

	note, err := e.orch.Issue(context.Background(), &fiscal.IssueInput{
		OrderID: "ord-1", ClientID: "cli-1", Items: itensTeste(),
	})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusRejected, note.Status)
	assert.Equal(t, 225, note.CStat)
	assert.Contains(t, note.Motivo, "Falha no Schema")
	assert.Empty(t, e.scheduler.scheduled())
}

// Número consumido por uma nota rejeitada não volta: a emissão seguinte recebe
// o próximo do sequencial.
func TestIssue_NumeroNaoReutilizado(t *testing.T) {
	e := newEnv()
	e.transport.loteResp = []byte(respRejeitada)

	first, err := e.orch.Issue(context.Background(), &fiscal.IssueInput{
		OrderID: "ord-1", ClientID: "cli-1", Items: itensTeste(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Numero)

	e.transport.loteResp = []byte(respAutorizada)
	second, err := e.orch.Issue(context.Background(), &fiscal.IssueInput{
		OrderID: "ord-2", ClientID: "cli-1", Items: itensTeste(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Numero)
}

// Depois da criação da nota, falha local resolve o registro para REJECTED com
// o detalhe da etapa; o erro não sobe.
func TestIssue_FalhaLocalResolveRejected(t *testing.T) {
	cases := []struct {
		name  string
		setup func(e *env)
		etapa string
	}{
		{
			name:  "build do documento",
			setup: func(e *env) { e.builder.err = domain.NewFiscalError(domain.KindDocumentBuild, "sem linhas") },
			etapa: "build",
		},
		{
			name:  "certificado",
			setup: func(e *env) { e.certErr = domain.NewFiscalError(domain.KindCertificateExpired, "vencido") },
			etapa: "certificado",
		},
		{
			name:  "assinatura",
			setup: func(e *env) { e.signer.err = domain.NewFiscalError(domain.KindSignature, "chave incompatível") },
			etapa: "assinatura",
		},
		{
			name:  "transporte",
			setup: func(e *env) { e.transport.loteErr = domain.NewFiscalError(domain.KindProviderError, "HTTP 500") },
			etapa: "transporte",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv()
			tc.setup(e)

			note, err := e.orch.Issue(context.Background(), &fiscal.IssueInput{
				OrderID: "ord-1", ClientID: "cli-1", Items: itensTeste(),
			})
			require.NoError(t, err)
			require.NotNil(t, note)

			assert.Equal(t, entity.StatusRejected, note.Status)
			assert.Contains(t, note.ErroDetalhe, tc.etapa+":")

			saved := e.notes.saved(note.ID)
			assert.Equal(t, entity.StatusRejected, saved.Status)
		})
	}
}

// Corrida do webhook: o índice único de ordem autorizada devolve duplicidade
// na transição para AUTHORIZED e a nota perdedora resolve para REJECTED.
func TestIssue_OrdemJaAutorizada(t *testing.T) {
	e := newEnv()
	e.notes.updateErr = func(n *entity.FiscalNote) error {
		if n.Status == entity.StatusAuthorized {
			return domain.ErrDuplicate
		}
		return nil
	}

	note, err := e.orch.Issue(context.Background(), &fiscal.IssueInput{
		OrderID: "ord-1", ClientID: "cli-1", Items: itensTeste(),
	})
	require.NoError(t, err)

	saved := e.notes.saved(note.ID)
	assert.Equal(t, entity.StatusRejected, saved.Status)
	assert.Contains(t, saved.ErroDetalhe, "já possui nota autorizada")
}

// awaitingNote emite uma nota que fica AWAITING para os tests de consulta.
func awaitingNote(t *testing.T, e *env) *entity.FiscalNote {
	t.Helper()
	e.transport.loteResp = []byte(respLoteRecebido)
	note, err := e.orch.Issue(context.Background(), &fiscal.IssueInput{
		OrderID: "ord-1", ClientID: "cli-1", Items: itensTeste(),
	})
	require.NoError(t, err)
	require.Equal(t, entity.StatusAwaiting, note.Status)
	return note
}

func TestPoll_AutorizaNotaEmEspera(t *testing.T) {
	e := newEnv()
	note := awaitingNote(t, e)

	e.transport.reciboResp = []byte(respAutorizada)
	require.NoError(t, e.orch.Poll(context.Background(), note.ID))

	saved := e.notes.saved(note.ID)
	assert.Equal(t, entity.StatusAuthorized, saved.Status)
	assert.Equal(t, "135250000012345", saved.Protocolo)
	assert.Equal(t, 100, saved.CStat)
}

func TestPoll_RejeitaNotaEmEspera(t *testing.T) {
	e := newEnv()
	note := awaitingNote(t, e)

	e.transport.reciboResp = []byte(respRejeitada)
	require.NoError(t, e.orch.Poll(context.Background(), note.ID))

	saved := e.notes.saved(note.ID)
	assert.Equal(t, entity.StatusRejected, saved.Status)
	assert.Equal(t, 225, saved.CStat)
}

// Lote ainda na fila: a nota permanece AWAITING e nada é reagendado. A única
// consulta implícita é a agendada na emissão.
func TestPoll_LoteAindaProcessando(t *testing.T) {
	e := newEnv()
	note := awaitingNote(t, e)

	e.transport.reciboResp = []byte(respEmProcessamento)
	require.NoError(t, e.orch.Poll(context.Background(), note.ID))

	saved := e.notes.saved(note.ID)
	assert.Equal(t, entity.StatusAwaiting, saved.Status)
	assert.Equal(t, 105, saved.CStat)
	assert.Equal(t, []string{note.ID}, e.scheduler.scheduled(), "sem nova consulta implícita")
}

// Timeout é retentável mas não reagenda: a nota segue AWAITING e o erro sobe
// para o chamador decidir consultar de novo.
func TestPoll_TimeoutNaoReagenda(t *testing.T) {
	e := newEnv()
	note := awaitingNote(t, e)

	e.transport.reciboErr = domain.NewFiscalError(domain.KindProviderTimeout, "sem resposta em 30s")
	err := e.orch.Poll(context.Background(), note.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindProviderTimeout, domain.KindOf(err))

	saved := e.notes.saved(note.ID)
	assert.Equal(t, entity.StatusAwaiting, saved.Status)
	assert.Equal(t, []string{note.ID}, e.scheduler.scheduled(), "sem nova consulta implícita")
}

// O recibo é um conceito da SEFAZ: NFS-e assíncrona em AWAITING não pode ser
// roteada para a consulta de recibo, senão um protocolo municipal chegaria ao
// autorizador estadual e a rejeição local derrubaria uma nota possivelmente
// autorizada pela prefeitura.
func TestPoll_NotaDeServicoFalhaFechado(t *testing.T) {
	e := newEnv()
	e.strategy.out = &nfse.Outcome{Status: entity.StatusAwaiting, Protocolo: "PROTO-778899"}
	note, err := e.orch.IssueService(context.Background(), &fiscal.ServiceIssueInput{
		OrderID: "ord-1", ClientID: "cli-1", ServiceID: "srv-1",
	})
	require.NoError(t, err)
	require.Equal(t, entity.StatusAwaiting, note.Status)

	err = e.orch.Poll(context.Background(), note.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
	assert.Zero(t, e.transport.consultas)

	saved := e.notes.saved(note.ID)
	assert.Equal(t, entity.StatusAwaiting, saved.Status)
}

// Falha não retentável na consulta resolve a nota para REJECTED.
func TestPoll_FalhaNaoRetentavel(t *testing.T) {
	e := newEnv()
	note := awaitingNote(t, e)

	e.transport.reciboErr = domain.NewFiscalError(domain.KindProviderError, "HTTP 500")
	require.NoError(t, e.orch.Poll(context.Background(), note.ID))

	saved := e.notes.saved(note.ID)
	assert.Equal(t, entity.StatusRejected, saved.Status)
	assert.Contains(t, saved.ErroDetalhe, "consulta do recibo")
}

// Consulta é idempotente: nota fora de AWAITING é um no-op sem transporte.
func TestPoll_ForaDeAwaitingEhNoOp(t *testing.T) {
	e := newEnv()
	note, err := e.orch.Issue(context.Background(), &fiscal.IssueInput{
		OrderID: "ord-1", ClientID: "cli-1", Items: itensTeste(),
	})
	require.NoError(t, err)
	require.Equal(t, entity.StatusAuthorized, note.Status)

	require.NoError(t, e.orch.Poll(context.Background(), note.ID))
	assert.Zero(t, e.transport.consultas)
}

func TestPoll_NotaInexistente(t *testing.T) {
	e := newEnv()
	err := e.orch.Poll(context.Background(), "note-x")
	require.Error(t, err)
	assert.Equal(t, domain.KindNoteNotFound, domain.KindOf(err))
}

// authorizedNote emite uma nota autorizada para os tests de evento.
func authorizedNote(t *testing.T, e *env) *entity.FiscalNote {
	t.Helper()
	note, err := e.orch.Issue(context.Background(), &fiscal.IssueInput{
		OrderID: "ord-1", ClientID: "cli-1", Items: itensTeste(),
	})
	require.NoError(t, err)
	require.Equal(t, entity.StatusAuthorized, note.Status)
	return note
}

func TestCancel_EventoRegistrado(t *testing.T) {
	e := newEnv()
	note := authorizedNote(t, e)

	e.transport.eventoResp = []byte(respEventoRegistrado)
	cancelled, err := e.orch.Cancel(context.Background(), note.ID, "cliente desistiu da compra antes da saída")
	require.NoError(t, err)

	assert.Equal(t, entity.StatusCancelled, cancelled.Status)
	assert.Equal(t, "135250000054321", cancelled.Protocolo)
	assert.Equal(t, 135, cancelled.CStat)

	saved := e.notes.saved(note.ID)
	assert.Equal(t, entity.StatusCancelled, saved.Status)
	assert.Equal(t, []string{note.ID}, e.scheduler.cancelled())
}

func TestCancel_JustificativaCurta(t *testing.T) {
	e := newEnv()
	note := authorizedNote(t, e)

	_, err := e.orch.Cancel(context.Background(), note.ID, "curta")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
	assert.Zero(t, e.transport.eventos)
}

func TestCancel_TransicaoInvalida(t *testing.T) {
	e := newEnv()
	e.transport.loteResp = []byte(respRejeitada)
	note, err := e.orch.Issue(context.Background(), &fiscal.IssueInput{
		OrderID: "ord-1", ClientID: "cli-1", Items: itensTeste(),
	})
	require.NoError(t, err)
	require.Equal(t, entity.StatusRejected, note.Status)

	_, err = e.orch.Cancel(context.Background(), note.ID, "justificativa com tamanho válido")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

// Evento recusado pela SEFAZ deixa a nota intocada em AUTHORIZED.
func TestCancel_EventoRecusado(t *testing.T) {
	e := newEnv()
	note := authorizedNote(t, e)

	e.transport.eventoResp = []byte(respEventoRejeitado)
	_, err := e.orch.Cancel(context.Background(), note.ID, "justificativa com tamanho válido")
	require.Error(t, err)
	assert.Equal(t, domain.KindProviderRejected, domain.KindOf(err))

	saved := e.notes.saved(note.ID)
	assert.Equal(t, entity.StatusAuthorized, saved.Status)
}

func TestCancel_FalhaDeTransporte(t *testing.T) {
	e := newEnv()
	note := authorizedNote(t, e)

	e.transport.eventoErr = domain.NewFiscalError(domain.KindProviderTimeout, "sem resposta")
	_, err := e.orch.Cancel(context.Background(), note.ID, "justificativa com tamanho válido")
	require.Error(t, err)
	assert.Equal(t, domain.KindProviderTimeout, domain.KindOf(err))

	saved := e.notes.saved(note.ID)
	assert.Equal(t, entity.StatusAuthorized, saved.Status)
}

// Carta de correção registra o retorno sem mudar o status da nota.
func TestCorrect_RegistraSemMudarStatus(t *testing.T) {
	e := newEnv()
	note := authorizedNote(t, e)

	e.transport.eventoResp = []byte(respEventoRegistrado)
	corrected, err := e.orch.Correct(context.Background(), note.ID, "corrigir o endereço de entrega do destinatário")
	require.NoError(t, err)

	assert.Equal(t, entity.StatusAuthorized, corrected.Status)
	assert.Equal(t, 135, corrected.CStat)

	saved := e.notes.saved(note.ID)
	assert.Equal(t, entity.StatusAuthorized, saved.Status)
	assert.Equal(t, 135, saved.CStat)
}

func TestCorrect_ExigeNotaAutorizada(t *testing.T) {
	e := newEnv()
	note := awaitingNote(t, e)

	_, err := e.orch.Correct(context.Background(), note.ID, "corrigir o endereço de entrega do destinatário")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
	assert.Zero(t, e.transport.eventos)
}

func TestIssueService_EmissaoSincrona(t *testing.T) {
	e := newEnv()
	e.strategy.out = &nfse.Outcome{
		Status:     entity.StatusAuthorized,
		NumeroNFSe: "2025000123",
		Protocolo:  "AB12-CD34",
	}

	note, err := e.orch.IssueService(context.Background(), &fiscal.ServiceIssueInput{
		OrderID:   "ord-1",
		ClientID:  "cli-1",
		ServiceID: "srv-1",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.NoteKindService, note.Kind)
	assert.Equal(t, entity.StatusAuthorized, note.Status)
	assert.Equal(t, "2025000123", note.Protocolo, "o número da NFS-e prevalece sobre o protocolo")
	assert.Equal(t, int64(1), note.Numero)

	// Quantidade omitida vira 1 e o valor vem do preço do serviço
	require.NotNil(t, e.strategy.lastIn)
	assert.Equal(t, "1", e.strategy.lastIn.Quantidade.String())
	assert.Equal(t, "150.00", e.strategy.lastIn.Valor.StringFixed(2))
}

// Os sequenciais de produto e serviço são independentes.
func TestIssueService_SequencialProprio(t *testing.T) {
	e := newEnv()
	e.strategy.out = &nfse.Outcome{Status: entity.StatusAuthorized, NumeroNFSe: "1"}

	produto, err := e.orch.Issue(context.Background(), &fiscal.IssueInput{
		OrderID: "ord-1", ClientID: "cli-1", Items: itensTeste(),
	})
	require.NoError(t, err)
	servico, err := e.orch.IssueService(context.Background(), &fiscal.ServiceIssueInput{
		OrderID: "ord-2", ClientID: "cli-1", ServiceID: "srv-1",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), produto.Numero)
	assert.Equal(t, int64(1), servico.Numero)
}

// Provedor assíncrono: a nota fica AWAITING com o protocolo como recibo. A
// resolução é manual (consulta pelo protocolo), sem agendamento.
func TestIssueService_EmissaoAssincrona(t *testing.T) {
	e := newEnv()
	e.strategy.out = &nfse.Outcome{Status: entity.StatusAwaiting, Protocolo: "PROTO-778899"}

	note, err := e.orch.IssueService(context.Background(), &fiscal.ServiceIssueInput{
		OrderID: "ord-1", ClientID: "cli-1", ServiceID: "srv-1",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusAwaiting, note.Status)
	assert.Equal(t, "PROTO-778899", note.Recibo)
	assert.Empty(t, e.scheduler.scheduled())
}

func TestIssueService_RecusadaPeloProvedor(t *testing.T) {
	e := newEnv()
	e.strategy.out = &nfse.Outcome{Status: entity.StatusRejected, Motivo: "Aliquota divergente"}

	note, err := e.orch.IssueService(context.Background(), &fiscal.ServiceIssueInput{
		OrderID: "ord-1", ClientID: "cli-1", ServiceID: "srv-1",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusRejected, note.Status)
	assert.Contains(t, note.Motivo, "Aliquota divergente")
}

func TestIssueService_ValidacaoNaoConsomeNumero(t *testing.T) {
	t.Run("município sem convênio", func(t *testing.T) {
		e := newEnv()
		e.clients.clients["cli-1"].CodigoMunicipio = "9999999"
		_, err := e.orch.IssueService(context.Background(), &fiscal.ServiceIssueInput{
			OrderID: "ord-1", ClientID: "cli-1", ServiceID: "srv-1",
		})
		require.Error(t, err)
		assert.Equal(t, domain.KindUnsupportedMunicipality, domain.KindOf(err))
		assert.Zero(t, e.notes.consumed(entity.NoteKindService))
	})

	t.Run("documento do tomador inválido", func(t *testing.T) {
		e := newEnv()
		e.clients.clients["cli-1"].CpfCnpj = "12345678901"
		_, err := e.orch.IssueService(context.Background(), &fiscal.ServiceIssueInput{
			OrderID: "ord-1", ClientID: "cli-1", ServiceID: "srv-1",
		})
		require.Error(t, err)
		assert.Equal(t, domain.KindInvalidTaxID, domain.KindOf(err))
		assert.Zero(t, e.notes.consumed(entity.NoteKindService))
	})

	t.Run("serviço inexistente", func(t *testing.T) {
		e := newEnv()
		_, err := e.orch.IssueService(context.Background(), &fiscal.ServiceIssueInput{
			OrderID: "ord-1", ClientID: "cli-1", ServiceID: "srv-x",
		})
		require.Error(t, err)
		assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
		assert.Zero(t, e.notes.consumed(entity.NoteKindService))
	})
}

// Falha da estratégia depois da criação resolve a nota, como na NF-e.
func TestIssueService_FalhaDoProvedorResolveRejected(t *testing.T) {
	e := newEnv()
	e.strategy.err = domain.NewFiscalError(domain.KindProviderError, "HTTP 500")

	note, err := e.orch.IssueService(context.Background(), &fiscal.ServiceIssueInput{
		OrderID: "ord-1", ClientID: "cli-1", ServiceID: "srv-1",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusRejected, note.Status)
	assert.Contains(t, note.ErroDetalhe, "provedor municipal")
}
