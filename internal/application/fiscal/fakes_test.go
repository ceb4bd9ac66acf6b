package fiscal_test

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	fiscal "github.com/oficinapro/fiscal-api/internal/application/fiscal"
	"github.com/oficinapro/fiscal-api/internal/domain"
	"github.com/oficinapro/fiscal-api/internal/domain/entity"
	infranfe "github.com/oficinapro/fiscal-api/internal/infrastructure/nfe"
	"github.com/oficinapro/fiscal-api/internal/infrastructure/nfse"
	"github.com/oficinapro/fiscal-api/pkg/config"
	"github.com/oficinapro/fiscal-api/pkg/logger"
)

// Fakes em memória dos portos do orquestrador. Todos guardam cópias: o
// orquestrador muta o ponteiro que criou, e os tests precisam distinguir o
// estado em memória do estado persistido.

const chaveFake = "35250732409620000175550010000037471011544648"

// Respostas brutas da SEFAZ usadas pelos fakes de transporte. O parser real é
// usado nos tests; só o canal HTTP é substituído.
const (
	respAutorizada = `<retConsReciNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00"><cStat>104</cStat><xMotivo>Lote processado</xMotivo><protNFe versao="4.00"><infProt><chNFe>` + chaveFake + `</chNFe><nProt>135250000012345</nProt><cStat>100</cStat><xMotivo>Autorizado o uso da NF-e</xMotivo></infProt></protNFe></retConsReciNFe>`

	respLoteRecebido = `<retEnviNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00"><cStat>103</cStat><xMotivo>Lote recebido com sucesso</xMotivo><infRec><nRec>351000012345678</nRec></infRec></retEnviNFe>`

	respEmProcessamento = `<retConsReciNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00"><cStat>105</cStat><xMotivo>Lote em processamento</xMotivo></retConsReciNFe>`

	respRejeitada = `<retEnviNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00"><cStat>225</cStat><xMotivo>Rejeicao: Falha no Schema XML</xMotivo></retEnviNFe>`

	respEventoRegistrado = `<retEnvEvento xmlns="http://www.portalfiscal.inf.br/nfe" versao="1.00"><retEvento versao="1.00"><infEvento><cStat>135</cStat><xMotivo>Evento registrado e vinculado a NF-e</xMotivo><chNFe>` + chaveFake + `</chNFe><nProt>135250000054321</nProt></infEvento></retEvento></retEnvEvento>`

	respEventoRejeitado = `<retEnvEvento xmlns="http://www.portalfiscal.inf.br/nfe" versao="1.00"><retEvento versao="1.00"><infEvento><cStat>573</cStat><xMotivo>Rejeicao: Duplicidade de evento</xMotivo></infEvento></retEvento></retEnvEvento>`
)

// ─── repositório de notas ───────────────────────────────────────────────────

type fakeNoteRepo struct {
	mu    sync.Mutex
	seq   map[string]int64
	notes map[string]*entity.FiscalNote

	nextErr   error
	createErr error
	updateErr func(n *entity.FiscalNote) error

	// missAuthorized faz as próximas N buscas por ordem autorizada devolverem
	// vazio, simulando a janela de corrida entre checagem e insert.
	missAuthorized int
}

func newFakeNoteRepo() *fakeNoteRepo {
	return &fakeNoteRepo{
		seq:   make(map[string]int64),
		notes: make(map[string]*entity.FiscalNote),
	}
}

func (r *fakeNoteRepo) Create(_ context.Context, n *entity.FiscalNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	n.ID = fmt.Sprintf("note-%d", len(r.notes)+1)
	n.CreatedAt = time.Now()
	cp := *n
	r.notes[n.ID] = &cp
	return nil
}

func (r *fakeNoteRepo) Update(_ context.Context, n *entity.FiscalNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		if err := r.updateErr(n); err != nil {
			return err
		}
	}
	if _, ok := r.notes[n.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *n
	r.notes[n.ID] = &cp
	return nil
}

func (r *fakeNoteRepo) GetByID(_ context.Context, id string) (*entity.FiscalNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (r *fakeNoteRepo) GetAuthorizedByOrderID(_ context.Context, orderID string) (*entity.FiscalNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missAuthorized > 0 {
		r.missAuthorized--
		return nil, nil
	}
	for _, n := range r.notes {
		if n.OrderID == orderID && n.Status == entity.StatusAuthorized {
			cp := *n
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeNoteRepo) List(_ context.Context, kind string, _, _ int) ([]*entity.FiscalNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.FiscalNote
	for _, n := range r.notes {
		if kind == "" || n.Kind == kind {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeNoteRepo) NextNumber(_ context.Context, kind string) (int64, error) {
	if r.nextErr != nil {
		return 0, r.nextErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq[kind]++
	return r.seq[kind], nil
}

// saved devolve o estado persistido da nota, como ficaria no banco.
func (r *fakeNoteRepo) saved(id string) *entity.FiscalNote {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok {
		return nil
	}
	cp := *n
	return &cp
}

func (r *fakeNoteRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

func (r *fakeNoteRepo) consumed(kind string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq[kind]
}

// ─── cadastros ──────────────────────────────────────────────────────────────

type fakeClientRepo struct {
	mu      sync.Mutex
	clients map[string]*entity.FiscalClient
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{clients: make(map[string]*entity.FiscalClient)}
}

func (r *fakeClientRepo) Create(_ context.Context, c *entity.FiscalClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
	return nil
}

func (r *fakeClientRepo) Update(_ context.Context, c *entity.FiscalClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
	return nil
}

func (r *fakeClientRepo) GetByID(_ context.Context, id string) (*entity.FiscalClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (r *fakeClientRepo) List(_ context.Context, _, _ int) ([]*entity.FiscalClient, error) {
	return nil, nil
}

func (r *fakeClientRepo) Delete(_ context.Context, id string) error {
	delete(r.clients, id)
	return nil
}

type fakeProductRepo struct {
	products map[string]*entity.FiscalProduct
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[string]*entity.FiscalProduct)}
}

func (r *fakeProductRepo) Create(_ context.Context, p *entity.FiscalProduct) error {
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) Update(_ context.Context, p *entity.FiscalProduct) error {
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) GetByID(_ context.Context, id string) (*entity.FiscalProduct, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (r *fakeProductRepo) List(_ context.Context, _, _ int) ([]*entity.FiscalProduct, error) {
	return nil, nil
}

func (r *fakeProductRepo) Delete(_ context.Context, id string) error {
	delete(r.products, id)
	return nil
}

type fakeServiceRepo struct {
	services map[string]*entity.FiscalService
}

func newFakeServiceRepo() *fakeServiceRepo {
	return &fakeServiceRepo{services: make(map[string]*entity.FiscalService)}
}

func (r *fakeServiceRepo) Create(_ context.Context, s *entity.FiscalService) error {
	r.services[s.ID] = s
	return nil
}

func (r *fakeServiceRepo) Update(_ context.Context, s *entity.FiscalService) error {
	r.services[s.ID] = s
	return nil
}

func (r *fakeServiceRepo) GetByID(_ context.Context, id string) (*entity.FiscalService, error) {
	s, ok := r.services[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (r *fakeServiceRepo) List(_ context.Context, _, _ int) ([]*entity.FiscalService, error) {
	return nil, nil
}

func (r *fakeServiceRepo) Delete(_ context.Context, id string) error {
	delete(r.services, id)
	return nil
}

// ─── documento, assinatura e transporte ─────────────────────────────────────

type fakeBuilder struct {
	err  error
	last *infranfe.BuildContext
}

func (b *fakeBuilder) Build(ctx *infranfe.BuildContext) (*infranfe.BuildResult, error) {
	b.last = ctx
	if b.err != nil {
		return nil, b.err
	}
	total := decimal.Zero
	for _, l := range ctx.Linhas {
		total = total.Add(l.Item.NetLine())
	}
	return &infranfe.BuildResult{
		XML:    []byte(`<NFe><infNFe Id="NFe` + chaveFake + `"/></NFe>`),
		Chave:  chaveFake,
		Numero: ctx.Numero,
		Total:  total.Round(2),
	}, nil
}

type fakeEvents struct {
	err error
}

func (e *fakeEvents) BuildCancelamento(_ *infranfe.EventContext, justificativa string) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []byte(`<evento><xJust>` + justificativa + `</xJust></evento>`), nil
}

func (e *fakeEvents) BuildCartaCorrecao(_ *infranfe.EventContext, correcao string) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []byte(`<evento><xCorrecao>` + correcao + `</xCorrecao></evento>`), nil
}

type fakeSigner struct {
	err error
}

func (s *fakeSigner) Sign(xmlBytes []byte, _ tls.Certificate) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]byte("<!--signed-->"), xmlBytes...), nil
}

type fakeTransport struct {
	mu sync.Mutex

	loteResp   []byte
	loteErr    error
	reciboResp []byte
	reciboErr  error
	eventoResp []byte
	eventoErr  error

	lotes     int
	consultas int
	eventos   int
}

func (t *fakeTransport) EnviarLote(_ context.Context, _, _ string, _ []byte, _ string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lotes++
	return t.loteResp, t.loteErr
}

func (t *fakeTransport) ConsultarRecibo(_ context.Context, _, _, _ string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consultas++
	return t.reciboResp, t.reciboErr
}

func (t *fakeTransport) EnviarEvento(_ context.Context, _, _ string, _ []byte, _ string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eventos++
	return t.eventoResp, t.eventoErr
}

// ─── agendador e NFS-e ──────────────────────────────────────────────────────

type fakeScheduler struct {
	mu        sync.Mutex
	pending   map[string]func()
	schedules []string
	cancels   []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{pending: make(map[string]func())}
}

func (s *fakeScheduler) Schedule(noteID string, _ time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[noteID] = fn
	s.schedules = append(s.schedules, noteID)
}

func (s *fakeScheduler) Cancel(noteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, noteID)
	s.cancels = append(s.cancels, noteID)
}

func (s *fakeScheduler) scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.schedules...)
}

func (s *fakeScheduler) cancelled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cancels...)
}

type fakeStrategy struct {
	out    *nfse.Outcome
	err    error
	lastIn *nfse.IssueInput
}

func (s *fakeStrategy) Issue(_ context.Context, in *nfse.IssueInput) (*nfse.Outcome, error) {
	s.lastIn = in
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

type fakeNfseRegistry struct {
	strategies map[string]nfse.Strategy
}

func (r *fakeNfseRegistry) For(codigoMunicipio string) (nfse.Strategy, error) {
	s, ok := r.strategies[codigoMunicipio]
	if !ok {
		return nil, domain.NewFiscalError(domain.KindUnsupportedMunicipality,
			fmt.Sprintf("município %q sem provedor de NFS-e cadastrado", codigoMunicipio))
	}
	return s, nil
}

// ─── ambiente de test ───────────────────────────────────────────────────────

// env reúne o orquestrador e todos os fakes, já semeado com um cliente, um
// produto e um serviço válidos.
type env struct {
	notes    *fakeNoteRepo
	clients  *fakeClientRepo
	products *fakeProductRepo
	services *fakeServiceRepo

	builder   *fakeBuilder
	events    *fakeEvents
	signer    *fakeSigner
	transport *fakeTransport
	scheduler *fakeScheduler
	strategy  *fakeStrategy

	certErr error

	orch *fiscal.LifecycleOrchestrator
}

func emitenteFake() config.FiscalConfig {
	return config.FiscalConfig{
		CNPJ:            "32409620000175",
		RazaoSocial:     "Oficina Mecânica Teste LTDA",
		IE:              "123456789",
		IM:              "87654",
		UF:              "SP",
		CodigoUF:        "35",
		CodigoMunicipio: "3550308",
		Serie:           1,
		Regime:          "1",
		Ambiente:        "2",
	}
}

func newEnv() *env {
	e := &env{
		notes:     newFakeNoteRepo(),
		clients:   newFakeClientRepo(),
		products:  newFakeProductRepo(),
		services:  newFakeServiceRepo(),
		builder:   &fakeBuilder{},
		events:    &fakeEvents{},
		signer:    &fakeSigner{},
		transport: &fakeTransport{loteResp: []byte(respAutorizada)},
		scheduler: newFakeScheduler(),
		strategy:  &fakeStrategy{},
	}

	e.clients.clients["cli-1"] = &entity.FiscalClient{
		ID:              "cli-1",
		Nome:            "João da Silva",
		CpfCnpj:         "52998224725",
		Email:           "joao@example.com",
		CodigoMunicipio: "3550308",
		UF:              "SP",
	}
	e.products.products["prod-1"] = &entity.FiscalProduct{
		ID:        "prod-1",
		Codigo:    "PAST-001",
		Descricao: "Pastilha de freio dianteira",
		NCM:       "87083090",
	}
	e.services.services["srv-1"] = &entity.FiscalService{
		ID:            "srv-1",
		Descricao:     "Troca de óleo e filtros",
		CodigoServico: "14.01",
		AliquotaISS:   decimal.RequireFromString("5"),
		Preco:         decimal.RequireFromString("150.00"),
	}

	e.orch = fiscal.NewLifecycleOrchestrator(fiscal.OrchestratorDeps{
		NoteRepo:    e.notes,
		ClientRepo:  e.clients,
		ProductRepo: e.products,
		ServiceRepo: e.services,
		Builder:     e.builder,
		Events:      e.events,
		Signer:      e.signer,
		Certs: func() (tls.Certificate, error) {
			return tls.Certificate{}, e.certErr
		},
		Transport: e.transport,
		Parser:    infranfe.NewResponseParserService(),
		Nfse:      &fakeNfseRegistry{strategies: map[string]nfse.Strategy{"3550308": e.strategy}},
		Scheduler: e.scheduler,
		Emitente:  emitenteFake(),
		Log:       logger.New(logger.Config{Level: "error"}),
		PollDelay: time.Millisecond,
		Now:       func() time.Time { return time.Date(2025, 7, 10, 14, 30, 0, 0, time.UTC) },
		CNF:       func() string { return "01154464" },
	})
	return e
}

func itensTeste() []entity.NoteItem {
	return []entity.NoteItem{
		{
			ProductID:   "prod-1",
			Description: "Pastilha de freio dianteira",
			Quantity:    decimal.NewFromInt(2),
			UnitPrice:   decimal.RequireFromString("100.00"),
			Discount:    decimal.RequireFromString("10.00"),
		},
	}
}
