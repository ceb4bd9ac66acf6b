package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	appfiscal "github.com/oficinapro/fiscal-api/internal/application/fiscal"
	"github.com/oficinapro/fiscal-api/internal/infrastructure/mail"
	infranfe "github.com/oficinapro/fiscal-api/internal/infrastructure/nfe"
	"github.com/oficinapro/fiscal-api/internal/infrastructure/nfe/signer"
	"github.com/oficinapro/fiscal-api/internal/infrastructure/nfse"
	infrapdf "github.com/oficinapro/fiscal-api/internal/infrastructure/pdf"
	"github.com/oficinapro/fiscal-api/internal/infrastructure/postgres"
	httpRouter "github.com/oficinapro/fiscal-api/internal/interfaces/http"
	"github.com/oficinapro/fiscal-api/pkg/config"
	"github.com/oficinapro/fiscal-api/pkg/logger"
)

// Municípios conveniados de NFS-e. Cidade nova entra aqui com a estratégia do
// provedor dela.
const (
	municipioGuarulhos     = "3518800" // lote assíncrono de RPS
	municipioBeloHorizonte = "3106200" // ABRASF síncrono
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicação")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexão ao PostgreSQL")
	}
	defer pool.Close()

	noteRepo := postgres.NewFiscalNoteRepository(pool)
	clientRepo := postgres.NewFiscalClientRepository(pool)
	productRepo := postgres.NewFiscalProductRepository(pool)
	serviceRepo := postgres.NewFiscalServiceRepository(pool)
	stockRepo := postgres.NewStockRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Certificado A1 do emitente. A carga valida vigência; sem certificado
	// válido o serviço não sobe, melhor falhar aqui que na primeira emissão.
	cert, err := signer.LoadCertificate(cfg.Fiscal)
	if err != nil {
		log.Fatal().Err(err).Msg("certificado digital do emitente")
	}
	certProvider := appfiscal.CertProvider(func() (tls.Certificate, error) {
		// Revalida a cada uso: um certificado que vence com o serviço no ar
		// passa a falhar na emissão, não silenciosamente no transporte.
		return signer.LoadCertificate(cfg.Fiscal)
	})

	xmlBuilder := infranfe.NewXMLBuilderService()
	eventBuilder := infranfe.NewEventBuilderService()
	responseParser := infranfe.NewResponseParserService()
	signerSvc := signer.NewXMLDSigService()
	soapClient := infranfe.NewSOAPClient(cert, 30*time.Second)

	// Estratégias de NFS-e por município conveniado
	nfseRegistry := nfse.NewRegistry()
	nfseRegistry.Register(municipioGuarulhos,
		nfse.NewPatternAStrategy("https://nfe.guarulhos.sp.gov.br/ws/recepcaolote", 30*time.Second))
	nfseRegistry.Register(municipioBeloHorizonte,
		nfse.NewPatternBStrategy("https://bhissdigital.pbh.gov.br/bhiss-ws/nfse", 30*time.Second))

	pdfGenerator := infrapdf.NewDANFEGenerator()
	mailSender := mail.NewGomailSender(cfg.SMTP)
	pipeline := appfiscal.NewPostAuthorizationPipeline(
		txRunner, noteRepo, pdfGenerator, mailSender, cfg.Fiscal, log,
	)

	scheduler := appfiscal.NewTimerPollScheduler()
	orchestrator := appfiscal.NewLifecycleOrchestrator(appfiscal.OrchestratorDeps{
		NoteRepo:    noteRepo,
		ClientRepo:  clientRepo,
		ProductRepo: productRepo,
		ServiceRepo: serviceRepo,
		Builder:     xmlBuilder,
		Events:      eventBuilder,
		Signer:      signerSvc,
		Certs:       certProvider,
		Transport:   soapClient,
		Parser:      responseParser,
		Nfse:        nfseRegistry,
		Pipeline:    pipeline,
		Scheduler:   scheduler,
		Emitente:    cfg.Fiscal,
		Log:         log,
	})

	ingestor := appfiscal.NewWebhookIngestor(noteRepo, orchestrator, log)

	clientUC := appfiscal.NewClientUseCase(clientRepo)
	productUC := appfiscal.NewProductUseCase(productRepo, stockRepo)
	serviceUC := appfiscal.NewServiceUseCase(serviceRepo)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Fiscal API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Orchestrator: orchestrator,
		Ingestor:     ingestor,
		NoteRepo:     noteRepo,
		ClientUC:     clientUC,
		ProductUC:    productUC,
		ServiceUC:    serviceUC,
		Log:          log,
		JWTSecret:    cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("sinal de desligamento recebido, encerrando servidor...")

	scheduler.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("desligamento do servidor")
	}

	log.Info().Msg("aplicação encerrada")
}
