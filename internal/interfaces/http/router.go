package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oficinapro/fiscal-api/internal/application/fiscal"
	"github.com/oficinapro/fiscal-api/internal/domain/repository"
	"github.com/oficinapro/fiscal-api/pkg/logger"
)

// RouterDeps dependências para o router.
type RouterDeps struct {
	Orchestrator *fiscal.LifecycleOrchestrator
	Ingestor     *fiscal.WebhookIngestor
	NoteRepo     repository.FiscalNoteRepository
	ClientUC     *fiscal.ClientUseCase
	ProductUC    *fiscal.ProductUseCase
	ServiceUC    *fiscal.ServiceUseCase
	Log          *logger.Logger
	JWTSecret    string
}

// Router registra as rotas da API fiscal.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api/fiscal")

	// Webhook do gateway de pagamento (público; a autenticidade do gateway
	// é verificada na borda, fora deste serviço)
	webhookHandler := NewWebhookHandler(deps.Ingestor, deps.Log)
	api.Post("/webhooks/payment", webhookHandler.Receive)

	// Rotas protegidas (exigem Bearer Token do ERP)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Notas fiscais
	notes := protected.Group("/notes")
	noteHandler := NewFiscalNoteHandler(deps.Orchestrator, deps.NoteRepo)
	notes.Post("/", noteHandler.Issue)
	notes.Post("/service", noteHandler.IssueService)
	notes.Get("/", noteHandler.List)
	notes.Get("/:id", noteHandler.GetByID)
	notes.Post("/:id/cancel", noteHandler.Cancel)
	notes.Post("/:id/correct", noteHandler.Correct)
	notes.Post("/:id/poll", noteHandler.Poll)
	notes.Get("/:id/danfe", noteHandler.GetDANFE)
	notes.Get("/:id/xml", noteHandler.GetXML)

	// Destinatários fiscais
	clients := protected.Group("/clients")
	clientHandler := NewFiscalClientHandler(deps.ClientUC)
	clients.Post("/", clientHandler.Create)
	clients.Get("/", clientHandler.List)
	clients.Get("/:id", clientHandler.GetByID)
	clients.Put("/:id", clientHandler.Update)
	clients.Delete("/:id", clientHandler.Delete)

	// Cadastro fiscal de peças + saldo físico
	products := protected.Group("/products")
	productHandler := NewFiscalProductHandler(deps.ProductUC)
	products.Post("/", productHandler.Create)
	products.Get("/", productHandler.List)
	products.Get("/:id", productHandler.GetByID)
	products.Put("/:id", productHandler.Update)
	products.Delete("/:id", productHandler.Delete)
	products.Get("/:id/stock", productHandler.GetStock)
	products.Put("/:id/stock", productHandler.SetStock)

	// Cadastro fiscal de serviços
	services := protected.Group("/services")
	serviceHandler := NewFiscalServiceHandler(deps.ServiceUC)
	services.Post("/", serviceHandler.Create)
	services.Get("/", serviceHandler.List)
	services.Get("/:id", serviceHandler.GetByID)
	services.Put("/:id", serviceHandler.Update)
	services.Delete("/:id", serviceHandler.Delete)
}
