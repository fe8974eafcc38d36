package serverhttp

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"faxorder-service/internal/config"
	"faxorder-service/internal/middleware"
	"faxorder-service/internal/resolve/handler"
	"faxorder-service/server/http/handlers"
)

// NewRouter wires middleware and routes. ping backs the health check and
// may be nil.
func NewRouter(cfg config.Config, logger zerolog.Logger, h *handler.Handler, ping handlers.Pinger) *chi.Mux {
	r := chi.NewRouter()

	// order matters: recover -> requestID -> logging -> cors -> limit
	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.AllowOrigins))
	r.Use(middleware.LimitBytes(int64(cfg.MaxUploadMB) * 1024 * 1024))

	r.Get("/health", handlers.Health(ping))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/orders", func(r chi.Router) {
		r.Post("/resolve", h.ResolveOrder)
		r.Get("/{orderID}/lines", h.OrderLines)
	})
	r.Post("/lines/{lineID}/confirm", h.ConfirmLine)
	r.Get("/raw-lines/{rawLineID}/audit", h.AuditTrail)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
		r.Get("/{productID}/aliases", h.ProductAliases)
		r.Post("/{productID}/aliases", h.RegisterAlias)
		r.Post("/{productID}/base-price", h.UpdateBasePrice)
		r.Get("/{productID}/price-history", h.PriceHistory)
	})
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.ListCustomers)
		r.Post("/", h.CreateCustomer)
		r.Get("/{customerID}/pricing", h.CustomerPricing)
		r.Put("/{customerID}/pricing/{productID}", h.SetCustomerPrice)
		r.Delete("/{customerID}/pricing/{productID}", h.RemoveCustomerPrice)
	})
	r.Route("/purchases", func(r chi.Router) {
		r.Get("/", h.ListPurchases)
		r.Post("/", h.RecordPurchase)
	})
	r.Get("/aliases", h.ListAliases)
	r.Get("/aliases/suggestions", h.AliasSuggestions)
	r.Post("/catalog/import", h.ImportCatalog)

	return r
}
