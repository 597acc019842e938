package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/panops/panorama-address-manager/internal/api/handler"
	"github.com/panops/panorama-address-manager/internal/api/middleware"
	"github.com/panops/panorama-address-manager/internal/normalize"
	"github.com/panops/panorama-address-manager/internal/service"
	"github.com/panops/panorama-address-manager/internal/storage"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(
	store storage.Storage,
	normalizer *normalize.Normalizer,
	pushService *service.PushService,
	bootstrapKey string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes (auth required, JSON Content-Type)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(store, bootstrapKey))

		// API Keys
		keyHandler := handler.NewAPIKeyHandler(store)
		r.Post("/keys", keyHandler.Create)
		r.Get("/keys", keyHandler.List)
		r.Delete("/keys/{id}", keyHandler.Delete)

		// Batches
		batchHandler := handler.NewBatchHandler(store, normalizer, pushService)
		r.Post("/batches", batchHandler.Create)
		r.Get("/batches", batchHandler.List)
		r.Get("/batches/{id}", batchHandler.Get)
		r.Get("/batches/{id}/rejections", batchHandler.Rejections)
		r.Post("/batches/{id}/customers", batchHandler.AddCustomer)
		r.Post("/batches/{id}/complete", batchHandler.Complete)
		r.Delete("/batches/{id}", batchHandler.Delete)

		// Customers
		customerHandler := handler.NewCustomerHandler(store, normalizer, pushService)
		r.Get("/customers", customerHandler.List)
		r.Get("/customers/{id}", customerHandler.Get)
		r.Put("/customers/{id}", customerHandler.Update)
		r.Delete("/customers/{id}", customerHandler.Delete)

		// Export
		exportHandler := handler.NewExportHandler(pushService)
		r.Get("/export", exportHandler.Get)

		// Push management
		pushHandler := handler.NewPushHandler(store, pushService)
		r.Get("/push/preview", pushHandler.Preview)
		r.Post("/push/sync", pushHandler.Sync)
		r.Get("/push/versions", pushHandler.Versions)
		r.Post("/push/redeploy/{id}", pushHandler.Redeploy)
	})

	return r
}
