package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ricardofaria/raffletrack-backend/api/controllers"
	"github.com/ricardofaria/raffletrack-backend/api/middleware"
	"github.com/ricardofaria/raffletrack-backend/internal/blocks"
	"github.com/ricardofaria/raffletrack-backend/internal/campaigns"
	"github.com/ricardofaria/raffletrack-backend/internal/importer"
	"github.com/ricardofaria/raffletrack-backend/internal/ledger"
	"github.com/ricardofaria/raffletrack-backend/internal/reconcile"
	"github.com/ricardofaria/raffletrack-backend/internal/scouts"
	"github.com/ricardofaria/raffletrack-backend/pkg/config"
	"github.com/ricardofaria/raffletrack-backend/pkg/db"
	"github.com/ricardofaria/raffletrack-backend/pkg/logger"
	"github.com/ricardofaria/raffletrack-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	campaignService campaigns.Service,
	scoutService scouts.Service,
	blockService blocks.Service,
	ledgerService ledger.Service,
	reconcileService reconcile.Service,
	importService importer.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", controllers.CampaignCreate(campaignService, logg))
			r.Get("/", controllers.CampaignList(campaignService, logg))
			r.Get("/{campaignId}", controllers.CampaignDetail(campaignService, logg))
			r.Patch("/{campaignId}", controllers.CampaignUpdate(campaignService, logg))
			r.Delete("/{campaignId}", controllers.CampaignDelete(campaignService, logg))
			r.Get("/{campaignId}/summary", controllers.CampaignSummary(reconcileService, logg))
			r.Get("/{campaignId}/worklist", controllers.CampaignWorklist(reconcileService, logg))
		})

		r.Route("/scouts", func(r chi.Router) {
			r.Post("/", controllers.ScoutCreate(scoutService, logg))
			r.Get("/", controllers.ScoutList(scoutService, logg))
			r.Get("/{scoutId}", controllers.ScoutDetail(scoutService, logg))
			r.Patch("/{scoutId}", controllers.ScoutUpdate(scoutService, logg))
			r.Delete("/{scoutId}", controllers.ScoutDelete(scoutService, logg))
			r.Get("/{scoutId}/statement", controllers.ScoutStatement(reconcileService, logg))
		})

		r.Route("/blocks", func(r chi.Router) {
			r.Post("/", controllers.BlockCreate(blockService, logg))
			r.Get("/", controllers.BlockList(blockService, logg))
			r.Post("/batch", controllers.BlockBatch(blockService, logg))
			r.Get("/{blockId}", controllers.BlockDetail(blockService, logg))
			r.Patch("/{blockId}", controllers.BlockUpdate(blockService, logg))
			r.Delete("/{blockId}", controllers.BlockDelete(blockService, logg))
			r.Post("/{blockId}/split", controllers.BlockSplit(blockService, logg))
			r.Post("/{blockId}/assign", controllers.BlockAssign(blockService, logg))
			r.Post("/{blockId}/unassign", controllers.BlockUnassign(blockService, logg))
			r.Get("/{blockId}/statement", controllers.BlockStatement(reconcileService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.PaymentCreate(ledgerService, logg))
			r.Get("/", controllers.PaymentList(ledgerService, logg))
			r.Get("/{paymentId}", controllers.PaymentDetail(ledgerService, logg))
			r.Patch("/{paymentId}", controllers.PaymentUpdate(ledgerService, logg))
			r.Delete("/{paymentId}", controllers.PaymentDelete(ledgerService, logg))
		})

		r.Route("/returns", func(r chi.Router) {
			r.Post("/", controllers.ReturnCreate(ledgerService, logg))
			r.Get("/", controllers.ReturnList(ledgerService, logg))
			r.Delete("/{returnId}", controllers.ReturnDelete(ledgerService, logg))
		})

		r.Post("/imports/blocks", controllers.ImportBlocks(importService, cfg.Import, logg))
		r.Get("/exports/blocks", controllers.ExportBlocks(importService, logg))
	})

	return r
}
