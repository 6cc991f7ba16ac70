package handlers

import (
	"net/http"

	"structura/auth"
	"structura/database"
	"structura/logger"
	"structura/middleware"
	"structura/models"
	"structura/services"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps is everything the router needs to build its handlers.
type Deps struct {
	DB        *gorm.DB
	Tx        *database.TxManager
	Resolver  *auth.Resolver
	Logger    logger.Logger
	LoginRate func(http.Handler) http.Handler
	// TrustProxy rewrites RemoteAddr from forwarding headers.
	TrustProxy bool
}

func NewRouter(d Deps) http.Handler {
	coordinator := services.NewAssignmentCoordinator(d.Tx)
	workforce := services.NewWorkforceRegistry(d.Tx)
	accounts := services.NewAccountService(d.Tx)

	authHandler := NewAuthHandler(d.Resolver)
	projectHandler := NewProjectHandler(coordinator, workforce)
	workforceHandler := NewWorkforceHandler(workforce)
	attendanceHandler := NewAttendanceHandler(services.NewAttendanceLedger(d.Tx))
	phaseHandler := NewPhaseHandler(services.NewPhaseService(d.Tx))
	addressHandler := NewAddressHandler(d.DB)

	log := d.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	if d.TrustProxy {
		router.Use(chimiddleware.RealIP)
	}
	router.Use(middleware.RequestLogger(log))
	router.Use(chimiddleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Ping(r.Context(), d.DB); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		if d.LoginRate != nil {
			r.Use(d.LoginRate)
		}
		r.Post("/login", authHandler.Login)
	})

	for path, kind := range map[string]models.AccountKind{
		"/users":       models.KindUser,
		"/supervisors": models.KindSupervisor,
		"/clients":     models.KindClient,
	} {
		h := NewAccountHandler(kind, accounts, coordinator)
		router.Route(path, func(r chi.Router) {
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Get("/{id}", h.Get)
			r.Put("/{id}", h.Update)
			r.Patch("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	}

	router.Route("/projects", func(r chi.Router) {
		r.Get("/", projectHandler.List)
		r.Post("/", projectHandler.Create)
		r.Get("/{id}", projectHandler.Get)
		r.Put("/{id}", projectHandler.Update)
		r.Patch("/{id}", projectHandler.Update)
		r.Delete("/{id}", projectHandler.Delete)
		r.Get("/{id}/workers", projectHandler.Workers)
	})

	router.Route("/field-workers", func(r chi.Router) {
		r.Get("/", workforceHandler.ListWorkers)
		r.Post("/", workforceHandler.CreateWorker)
		r.Get("/{id}", workforceHandler.GetWorker)
		r.Put("/{id}", workforceHandler.UpdateWorker)
		r.Patch("/{id}", workforceHandler.UpdateWorker)
		r.Delete("/{id}", workforceHandler.DeleteWorker)
	})

	router.Route("/subtask-assignments", func(r chi.Router) {
		r.Get("/", workforceHandler.ListAssignments)
		r.Post("/", workforceHandler.Assign)
		r.Delete("/", workforceHandler.UnassignBySubtask)
		r.Delete("/{id}", workforceHandler.Unassign)
	})

	router.Route("/phases", func(r chi.Router) {
		r.Get("/", phaseHandler.ListPhases)
		r.Post("/", phaseHandler.CreatePhase)
		r.Get("/{id}", phaseHandler.GetPhase)
		r.Put("/{id}", phaseHandler.UpdatePhase)
		r.Patch("/{id}", phaseHandler.UpdatePhase)
		r.Delete("/{id}", phaseHandler.DeletePhase)
	})

	router.Route("/subtasks", func(r chi.Router) {
		r.Get("/", phaseHandler.ListSubtasks)
		r.Post("/", phaseHandler.CreateSubtask)
		r.Put("/{id}", phaseHandler.UpdateSubtask)
		r.Patch("/{id}", phaseHandler.UpdateSubtask)
		r.Delete("/{id}", phaseHandler.DeleteSubtask)
	})

	router.Route("/attendance", func(r chi.Router) {
		r.Get("/", attendanceHandler.Query)
		r.Post("/", attendanceHandler.Create)
		r.Put("/", attendanceHandler.UpdateByKey)
		r.Put("/{id}", attendanceHandler.Update)
		r.Delete("/{id}", attendanceHandler.Delete)
	})

	router.Get("/regions", addressHandler.Regions)
	router.Get("/provinces", addressHandler.Provinces)
	router.Get("/cities", addressHandler.Cities)
	router.Get("/barangays", addressHandler.Barangays)

	return router
}
