package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"xflow.dev/assistant/internal/logging"
)

func NewRouter(apiHandler *APIHandler, logger *zap.Logger, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.Health)
		r.Post("/session", apiHandler.CreateSessionHandler)
		r.Get("/twitter/profile", apiHandler.TwitterProfileHandler)

		// Page-session routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.SessionMiddleware)
			if requestTimeout > 0 {
				r.Use(middleware.Timeout(requestTimeout))
			}

			r.Delete("/session", apiHandler.EndSessionHandler)

			r.Post("/style/analyze", apiHandler.AnalyzeStyleHandler)
			r.Put("/style", apiHandler.SaveStyleHandler)
			r.Get("/style", apiHandler.GetStyleHandler)
			r.Delete("/style", apiHandler.DeleteStyleHandler)

			r.Post("/tweets/analyze", apiHandler.AnalyzeDraftHandler)
			r.Get("/tweets/last", apiHandler.LastAnalysisHandler)

			r.Post("/memes/search", apiHandler.SearchMemesHandler)
			r.Post("/memes/custom", apiHandler.CustomMemeHandler)
			r.Post("/images", apiHandler.GenerateImageHandler)

			r.Post("/threads", apiHandler.ThreadHandler)
			r.Post("/bio", apiHandler.BioHandler)
			r.Get("/trends", apiHandler.TrendsHandler)

			r.Post("/plan", apiHandler.PlanHandler)
			r.Get("/plan", apiHandler.GetPlanHandler)

			r.Post("/profile", apiHandler.ConnectProfileHandler)
			r.Get("/profile", apiHandler.GetProfileHandler)
			r.Delete("/profile", apiHandler.DisconnectProfileHandler)

			r.Post("/share", apiHandler.ShareHandler)
		})
	})

	return r
}
