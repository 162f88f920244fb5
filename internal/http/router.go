package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/salesledger/internal/http/account"
	"github.com/MrJamesThe3rd/salesledger/internal/http/auth"
	"github.com/MrJamesThe3rd/salesledger/internal/http/sales"
)

func New(
	allowedOrigin string,
	authn *auth.Manager,
	accountsV1 *account.Handler,
	salesV1 *sales.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	if allowedOrigin != "" {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{allowedOrigin},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			accountsV1.AccountRoutes(r)
		})

		r.Route("/sessions", accountsV1.SessionRoutes)

		r.Route("/sales", func(r chi.Router) {
			r.Use(authn.Middleware)
			salesV1.Routes(r)
		})
	})

	return router
}
