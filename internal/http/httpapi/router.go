package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"aigc/internal/http/handlers"
	"aigc/internal/middleware"
)

// Options carries what the router needs beyond the handlers themselves.
type Options struct {
	CORSAllowedOrigins []string
	DefaultLocale      string
	CountryLookup      middleware.CountryLookup
	Verifier           middleware.TokenVerifier
	Users              middleware.UserLookup
	RequestTimeout     time.Duration
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(app.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSAllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)
	if opts.RequestTimeout > 0 {
		r.Use(chimw.Timeout(opts.RequestTimeout))
	}

	r.Get("/metrics", app.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/openapi.json", app.APISpec)
		r.Get("/docs", app.APIReference)

		r.Post("/auth/register", app.Register)
		r.Post("/auth/login", app.Login)

		r.Get("/services", app.ListServices)
		r.Get("/services/tags", app.ListTags)
		r.Get("/services/{id}", app.GetService)
		r.Get("/payments/packages", app.ListPackages)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.Verifier, opts.Users))

			r.Get("/me", app.Me)
			r.Get("/me/credits", app.MyCredits)
			r.Get("/me/ledger", app.MyLedger)

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", app.ListJobs)
				r.Post("/image-age-transform", app.SubmitAgeTransform)
				r.Post("/hair-style", app.SubmitHairStyle)
				r.Get("/{id}", app.GetJob)
				r.Delete("/{id}", app.DeleteJob)
				r.Get("/{id}/result", app.JobResult)
				r.Get("/{id}/bundle", app.JobBundle)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Get("/", app.ListPayments)
				r.Post("/", app.CreatePayment)
				r.Post("/packages/{id}", app.BuyPackage)
				r.Post("/{id}/confirm", app.ConfirmPayment)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/users/{id}/credits", app.GrantCredits)
				r.Patch("/services/{id}", app.UpdateService)
			})
		})
	})

	return r
}
