// Package http is the REST surface: auth, tests, attempts, uploads and the
// admin audit log. Handlers are plain constructors; NewRouter wires them.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
	"github.com/Batpurev0828/qbtusul/internal/attempt"
	"github.com/Batpurev0828/qbtusul/internal/auth"
	"github.com/Batpurev0828/qbtusul/internal/exam"
	"github.com/Batpurev0828/qbtusul/internal/rbac"
	"github.com/Batpurev0828/qbtusul/internal/storage"
	syncx "github.com/Batpurev0828/qbtusul/internal/sync"
)

type Deps struct {
	Auth     *auth.Service
	Tests    exam.Store
	Attempts *attempt.Service
	Blobs    storage.BlobStore           // optional; disables upload and /assets
	Events   *syncx.EventRepo            // optional; disables audit log
	Ready    func(context.Context) error // optional readiness probe

	Log            *zap.Logger
	CORSOrigins    []string
	UploadMaxBytes int64
	LoginLimiter   *RateLimiter
	RequestTimeout time.Duration
}

func NewRouter(d Deps) chi.Router {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(d.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(auth.Authenticate(d.Auth))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				loggerFrom(r.Context()).Warn("not ready", zap.Error(err))
				apierr.WriteStatus(w, http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	if d.Blobs != nil {
		r.Route("/assets", func(ar chi.Router) {
			MountAssets(ar, d.Blobs)
		})
	}

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/signup", SignupHandler(d.Auth))
			ar.With(d.LoginLimiter.Middleware).Post("/login", LoginHandler(d.Auth))
			ar.Post("/logout", LogoutHandler(d.Auth))
			ar.Get("/me", MeHandler(d.Auth))
		})

		// Public catalogue; answer keys only for test:view-full.
		api.Get("/tests", ListTestsHandler(d.Tests))
		api.Get("/tests/{testID}", GetTestHandler(d.Tests))

		api.With(rbac.Require(rbac.PermTestCreate)).
			Post("/tests", CreateTestHandler(d.Tests, d.Events))
		api.With(rbac.Require(rbac.PermTestUpdate)).
			Put("/tests/{testID}", UpdateTestHandler(d.Tests, d.Events))
		api.With(rbac.Require(rbac.PermTestDelete)).
			Delete("/tests/{testID}", DeleteTestHandler(d.Tests, d.Events))
		api.With(rbac.Require(rbac.PermTestViewFull)).
			Get("/admin/tests", AdminListTestsHandler(d.Tests))
		if d.Events != nil {
			api.With(rbac.Require(rbac.PermEventsView)).
				Get("/admin/events", ListEventsHandler(d.Events))
		}

		api.With(rbac.Require(rbac.PermAttemptCreate)).
			Post("/attempts", CreateAttemptHandler(d.Attempts))
		api.With(rbac.Require(rbac.PermAttemptViewOwn)).
			Get("/attempts", ListAttemptsHandler(d.Attempts))
		// ownership is checked by the service
		api.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll)).
			Get("/attempts/{attemptID}", GetAttemptHandler(d.Attempts))

		if d.Blobs != nil {
			api.With(rbac.Require(rbac.PermAssetUpload)).
				Post("/upload", UploadHandler(d.Blobs, d.UploadMaxBytes))
		}
	})

	return r
}
