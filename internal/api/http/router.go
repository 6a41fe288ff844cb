package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	authmw "github.com/quizd/quizd/internal/auth/middleware"
	"github.com/quizd/quizd/internal/logging"
	"github.com/quizd/quizd/internal/rbac"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Accounts is what the router needs from the user store: the handlers'
// operations plus the checks made by the auth middleware.
type Accounts interface {
	UserStore
	authmw.Revocations
	authmw.RoleSource
}

type Deps struct {
	Users     Accounts
	Catalog   CatalogStore
	Tests     TestService
	Analytics AnalyticsStore
	Auth      *authmw.AuthService
	DB        Pinger
	Log       logrus.FieldLogger

	// CatalogAdminOnly additionally requires catalog:write on catalog writes.
	CatalogAdminOnly bool
	CORSOrigins      []string
	RequestTimeout   time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.RequestLogger(d.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.StripSlashes)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.PingContext(r.Context()); err != nil {
			logging.FromRequest(r, d.Log).WithError(err).Warn("readiness check failed")
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	authn := func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth, d.Users, writeError))
		pr.Use(authmw.AttachRoleFromDB(d.Users, writeError))
	}
	catalogWrite := func(pr chi.Router) {
		authn(pr)
		if d.CatalogAdminOnly {
			pr.Use(rbac.Require("catalog:write"))
		}
	}

	r.Route("/users", func(ur chi.Router) {
		ur.Post("/register", RegisterHandler(d.Users))
		ur.Post("/login", LoginHandler(d.Users, d.Auth))
		ur.Group(func(pr chi.Router) {
			authn(pr)
			pr.Post("/logout", LogoutHandler(d.Users))
			pr.Get("/me", MeHandler(d.Users))
			pr.With(rbac.Require("user:change_password")).
				Post("/password", ChangePasswordHandler(d.Users))
			pr.With(rbac.Require("users:list")).
				Get("/", ListUsersHandler(d.Users))
		})
	})

	// Catalog: public reads, authenticated writes.
	r.Route("/topics", func(tr chi.Router) {
		tr.Get("/", ListTopicsHandler(d.Catalog))
		tr.Get("/{topicID}", GetTopicHandler(d.Catalog))
		tr.Group(func(pr chi.Router) {
			catalogWrite(pr)
			pr.Post("/", CreateTopicHandler(d.Catalog))
			pr.Put("/{topicID}", UpdateTopicHandler(d.Catalog))
			pr.Delete("/{topicID}", DeleteTopicHandler(d.Catalog))
		})
	})
	r.Route("/questions", func(qr chi.Router) {
		qr.Get("/", ListQuestionsHandler(d.Catalog))
		qr.Get("/{questionID}", GetQuestionHandler(d.Catalog))
		qr.Group(func(pr chi.Router) {
			catalogWrite(pr)
			pr.Post("/", CreateQuestionHandler(d.Catalog))
			pr.Post("/{questionID}/options", CreateOptionHandler(d.Catalog))
			pr.Put("/{questionID}", UpdateQuestionHandler(d.Catalog))
			pr.Delete("/{questionID}", DeleteQuestionHandler(d.Catalog))
		})
	})

	r.Route("/tests", func(tr chi.Router) {
		authn(tr)
		tr.Use(rbac.Require("test:take"))
		tr.Post("/", StartTestHandler(d.Tests))
		tr.Get("/", ListTestsHandler(d.Tests))
		tr.Get("/{testID}", GetTestHandler(d.Tests))
		tr.Post("/{testID}/responses", SubmitResponseHandler(d.Tests))
		tr.Put("/{testID}/complete", CompleteTestHandler(d.Tests))
	})

	r.Route("/analytics", func(ar chi.Router) {
		authn(ar)
		ar.Use(rbac.Require("analytics:view-own"))
		ar.Get("/performance/user", UserPerformanceHandler(d.Analytics))
		ar.Get("/performance/topics", TopicPerformanceHandler(d.Analytics))
		ar.Get("/questions/difficulty", QuestionDifficultyHandler(d.Analytics))
	})

	return r
}
