package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/ststudios/whitelist/broker"
	"github.com/ststudios/whitelist/cache"
	"github.com/ststudios/whitelist/discord"
	"github.com/ststudios/whitelist/server/sessions"
	"github.com/ststudios/whitelist/server/sse"
	"github.com/ststudios/whitelist/whitelist"
)

// Service is the HTTP gateway. It authenticates callers, extracts request
// parameters and delegates to the workflow; it never writes the store
// directly.
type Service struct {
	workflow  *whitelist.Workflow
	sessions  sessions.Manager
	oauth     *oauth2.Config
	discord   *discord.Client
	broker    *broker.Service
	cache     *cache.Service
	sseBroker *sse.Broker
	bot       http.Handler
	router    *mux.Router
	routeOnce sync.Once
	logger    *logrus.Entry
}

// Options carries the optional collaborators. Broker, cache and SSE are nil
// in setups without RabbitMQ/redis; the handlers fall back to the workflow.
type Options struct {
	Broker    *broker.Service
	Cache     *cache.Service
	SSEBroker *sse.Broker
	Bot       http.Handler
}

// NewService wires the HTTP gateway
func NewService(workflow *whitelist.Workflow, sessionMgr sessions.Manager, oauthConf *oauth2.Config, discordClient *discord.Client, opts Options, logger *logrus.Entry) *Service {
	return &Service{
		workflow:  workflow,
		sessions:  sessionMgr,
		oauth:     oauthConf,
		discord:   discordClient,
		broker:    opts.Broker,
		cache:     opts.Cache,
		sseBroker: opts.SSEBroker,
		bot:       opts.Bot,
		router:    mux.NewRouter().StrictSlash(true),
		logger:    logger,
	}
}

// Listen registers all routes and serves the API on the given port
func (svc *Service) Listen(port string) error {
	log := svc.logger
	svc.routes()
	log.WithFields(logrus.Fields{
		"port": port,
	}).Info("The API http server starts listening")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowCredentials: true,
	})
	handler := c.Handler(svc.router)

	// Capture http related metrics per request
	wrapped := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(handler, w, r)
		svc.logger.Infof("%s %s (code=%d dt=%s)",
			r.Method,
			r.URL,
			m.Code,
			m.Duration,
		)
	})
	return http.ListenAndServe(port, wrapped)
}

// Router exposes the configured router for tests
func (svc *Service) Router() *mux.Router {
	svc.routes()
	return svc.router
}

func (svc *Service) routes() {
	svc.routeOnce.Do(svc.registerRoutes)
}

func (svc *Service) registerRoutes() {
	r := svc.router

	// OAuth login and session endpoints
	r.HandleFunc("/login", svc.HandleLogin()).Methods("GET")
	r.HandleFunc("/callback", svc.HandleCallback()).Methods("GET")
	r.HandleFunc("/logout", svc.HandleLogout()).Methods("POST")
	r.Handle("/me", svc.requireAuth(svc.HandleMe())).Methods("GET")

	// Applicant form endpoints
	r.Handle("/form", svc.requireAuth(svc.HandleSubmitForm())).Methods("POST")
	r.Handle("/form/data", svc.requireAuth(svc.HandleFormData())).Methods("GET")

	// Admin endpoints
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Handle("/forms", svc.requireAdmin(svc.HandleListForms())).Methods("GET")
	admin.Handle("/action", svc.requireAdmin(svc.HandleAdminAction())).Methods("POST")
	admin.Handle("/stats", svc.requireAdmin(svc.HandleStats())).Methods("GET")
	admin.Handle("/form/{id}", svc.requireAdmin(svc.HandleGetForm())).Methods("GET")
	if svc.sseBroker != nil {
		admin.Handle("/stats/stream", svc.requireAdmin(svc.sseBroker.ServeHTTP)).Methods("GET")
	}

	// Machine-facing endpoints
	r.HandleFunc("/api/roblox/whitelist", svc.HandleRobloxWhitelist()).Methods("GET")
	r.HandleFunc("/api/status", svc.HandleSystemStatus()).Methods("GET")
	r.HandleFunc("/health", svc.HandleHealth()).Methods("GET")

	// Discord interactions webhook
	if svc.bot != nil {
		r.Handle("/api/interactions", svc.bot).Methods("POST")
	}
}

type contextKey string

const sessionContextKey contextKey = "session"

// requireAuth resolves the session cookie and stores the session on the
// request context.
func (svc *Service) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessions.CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Login necessário")
			return
		}
		session, err := svc.sessions.Get(cookie.Value)
		if err != nil {
			svc.logger.WithFields(logrus.Fields{
				"err": err.Error(),
			}).Error("Unable to load session")
			writeError(w, http.StatusInternalServerError, "Erro no servidor")
			return
		}
		if session == nil {
			writeError(w, http.StatusUnauthorized, "Login necessário")
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// requireAdmin is requireAuth plus the admin allowlist check
func (svc *Service) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return svc.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		session := sessionFrom(r)
		if !session.IsAdmin {
			writeError(w, http.StatusForbidden, "Acesso negado. Apenas administradores.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionFrom(r *http.Request) *sessions.Session {
	return r.Context().Value(sessionContextKey).(*sessions.Session)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"error": message})
}

// writeWorkflowError maps the workflow error taxonomy onto HTTP statuses
func (svc *Service) writeWorkflowError(w http.ResponseWriter, err error) {
	var vErr *whitelist.ValidationError
	if errors.As(err, &vErr) {
		writeError(w, http.StatusBadRequest, vErr.Message)
		return
	}
	var cErr *whitelist.ConflictError
	if errors.As(err, &cErr) {
		writeError(w, http.StatusConflict, cErr.Message)
		return
	}
	var nfErr *whitelist.NotFoundError
	if errors.As(err, &nfErr) {
		writeError(w, http.StatusNotFound, nfErr.Error())
		return
	}
	svc.logger.WithFields(logrus.Fields{
		"err": err.Error(),
	}).Error("Workflow call failed")
	writeError(w, http.StatusInternalServerError, "Erro no servidor")
}
