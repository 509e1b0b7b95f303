// Package httpapi exposes the admin routes and the websocket chat session.
// It carries no ledger logic: chat frames go to the command dispatcher and
// admin routes read through the engines.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/keyledger/internal/app"
	"github.com/R3E-Network/keyledger/internal/app/domain/account"
	"github.com/R3E-Network/keyledger/internal/app/metrics"
	"github.com/R3E-Network/keyledger/internal/app/services/keys"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/internal/middleware"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 50
)

// Options configures NewHandler.
type Options struct {
	// AllowedOrigins gates CORS and websocket upgrades.
	AllowedOrigins []string
	Log            *logger.Logger
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app     *app.Application
	origins *middleware.OriginPolicy
	log     *logger.Logger
}

// NewHandler returns the router serving health, metrics, account inspection
// and the /ws chat endpoint.
func NewHandler(application *app.Application, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{
		app:     application,
		origins: middleware.NewOriginPolicy(opts.AllowedOrigins),
		log:     log,
	}

	r := mux.NewRouter()
	r.Use(middleware.Logging(log), middleware.Metrics(), h.origins.CORS)

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.chat).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/keys/{key}/account", h.account).Methods(http.MethodGet)
	v1.HandleFunc("/keys/{key}/history", h.history).Methods(http.MethodGet)
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type accountView struct {
	Key        string          `json:"key"`
	Identities []string        `json:"identities"`
	Account    account.Account `json:"account"`
}

func (h *handler) account(w http.ResponseWriter, r *http.Request) {
	key, ok := h.registeredKey(w, r)
	if !ok {
		return
	}
	ids, err := h.app.Keys.Identities(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	acct, err := h.app.Accounts.Load(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountView{Key: key, Identities: ids, Account: acct})
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	key, ok := h.registeredKey(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, svcerrors.InvalidInput("limit", "must be a positive integer"))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.app.Ledger.History(r.Context(), key, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []account.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"key": key, "entries": entries})
}

func (h *handler) registeredKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := mux.Vars(r)["key"]
	if !keys.ValidKey(key) {
		writeError(w, svcerrors.InvalidKey(key))
		return "", false
	}
	ok, err := h.app.Keys.Registered(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return "", false
	}
	if !ok {
		writeError(w, svcerrors.InvalidKey(key))
		return "", false
	}
	return key, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	middleware.WriteError(w, err)
}
