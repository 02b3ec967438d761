// Package server exposes the finance service as a JSON HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/cors"

	"github.com/finflow/backend/internal/allocation"
	"github.com/finflow/backend/internal/forecast"
	"github.com/finflow/backend/internal/insight"
	"github.com/finflow/backend/internal/log"
	"github.com/finflow/backend/internal/model"
	"github.com/finflow/backend/internal/service"
	"github.com/finflow/backend/internal/store"
)

// Server routes HTTP requests to the finance service.
type Server struct {
	svc                  *service.FinanceService
	logger               *log.Logger
	defaultHorizonMonths int
}

// New creates a server over the given service.
func New(svc *service.FinanceService, logger *log.Logger, defaultHorizonMonths int) *Server {
	if defaultHorizonMonths < forecast.MinHorizonMonths || defaultHorizonMonths > forecast.MaxHorizonMonths {
		defaultHorizonMonths = 6
	}
	return &Server{
		svc:                  svc,
		logger:               logger.WithComponent("http"),
		defaultHorizonMonths: defaultHorizonMonths,
	}
}

// Handler returns the full handler chain: routes wrapped with CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/users/{user}/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /v1/users/{user}/transactions", s.handleListTransactions)
	mux.HandleFunc("PUT /v1/users/{user}/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /v1/users/{user}/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("POST /v1/users/{user}/goals", s.handleCreateGoal)
	mux.HandleFunc("GET /v1/users/{user}/goals", s.handleListGoals)
	mux.HandleFunc("PUT /v1/users/{user}/goals/{id}", s.handleUpdateGoal)
	mux.HandleFunc("DELETE /v1/users/{user}/goals/{id}", s.handleDeleteGoal)
	mux.HandleFunc("POST /v1/users/{user}/goals:recompute", s.handleRecomputeGoals)

	mux.HandleFunc("GET /v1/users/{user}/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /v1/users/{user}/forecast", s.handleForecast)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	})
	return c.Handler(mux)
}

// Transactions

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx model.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		s.writeError(w, r, &badRequestError{"invalid request body"})
		return
	}

	created, err := s.svc.CreateTransaction(r.Context(), r.PathValue("user"), &tx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.svc.ListTransactions(r.Context(), r.PathValue("user"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, transactions)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx model.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		s.writeError(w, r, &badRequestError{"invalid request body"})
		return
	}

	updated, err := s.svc.UpdateTransaction(r.Context(), r.PathValue("user"), r.PathValue("id"), &tx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTransaction(r.Context(), r.PathValue("user"), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "transaction deleted"})
}

// Goals

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var goal model.Goal
	if err := json.NewDecoder(r.Body).Decode(&goal); err != nil {
		s.writeError(w, r, &badRequestError{"invalid request body"})
		return
	}

	created, err := s.svc.CreateGoal(r.Context(), r.PathValue("user"), &goal)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.svc.ListGoals(r.Context(), r.PathValue("user"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"goals": goals})
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var goal model.Goal
	if err := json.NewDecoder(r.Body).Decode(&goal); err != nil {
		s.writeError(w, r, &badRequestError{"invalid request body"})
		return
	}

	updated, err := s.svc.UpdateGoal(r.Context(), r.PathValue("user"), r.PathValue("id"), &goal)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteGoal(r.Context(), r.PathValue("user"), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "goal deleted"})
}

func (s *Server) handleRecomputeGoals(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RecomputeGoals(r.Context(), r.PathValue("user")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "goals recomputed"})
}

// Dashboard and forecast

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Dashboard(r.Context(), r.PathValue("user"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	months := s.defaultHorizonMonths
	if v := r.URL.Query().Get("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, &badRequestError{"months must be an integer"})
			return
		}
		months = n
	}

	report, err := s.svc.Forecast(r.Context(), r.PathValue("user"), months)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// The locale only affects the rendered text, never the numbers.
	renderer := insight.NewRenderer(r.URL.Query().Get("locale"))
	response := forecastResponse{
		ForecastReport: report,
		Headline:       renderer.Headline(report.Insights),
	}
	for _, rec := range report.Insights.Recommendations {
		response.Suggestions = append(response.Suggestions, renderer.Describe(rec))
	}
	s.writeJSON(w, http.StatusOK, response)
}

type forecastResponse struct {
	*service.ForecastReport
	Headline    string   `json:"headline"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Response helpers

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var validationErr *service.ValidationError
	var badReq *badRequestError
	switch {
	case errors.Is(err, store.ErrNotFound), forecast.IsNoHistory(err):
		status = http.StatusNotFound
	case errors.As(err, &validationErr), errors.As(err, &badReq),
		allocation.IsInvalidAmount(err), errors.Is(err, forecast.ErrInvalidHorizon):
		status = http.StatusBadRequest
	case allocation.IsInconsistentState(err):
		// Invariant violation: log loudly, report as internal.
		s.logger.Error("goal state invariant violated", "path", r.URL.Path, "error", err)
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
