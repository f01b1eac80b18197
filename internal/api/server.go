// Package api exposes the reservation engine over HTTP. Authentication is
// terminated upstream; the gateway injects the acting user via the
// X-Actor-Role and X-Actor-ID headers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"glowbook/internal/booking"
	"glowbook/internal/database"
	"glowbook/internal/notify"
	"glowbook/internal/slots"
	"glowbook/internal/webhook"
)

// Server wires the HTTP surface to the domain services.
type Server struct {
	db       *database.DB
	booking  *booking.Service
	slots    *slots.Generator
	registry *notify.Registry
	adapter  *webhook.Adapter
	logger   *zerolog.Logger

	cache    *redis.Client
	cacheTTL time.Duration
}

// NewServer creates the API server. cache may be nil to disable caching.
func NewServer(
	db *database.DB,
	bookingSvc *booking.Service,
	slotGen *slots.Generator,
	registry *notify.Registry,
	adapter *webhook.Adapter,
	cache *redis.Client,
	cacheTTL time.Duration,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		db:       db,
		booking:  bookingSvc,
		slots:    slotGen,
		registry: registry,
		adapter:  adapter,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/venues/{id}", s.handleGetVenue)
		r.Get("/practitioners/{id}", s.handleGetPractitioner)
		r.Get("/services/{id}", s.handleGetService)

		r.Get("/practitioners/{id}/slots", s.handleSlots)
		r.Get("/practitioners/{id}/reservations", s.handlePractitionerReservations)

		r.Route("/practitioners/{id}/schedule", func(r chi.Router) {
			r.Get("/", s.handleListSchedule)
			r.Post("/", s.handleCreateSchedule)
			r.Put("/{entryID}", s.handleUpdateSchedule)
			r.Delete("/{entryID}", s.handleDeleteSchedule)
		})

		r.Route("/practitioners/{id}/day-offs", func(r chi.Router) {
			r.Get("/", s.handleListDayOffs)
			r.Post("/", s.handleCreateDayOff)
			r.Delete("/{dayOffID}", s.handleDeleteDayOff)
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", s.handleCreateReservation)
			r.Get("/", s.handleListReservations)
			r.Get("/{id}", s.handleGetReservation)
			r.Get("/{id}/history", s.handleReservationHistory)
			r.Post("/{id}/status", s.handleChangeStatus)
		})

		r.Get("/events", s.handleEvents)

		r.Post("/webhooks/payment", s.handlePaymentWebhook)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unhealthy", "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// actorFrom reads the gateway-injected identity headers. Role defaults to
// client when absent so public read endpoints keep working.
func actorFrom(r *http.Request) booking.Actor {
	role := booking.Role(r.Header.Get("X-Actor-Role"))
	switch role {
	case booking.RoleClient, booking.RoleOperator, booking.RoleAdmin:
	default:
		role = booking.RoleClient
	}
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return booking.Actor{Role: role, ID: id}
}

func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func strconv64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func adapterActor() booking.Actor {
	return booking.Actor{Role: booking.RoleAdapter}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var resp errorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy onto HTTP statuses, one status
// per failure mode so callers can distinguish them.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var domainErr *booking.Error
	if errors.As(err, &domainErr) {
		status := http.StatusInternalServerError
		switch domainErr.Code {
		case booking.CodeNotFound:
			status = http.StatusNotFound
		case booking.CodeValidation:
			status = http.StatusBadRequest
		case booking.CodeIneligible, booking.CodePastTime:
			status = http.StatusUnprocessableEntity
		case booking.CodeSlotConflict, booking.CodeInvalidTransition:
			status = http.StatusConflict
		case booking.CodeForbidden:
			status = http.StatusForbidden
		}
		writeError(w, status, string(domainErr.Code), domainErr.Message)
		return
	}
	if errors.Is(err, database.ErrDuplicate) {
		writeError(w, http.StatusConflict, "duplicate", "an entry for this key already exists")
		return
	}
	s.logger.Error().Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal", "internal error")
}
