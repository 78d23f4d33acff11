package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/example/order-events-service/internal/domain"
	"github.com/example/order-events-service/internal/usecase"
)

type Server struct {
	Router   *mux.Router
	UCCreate usecase.CreateOrder
	UCCancel usecase.CancelOrder
	UCGet    usecase.GetOrders
	Events   domain.EventLog
	Logger   *slog.Logger
}

// NewServer — API заказов. Если events не nil, добавляется история событий.
func NewServer(service string, create usecase.CreateOrder, cancel usecase.CancelOrder, get usecase.GetOrders, events domain.EventLog) *Server {
	s := &Server{UCCreate: create, UCCancel: cancel, UCGet: get, Events: events, Logger: slog.Default()}
	s.Router = s.baseRouter(service)
	s.Router.HandleFunc("/orders", s.handleCreate).Methods(http.MethodPost)
	s.Router.HandleFunc("/orders", s.handleCancel).Methods(http.MethodDelete)
	s.Router.HandleFunc("/orders", s.handleGet).Methods(http.MethodGet)
	if events != nil {
		s.Router.HandleFunc("/api/events/{orderId}", s.handleEvents).Methods(http.MethodGet)
	}
	return s
}

// NewEventsServer — только история событий, для процесса ингестора.
func NewEventsServer(service string, events domain.EventLog) *Server {
	s := &Server{Events: events, Logger: slog.Default()}
	s.Router = s.baseRouter(service)
	s.Router.HandleFunc("/api/events/{orderId}", s.handleEvents).Methods(http.MethodGet)
	return s
}

func (s *Server) baseRouter(service string) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, otelmux.Middleware(service), s.logRequests)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	return r
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	res, err := s.UCCreate.Execute(r.Context(), usecase.CreateOrderCommand{
		Email:        req.Email,
		ProductIDs:   req.ProductIDs,
		Payment:      req.Payment,
		ShippingType: req.Shipping.Type,
		Carrier:      req.Shipping.Carrier,
		RequestID:    middleware.GetReqID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(res.Order))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.UCCancel.Execute(r.Context(), q.Get("email"), q.Get("orderId"), middleware.GetReqID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(res.Order))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email, orderID := q.Get("email"), q.Get("orderId")
	switch {
	case orderID != "" && email == "":
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "email is required with orderId"})
	case orderID != "":
		o, err := s.UCGet.One(r.Context(), email, orderID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderDTO(o))
	case email != "":
		orders, err := s.UCGet.ByCustomer(r.Context(), email)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderDTOs(orders))
	default:
		orders, err := s.UCGet.All(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderDTOs(orders))
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["orderId"]
	recs, err := s.Events.ListByEntity(r.Context(), domain.OrderPartitionKey(id))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// statusFromError — HTTP-код и текст ответа для доменной ошибки.
func statusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrCatalogMismatch):
		return http.StatusNotFound, domain.ErrCatalogMismatch.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrNotFound.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFromError(err)
	if code >= http.StatusInternalServerError {
		s.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	writeJSON(w, code, errorResponse{Message: msg})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
