package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edalik/electronics-store-user-service/internal/config"
	"github.com/edalik/electronics-store-user-service/internal/handler"
	"github.com/edalik/electronics-store-user-service/internal/infrastructure/auth"
	"github.com/edalik/electronics-store-user-service/internal/infrastructure/observability"
)

func SetupRouter(h *handler.Handler, cfg *config.Config) *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)
	r.Handle("/metrics", promhttp.Handler())

	users := r.PathPrefix("/api/v1/users").Subrouter()

	switch cfg.AuthMode {
	case config.AuthModeJWT:
		// Token-identity variant: every route acts on the verified
		// subject; first access creates the profile, registration is
		// owned by the identity provider.
		users.Use(auth.Middleware(cfg.JWTSecret))
		users.HandleFunc("/balance", h.GetBalance).Methods(http.MethodGet)
		users.HandleFunc("/balance/deposit", h.Deposit).Methods(http.MethodPost)
		users.HandleFunc("/balance/payment", h.Payment).Methods(http.MethodPost)
		users.HandleFunc("", h.GetOrCreateUser).Methods(http.MethodGet)
		users.HandleFunc("", h.UpdateUser).Methods(http.MethodPut)
		users.HandleFunc("", h.DeleteUser).Methods(http.MethodDelete)
	default:
		users.HandleFunc("", h.Register).Methods(http.MethodPost)
		users.HandleFunc("/login", h.Login).Methods(http.MethodPost)
		users.HandleFunc("/balance", h.GetBalance).Methods(http.MethodGet)
		users.HandleFunc("/balance/deposit", h.Deposit).Methods(http.MethodPost)
		users.HandleFunc("/balance/payment", h.Payment).Methods(http.MethodPost)
		users.HandleFunc("", h.UpdateUser).Methods(http.MethodPut)
		users.HandleFunc("/{id}", h.GetUser).Methods(http.MethodGet)
		users.HandleFunc("/{id}", h.DeleteUser).Methods(http.MethodDelete)
	}

	return r
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		status := fmt.Sprintf("%d", recorder.status)
		observability.RequestCounter.WithLabelValues(r.Method, endpoint, status).Inc()
		observability.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
