package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/quantrank/internal/api/handlers"
	"github.com/wonny/quantrank/pkg/logger"
)

// NewRouter creates and configures the HTTP router. The admin subrouter is
// mounted under its own prefix so a gateway can guard it separately.
func NewRouter(public *handlers.PublicHandler, admin *handlers.AdminHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Public endpoints
	pub := r.PathPrefix("/api/public").Subrouter()
	pub.HandleFunc("/rankings/{market}", public.GetRankings).Methods("GET")
	pub.HandleFunc("/stocks/{market}/{symbol}", public.GetStock).Methods("GET")
	pub.HandleFunc("/stocks/{market}/{symbol}/prices", public.GetPrices).Methods("GET")
	pub.HandleFunc("/stocks/{market}/{symbol}/kpi", public.GetKPI).Methods("GET")

	// Admin endpoints
	adm := r.PathPrefix("/api/admin").Subrouter()
	adm.HandleFunc("/factors", admin.ListFactors).Methods("GET")
	adm.HandleFunc("/factors", admin.CreateFactor).Methods("POST")
	adm.HandleFunc("/factors/{id}", admin.UpdateFactor).Methods("PUT")
	adm.HandleFunc("/factors/{id}", admin.DeleteFactor).Methods("DELETE")
	adm.HandleFunc("/presets", admin.ListPresets).Methods("GET")
	adm.HandleFunc("/presets/{key}/apply", admin.ApplyPreset).Methods("POST")
	adm.HandleFunc("/jobs/recompute", admin.TriggerRecompute).Methods("POST")
	adm.HandleFunc("/jobs/logs", admin.GetJobLogs).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "quantrank-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
