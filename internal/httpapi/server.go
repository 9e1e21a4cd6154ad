package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deskhogd/internal/actions"
	"deskhogd/internal/eventbus"
	"deskhogd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Submit(k actions.Kind, params ...string) (actions.Action, error)
	Status() types.StatusResponse
	UpdateStatus() types.UpdateStatusResponse
	Insights(ctx context.Context) ([]types.Insight, error)
	DeviceConfig(ctx context.Context) (types.DeviceConfig, error)
	Networks() types.NetworksResponse
	Subscribe(fn func(eventbus.Event)) func()
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(RequestLogger)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.Post("/save-wifi", submitHandler(svc, actions.KindSaveWiFi, saveWiFiParams))
	r.Post("/save-device-config", submitHandler(svc, actions.KindSaveDeviceConfig, deviceConfigParams))
	r.Post("/save-insight", submitHandler(svc, actions.KindSaveInsight, saveInsightParams))
	r.Post("/delete-insight", submitHandler(svc, actions.KindDeleteInsight, deleteInsightParams))
	r.Post("/scan-networks", submitHandler(svc, actions.KindScanNetworks, noParams))
	r.Post("/check-update", submitHandler(svc, actions.KindCheckUpdate, noParams))
	r.Post("/start-update", submitHandler(svc, actions.KindStartUpdate, startUpdateParams))

	r.Get("/get-insights", func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Insights(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.InsightsResponse{Insights: list})
	})

	r.Get("/get-device-config", func(w http.ResponseWriter, r *http.Request) {
		cfg, err := svc.DeviceConfig(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	})

	r.Get("/networks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Networks())
	})

	r.Get("/update-status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.UpdateStatus())
	})

	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/events", eventsHandler(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("starting"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logError("encode response", err)
	}
}
