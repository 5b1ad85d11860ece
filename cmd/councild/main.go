// Command councild runs a minimal HTTP front end over the deliberation
// proxy: it wires a FileProvider, a Health Tracker, a Provider Pool
// registered with the mock adapter (plus any live adapters whose API keys
// are set), the Orchestration Core, and an AI-backed Synthesis Engine over
// the mock adapter, then serves /v1/deliberate and /healthz.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/modelcouncil/council/ai"
	"github.com/modelcouncil/council/ai/providers/anthropic"
	"github.com/modelcouncil/council/ai/providers/gemini"
	"github.com/modelcouncil/council/ai/providers/mock"
	"github.com/modelcouncil/council/ai/providers/openai"
	"github.com/modelcouncil/council/analytics"
	"github.com/modelcouncil/council/config"
	"github.com/modelcouncil/council/council"
	"github.com/modelcouncil/council/health"
	"github.com/modelcouncil/council/orchestration"
	"github.com/modelcouncil/council/providerpool"
	"github.com/modelcouncil/council/session"
	"github.com/modelcouncil/council/synthesis"
	"github.com/modelcouncil/council/telemetry"
)

func main() {
	configPath := flag.String("config", "council.yaml", "path to council.yaml")
	addr := flag.String("addr", ":8080", "listen address")
	otelEndpoint := flag.String("otel-endpoint", "", "OTLP/HTTP collector endpoint (empty disables telemetry)")
	flag.Parse()

	logger := council.NewProductionLogger(
		council.LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		council.DevelopmentConfig{},
		"councild",
	)

	var tel council.Telemetry = council.NoOpTelemetry{}
	if *otelEndpoint != "" {
		provider, err := telemetry.NewOTelProvider("councild", *otelEndpoint)
		if err != nil {
			logger.Warn("telemetry disabled: failed to start OTel provider", map[string]interface{}{"error": err.Error()})
		} else {
			adapter := telemetry.NewCouncilAdapter(provider)
			tel = adapter
			defer adapter.Shutdown(context.Background())
		}
	}

	cfgProvider := config.NewFileProvider(*configPath)

	tracker := health.NewTracker(health.Config{}, logger, tel)
	pool := providerpool.New(tracker, logger)
	pool.Register("mock", mock.NewClient(&ai.AIConfig{Provider: "mock"}))
	registerLiveProviders(pool, logger)

	synth := synthesis.NewAISynthesizer(mock.NewClient(&ai.AIConfig{Provider: "mock"}), "mock-model", logger)
	orch := orchestration.New(cfgProvider, pool, synth, logger, tel)

	sessions := session.NewStore()
	analyticsEngine := analytics.NewEngine(0)
	defer analyticsEngine.Close()

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			sessions.Sweep(24 * time.Hour)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/deliberate", deliberateHandler(orch, sessions, logger))
	mux.HandleFunc("/healthz", healthzHandler(tracker))

	logger.Info("starting councild", map[string]interface{}{"addr": *addr})
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatal(err)
	}
}

// registerLiveProviders binds real upstream adapters whose credentials are
// present in the environment. A member's providerId in council.yaml must
// match one of these ("openai", "anthropic", "gemini") to route to it;
// providers without credentials configured are left unregistered, and the
// pool refuses their members with AdapterNotConfigured rather than failing
// startup.
func registerLiveProviders(pool *providerpool.Pool, logger council.Logger) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		pool.Register("openai", openai.NewClient(key, os.Getenv("OPENAI_BASE_URL"), "", logger))
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		pool.Register("anthropic", anthropic.NewClient(key, os.Getenv("ANTHROPIC_BASE_URL"), logger))
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		pool.Register("gemini", gemini.NewClient(key, os.Getenv("GEMINI_BASE_URL"), logger))
	}
}

type deliberateRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

func deliberateHandler(orch *orchestration.Orchestrator, sessions *session.Store, logger council.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body deliberateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		sessionID := body.SessionID
		if sessionID == "" {
			sessionID = session.NewSessionID()
		}
		convCtx := sessions.Get(sessionID)

		req := council.UserRequest{
			RequestID: session.NewSessionID(),
			Query:     body.Query,
			SessionID: sessionID,
			Context:   &convCtx,
			Timestamp: time.Now(),
		}

		decision, err := orch.ProcessRequest(r.Context(), req)
		if err != nil {
			logger.Error("process_request failed", map[string]interface{}{"error": err.Error(), "session_id": sessionID})
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		sessions.Append(sessionID, council.ConversationMessage{Role: "user", Content: body.Query, Timestamp: time.Now()}, 0)
		sessions.Append(sessionID, council.ConversationMessage{Role: "assistant", Content: decision.Content, Timestamp: time.Now()}, 0)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(decision)
	}
}

func healthzHandler(tracker *health.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views := make(map[string]council.ProviderHealth)
		for _, id := range tracker.GetTrackedProviders() {
			views[id] = tracker.View(id)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(views)
	}
}
