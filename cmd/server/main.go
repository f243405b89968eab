package main

import (
	"log"
	"net/http"
	"os"

	"cleanroom/internal/api"
	"cleanroom/internal/config"
	"cleanroom/internal/metrics"
	"cleanroom/internal/state"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "llm_keys.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.LLM.APIKey == "" {
		log.Printf("Warning: no LLM API key configured; clustering falls back to heuristics and mapping generation will fail")
	}

	metrics.Register()

	// Initialize Services
	store := state.NewStore()
	handler := api.NewHandler(cfg, store)

	// Router Setup
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// CORS - Allow frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001", "http://127.0.0.1:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Root endpoint
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Data Clean Room Processor is Running"))
	})

	// Register all API Routes
	handler.RegisterRoutes(r)

	log.Printf("Starting Data Clean Room Processor on http://localhost:%s", cfg.Port)
	log.Printf("Upload directory: %s", cfg.UploadDir)

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
