package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cleanroom/internal/config"
	"cleanroom/internal/dataset"
	"cleanroom/internal/datasource"
	"cleanroom/internal/export"
	"cleanroom/internal/grouper"
	"cleanroom/internal/llm"
	"cleanroom/internal/metrics"
	"cleanroom/internal/models"
	"cleanroom/internal/standardizer"
	"cleanroom/internal/state"
)

const (
	maxUploadSize = 100 * 1024 * 1024 // 100MB
	sessionHeader = "X-Session-ID"
)

// Handler wires the pipeline services to HTTP routes.
type Handler struct {
	Store *state.Store

	mu           sync.RWMutex
	llmCfg       config.LLMConfig
	grouper      *grouper.Service
	standardizer *standardizer.Service

	uploadDir string
	currentDB datasource.Source
}

// NewHandler builds the handler and its service graph from the config.
func NewHandler(cfg config.Config, store *state.Store) *Handler {
	h := &Handler{
		Store:     store,
		uploadDir: cfg.UploadDir,
	}
	h.applyLLMConfig(cfg.LLM)
	return h
}

func (h *Handler) applyLLMConfig(llmCfg config.LLMConfig) {
	client := llm.New(llmCfg)
	h.mu.Lock()
	h.llmCfg = llmCfg
	h.grouper = grouper.NewService(client)
	h.standardizer = standardizer.NewService(client, llmCfg.MaxParallel)
	h.mu.Unlock()
}

func (h *Handler) services() (*grouper.Service, *standardizer.Service) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.grouper, h.standardizer
}

// RegisterRoutes installs all endpoints on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/api/upload", h.Upload)
	r.Get("/api/datasets", h.ListDatasets)

	r.Post("/api/analyze", h.Analyze)
	r.Get("/api/groups", h.GetGroups)
	r.Put("/api/groups/{groupID}", h.UpdateGroup)
	r.Post("/api/groups/custom", h.AddCustomGroup)
	r.Post("/api/groups/reset", h.ResetGroups)

	r.Post("/api/mappings/generate", h.GenerateMappings)
	r.Get("/api/mappings", h.GetMappings)
	r.Post("/api/mappings/{columnID}/feedback", h.SubmitFeedback)
	r.Post("/api/mappings/refine", h.RefineMappings)
	r.Post("/api/mappings/accept", h.AcceptMappings)

	r.Get("/api/export/mappings", h.ExportMappings)
	r.Get("/api/export/cleaned", h.ExportCleaned)

	r.Get("/api/status", h.GetStatus)
	r.Post("/api/session/reset", h.ResetSession)

	r.Post("/api/db/connect", h.ConnectDB)
	r.Get("/api/db/tables", h.ListTables)
	r.Post("/api/db/load", h.LoadTable)

	r.Get("/api/config/llm", h.GetLLMConfig)
	r.Post("/api/config/llm", h.SaveLLMConfig)
}

func (h *Handler) session(r *http.Request) *state.Session {
	return h.Store.GetOrDefault(r.Header.Get(sessionHeader))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// ============================================================================
// Health
// ============================================================================

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// ============================================================================
// Upload & datasets
// ============================================================================

// Upload receives one or more CSV/Excel files. Errors are per-file: a
// broken upload is reported without aborting the others. Excel sheet
// selection is passed as "sheets_<filename>", comma-separated.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "parsing upload: %v", err)
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}

	session := h.session(r)
	var loaded []models.DatasetSummary
	fileErrors := map[string]string{}

	for _, header := range r.MultipartForm.File["files"] {
		file, err := header.Open()
		if err != nil {
			fileErrors[header.Filename] = err.Error()
			metrics.UploadsTotal.WithLabelValues("error").Inc()
			continue
		}
		content, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			fileErrors[header.Filename] = err.Error()
			metrics.UploadsTotal.WithLabelValues("error").Inc()
			continue
		}

		var sheets []string
		if v := r.FormValue("sheets_" + header.Filename); v != "" {
			for _, s := range strings.Split(v, ",") {
				if s = strings.TrimSpace(s); s != "" {
					sheets = append(sheets, s)
				}
			}
		}

		datasets, err := dataset.Load(header.Filename, content, sheets)
		if err != nil {
			fileErrors[header.Filename] = err.Error()
			metrics.UploadsTotal.WithLabelValues("error").Inc()
			log.Printf("[Upload] %s failed: %v", header.Filename, err)
			continue
		}

		h.persistUpload(header.Filename, content)
		for _, ds := range datasets {
			session.AddDataset(ds)
			loaded = append(loaded, ds.Summary())
		}
		metrics.UploadsTotal.WithLabelValues("ok").Inc()
		log.Printf("[Upload] %s: %d dataset(s) loaded", header.Filename, len(datasets))
	}

	status := http.StatusOK
	if len(loaded) == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]interface{}{
		"session_id": session.ID,
		"loaded":     loaded,
		"errors":     fileErrors,
	})
}

// persistUpload keeps a copy of the raw upload on disk. Failure is
// logged, not fatal: the in-memory dataset is already loaded.
func (h *Handler) persistUpload(filename string, content []byte) {
	if h.uploadDir == "" {
		return
	}
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		log.Printf("[Upload] could not create %s: %v", h.uploadDir, err)
		return
	}
	path := filepath.Join(h.uploadDir, filepath.Base(filename))
	if err := os.WriteFile(path, content, 0644); err != nil {
		log.Printf("[Upload] could not persist %s: %v", path, err)
	}
}

func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	summaries := []models.DatasetSummary{}
	for _, ds := range session.Datasets() {
		summaries = append(summaries, ds.Summary())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"datasets": summaries})
}

// ============================================================================
// Grouping
// ============================================================================

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	datasets := session.Datasets()
	if len(datasets) == 0 {
		writeError(w, http.StatusBadRequest, "no datasets loaded; upload files first")
		return
	}

	grp, _ := h.services()
	groups, err := grp.Group(r.Context(), datasets)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "analyzing columns: %v", err)
		return
	}
	session.SetGroups(groups)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"groups":    groups,
		"summaries": grouper.BuildSummaries(groups, datasets),
	})
}

func (h *Handler) GetGroups(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if !session.Analyzed() {
		writeError(w, http.StatusBadRequest, "analysis has not run yet")
		return
	}
	groups := session.Groups()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"groups":    groups,
		"summaries": grouper.BuildSummaries(groups, session.Datasets()),
	})
}

func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Columns      []string `json:"columns"`
		Instructions string   `json:"instructions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	session := h.session(r)
	groupID := chi.URLParam(r, "groupID")
	if err := session.UpdateGroup(groupID, req.Columns, req.Instructions); err != nil {
		writeError(w, http.StatusNotFound, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) AddCustomGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Columns []string `json:"columns"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	session := h.session(r)
	group := session.AddCustomGroup(req.Columns)
	writeJSON(w, http.StatusOK, map[string]interface{}{"group": group})
}

func (h *Handler) ResetGroups(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	session.ResetGroups()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// ============================================================================
// Mappings
// ============================================================================

func (h *Handler) GenerateMappings(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if !session.Analyzed() {
		writeError(w, http.StatusBadRequest, "run analysis before generating mappings")
		return
	}
	_, std := h.services()
	mappings := std.GenerateAll(r.Context(), session.Groups(), session.Datasets())
	if len(mappings) == 0 {
		writeError(w, http.StatusBadRequest, "no string columns with values to map")
		return
	}
	session.SetMappings(mappings)
	writeJSON(w, http.StatusOK, h.mappingsPayload(session))
}

func (h *Handler) GetMappings(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if !session.MappingsGenerated() {
		writeError(w, http.StatusBadRequest, "mappings have not been generated yet")
		return
	}
	writeJSON(w, http.StatusOK, h.mappingsPayload(session))
}

func (h *Handler) mappingsPayload(session *state.Session) map[string]interface{} {
	mappings := session.Mappings()
	stats := make(map[string]models.StandardizationStats, len(mappings))
	for id, m := range mappings {
		if len(m.Entries) > 0 {
			stats[id] = m.Stats()
		}
	}
	return map[string]interface{}{
		"mappings":  mappings,
		"stats":     stats,
		"iteration": session.Iteration(),
		"finished":  session.Finished(),
	}
}

func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Feedback []models.Feedback `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	session := h.session(r)
	columnID := chi.URLParam(r, "columnID")
	mapping, ok := session.Mapping(columnID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown column %q", columnID)
		return
	}
	if err := mapping.SubmitFeedback(req.Feedback); err != nil {
		writeError(w, http.StatusConflict, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(mapping.Status)})
}

func (h *Handler) RefineMappings(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if !session.MappingsGenerated() {
		writeError(w, http.StatusBadRequest, "mappings have not been generated yet")
		return
	}
	pending := 0
	for _, m := range session.Mappings() {
		if m.Status == models.StatusUnderReview {
			pending++
		}
	}
	if pending == 0 {
		writeError(w, http.StatusBadRequest, "no feedback submitted; nothing to refine")
		return
	}

	_, std := h.services()
	std.Refine(r.Context(), session.Mappings())
	iteration := session.BumpIteration()
	log.Printf("[API] refinement iteration %d processed %d column(s)", iteration, pending)
	writeJSON(w, http.StatusOK, h.mappingsPayload(session))
}

func (h *Handler) AcceptMappings(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if !session.MappingsGenerated() {
		writeError(w, http.StatusBadRequest, "mappings have not been generated yet")
		return
	}
	_, std := h.services()
	if err := std.AcceptAll(session.Mappings()); err != nil {
		writeError(w, http.StatusConflict, "%v", err)
		return
	}
	session.MarkFinished()
	writeJSON(w, http.StatusOK, h.mappingsPayload(session))
}

// ============================================================================
// Export
// ============================================================================

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) ExportMappings(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if !session.Finished() {
		writeError(w, http.StatusBadRequest, "accept the mappings before exporting")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="final_mappings_only.xlsx"`)
	if err := export.WriteMappingsWorkbook(w, session.Mappings()); err != nil {
		log.Printf("[Export] mappings workbook failed: %v", err)
	}
}

func (h *Handler) ExportCleaned(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if !session.Finished() {
		writeError(w, http.StatusBadRequest, "accept the mappings before exporting")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="cleaned_data_with_mappings.xlsx"`)
	if err := export.WriteCleanedWorkbook(w, session.Datasets(), session.Mappings()); err != nil {
		log.Printf("[Export] cleaned workbook failed: %v", err)
	}
}

// ============================================================================
// Status & session
// ============================================================================

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":         session.ID,
		"datasets_loaded":    len(session.Datasets()),
		"analysis_complete":  session.Analyzed(),
		"mappings_generated": session.MappingsGenerated(),
		"iteration":          session.Iteration(),
		"cleaning_finished":  session.Finished(),
	})
}

func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	session := h.Store.Reset(r.Header.Get(sessionHeader))
	writeJSON(w, http.StatusOK, map[string]string{"session_id": session.ID, "status": "reset"})
}

// ============================================================================
// DB source
// ============================================================================

func (h *Handler) ConnectDB(w http.ResponseWriter, r *http.Request) {
	var cfg datasource.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if cfg.Type != "postgres" {
		writeError(w, http.StatusBadRequest, "only postgres is supported currently")
		return
	}

	ds := &datasource.PostgresSource{}
	if err := ds.Connect(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to connect: %v", err)
		return
	}

	h.mu.Lock()
	if h.currentDB != nil {
		h.currentDB.Close()
	}
	h.currentDB = ds
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

func (h *Handler) db() datasource.Source {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currentDB
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	db := h.db()
	if db == nil {
		writeError(w, http.StatusBadRequest, "no database connection")
		return
	}
	tables, err := db.ListTables()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing tables: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tables": tables})
}

func (h *Handler) LoadTable(w http.ResponseWriter, r *http.Request) {
	db := h.db()
	if db == nil {
		writeError(w, http.StatusBadRequest, "no database connection")
		return
	}
	var req struct {
		TableName string `json:"table_name"`
		Limit     int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	ds, err := db.LoadTable(req.TableName, req.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading table: %v", err)
		return
	}
	session := h.session(r)
	session.AddDataset(ds)
	writeJSON(w, http.StatusOK, map[string]interface{}{"dataset": ds.Summary()})
}

// ============================================================================
// LLM config
// ============================================================================

func (h *Handler) GetLLMConfig(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	cfg := h.llmCfg
	h.mu.RUnlock()
	// Never echo the credential back.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model":        cfg.Model,
		"base_url":     cfg.BaseURL,
		"temperature":  cfg.Temperature,
		"max_parallel": cfg.MaxParallel,
		"has_api_key":  cfg.APIKey != "",
	})
}

func (h *Handler) SaveLLMConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey      string   `json:"api_key"`
		Model       string   `json:"model"`
		BaseURL     string   `json:"base_url"`
		Temperature *float64 `json:"temperature"`
		MaxParallel int      `json:"max_parallel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	h.mu.RLock()
	cfg := h.llmCfg
	h.mu.RUnlock()
	if req.APIKey != "" {
		cfg.APIKey = req.APIKey
	}
	if req.Model != "" {
		cfg.Model = req.Model
	}
	if req.BaseURL != "" {
		cfg.BaseURL = req.BaseURL
	}
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}
	if req.MaxParallel > 0 {
		cfg.MaxParallel = req.MaxParallel
	}

	h.applyLLMConfig(cfg)
	log.Printf("[Config] LLM settings updated (model=%s)", cfg.Model)
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}
