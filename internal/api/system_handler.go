package api

import (
	"net/http"

	"localchat/backend/internal/llm"
)

// SystemHandler serves health checks and the upstream proxy endpoints.
type SystemHandler struct {
	llm llm.Provider
}

func NewSystemHandler(provider llm.Provider) *SystemHandler {
	return &SystemHandler{llm: provider}
}

// Health godoc
// @Summary      Backend health check
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "sqlite"})
}

// LlamaHealth godoc
// @Summary      Inference server health check
// @Description  Probes the upstream inference server. Unreachable is reported
// @Description  in the body rather than as an error status so the UI can show
// @Description  a "model server down" state.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/llama/health [get]
func (h *SystemHandler) LlamaHealth(w http.ResponseWriter, r *http.Request) {
	body, err := h.llm.Health(r.Context())
	if err != nil {
		respondWithJSON(w, http.StatusOK, map[string]string{
			"status":  "error",
			"message": "Cannot connect to llama.cpp server",
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// LlamaModels godoc
// @Summary      List upstream models
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  ErrorResponse
// @Router       /api/llama/models [get]
func (h *SystemHandler) LlamaModels(w http.ResponseWriter, r *http.Request) {
	body, err := h.llm.ListModels(r.Context())
	if err != nil {
		respondWithJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Cannot connect to llama.cpp server"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
