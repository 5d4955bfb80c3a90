package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/statbridge/statbridge/internal/fetcher"
	"github.com/statbridge/statbridge/internal/plugin"
	"go.uber.org/zap"
)

type handlers struct {
	logger *zap.Logger
	bridge Bridge
}

// getDataRequest carries the get_data keyword arguments. steam_id is what the
// front-end sends; identifier is accepted as a neutral alias.
type getDataRequest struct {
	SteamID    string `json:"steam_id"`
	Identifier string `json:"identifier"`
}

func (r getDataRequest) id() string {
	if r.SteamID != "" {
		return r.SteamID
	}
	return r.Identifier
}

func (h *handlers) getDataRPC(w http.ResponseWriter, r *http.Request) {
	var req getDataRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.writeEnvelope(w, r, http.StatusBadRequest, fetcher.Failure("Invalid JSON"))
		return
	}

	identifier := strings.TrimSpace(req.id())
	if identifier == "" {
		h.writeEnvelope(w, r, http.StatusBadRequest, fetcher.Failure("steam_id is required"))
		return
	}

	h.writeEnvelope(w, r, http.StatusOK, h.bridge.GetData(r.Context(), identifier))
}

// getPlayer decodes the id once; the fetcher escapes it again for the remote path.
func (h *handlers) getPlayer(w http.ResponseWriter, r *http.Request) {
	identifier, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		h.writeEnvelope(w, r, http.StatusBadRequest, fetcher.Failure("Invalid player id"))
		return
	}

	h.writeEnvelope(w, r, http.StatusOK, h.bridge.GetData(r.Context(), identifier))
}

func (h *handlers) frontEndLoaded(w http.ResponseWriter, r *http.Request) {
	h.bridge.FrontEndLoaded()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	state := h.bridge.State()
	status := http.StatusOK
	if state != plugin.Ready {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"state": state.String()})
}

func (h *handlers) writeEnvelope(w http.ResponseWriter, r *http.Request, status int, env fetcher.Envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("failed to encode envelope",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		status = http.StatusOK
		body, _ = json.Marshal(fetcher.Failure("Unexpected error: failed to encode response"))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
