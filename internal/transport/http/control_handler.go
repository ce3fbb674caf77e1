package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

// ControlHandler exposes the operator surface: one HTTP call per state
// machine transition, each returning the new session snapshot or the specific
// rejection reason.
type ControlHandler struct {
	engine *app.Engine
}

func NewControlHandler(engine *app.Engine) *ControlHandler {
	return &ControlHandler{engine: engine}
}

// Register mounts the operator routes on mux.
func (h *ControlHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /sessions/{quizID}/start", h.start)
	mux.HandleFunc("POST /sessions/{quizID}/push", h.push)
	mux.HandleFunc("POST /sessions/{quizID}/open", h.open)
	mux.HandleFunc("POST /sessions/{quizID}/reveal", h.reveal)
	mux.HandleFunc("POST /sessions/{quizID}/finish", h.finish)
	mux.HandleFunc("GET /sessions/{quizID}", h.state)
	mux.HandleFunc("GET /sessions/{quizID}/leaderboard", h.leaderboard)
}

type indexRequest struct {
	Index int `json:"index"`
}

func (h *ControlHandler) start(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.Start(r.Context(), r.PathValue("quizID"))
	h.respond(w, state, err)
}

func (h *ControlHandler) push(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	state, err := h.engine.Push(r.Context(), r.PathValue("quizID"), index)
	h.respond(w, state, err)
}

func (h *ControlHandler) open(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	state, err := h.engine.Open(r.Context(), r.PathValue("quizID"), index)
	h.respond(w, state, err)
}

func (h *ControlHandler) reveal(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	state, err := h.engine.Reveal(r.Context(), r.PathValue("quizID"), index)
	h.respond(w, state, err)
}

func (h *ControlHandler) finish(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.Finish(r.Context(), r.PathValue("quizID"))
	h.respond(w, state, err)
}

func (h *ControlHandler) state(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.State(r.Context(), r.PathValue("quizID"))
	h.respond(w, state, err)
}

func (h *ControlHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.engine.FinalLeaderboard(r.Context(), r.PathValue("quizID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ControlHandler) index(w http.ResponseWriter, r *http.Request) (int, bool) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return 0, false
	}
	return req.Index, true
}

func (h *ControlHandler) respond(w http.ResponseWriter, state domain.SessionState, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *ControlHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrQuizNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrOutOfRange):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStaleIndex), errors.Is(err, domain.ErrInvalidPhase), errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Printf("control request failed: %v", err)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
