package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

type WSHandler struct {
	engine   *app.Engine
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.Engine) *WSHandler {
	return &WSHandler{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionIndex  int     `json:"questionIndex"`
	SelectedIndex  int     `json:"selectedIndex"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

type answerAck struct {
	Accepted        bool    `json:"accepted"`
	AlreadyAnswered bool    `json:"alreadyAnswered,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	ElapsedSeconds  float64 `json:"elapsedSeconds,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and streams session state and ranking updates
// to one participant while accepting answer submissions.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	participantID := r.URL.Query().Get("participantId")
	if sessionID == "" || participantID == "" {
		http.Error(w, "missing sessionId or participantId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	states, cancelStates, err := h.engine.SubscribeState(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: clientMessage(err)}})
		return
	}
	defer cancelStates()

	rankings, cancelRankings, err := h.engine.SubscribeRanking(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: clientMessage(err)}})
		return
	}
	defer cancelRankings()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case state, ok := <-states:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "session", Payload: state}:
				case <-closeSignals:
					return
				}
			case ranking, ok := <-rankings:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "ranking", Payload: ranking}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

readLoop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				if !sendOrStop(send, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}, writerDone) {
					break readLoop
				}
				continue
			}
			result, err := h.engine.Submit(r.Context(), sessionID, participantID,
				payload.QuestionIndex, payload.SelectedIndex, payload.ElapsedSeconds)
			if err != nil {
				if !sendOrStop(send, outboundMessage[any]{Type: "answerAck", Payload: answerAck{
					Accepted: false,
					Reason:   clientMessage(err),
				}}, writerDone) {
					break readLoop
				}
				continue
			}
			if !sendOrStop(send, outboundMessage[any]{Type: "answerAck", Payload: answerAck{
				Accepted:        true,
				AlreadyAnswered: result.AlreadyAnswered,
				ElapsedSeconds:  result.ElapsedSeconds,
			}}, writerDone) {
				break readLoop
			}
		default:
			if !sendOrStop(send, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}, writerDone) {
				break readLoop
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// sendOrStop queues msg for the writer, giving up once the writer has
// exited so a dead connection with a full buffer cannot park the read loop.
func sendOrStop(send chan<- outboundMessage[any], msg outboundMessage[any], writerDone <-chan struct{}) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

// clientMessage maps domain errors to participant-facing text; infrastructure
// details never leak to the socket.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrPhaseClosed):
		return "submissions are closed for this question"
	case errors.Is(err, domain.ErrDuplicateSubmission):
		return "already answered"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, domain.ErrQuizNotFound):
		return "quiz not found"
	default:
		return "temporarily unavailable, try again"
	}
}
