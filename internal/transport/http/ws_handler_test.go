package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
)

func newTestEngine(t *testing.T) *app.Engine {
	t.Helper()
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Test",
			Questions: []domain.Question{
				{Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, CorrectIndex: 1, TimeLimitSeconds: 30},
			},
		},
	}), time.Minute)
	profiles := memory.NewProfileStore(map[string]domain.Profile{
		"u1": {ParticipantID: "u1", DisplayName: "Alice"},
	})
	return app.NewEngine(memory.NewSessionStore(), memory.NewLedger(), quizzes, profiles, app.NewHub())
}

func TestWebSocketSessionAndAnswerFlow(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)
	wsHandler := NewWSHandler(engine)

	if _, err := engine.Start(ctx, "quiz-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := engine.Open(ctx, "quiz-1", 0); err != nil {
		t.Fatalf("open: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=quiz-1&participantId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Snapshots arrive first: one session, one ranking (in either order).
	sessionSeen := false
	rankingSeen := false
	for i := 0; i < 2; i++ {
		typ, _ := readNext(conn, t, "")
		switch typ {
		case "session":
			sessionSeen = true
		case "ranking":
			rankingSeen = true
		}
	}
	if !sessionSeen || !rankingSeen {
		t.Fatalf("expected initial session and ranking snapshots, got session=%v ranking=%v", sessionSeen, rankingSeen)
	}

	answer := map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"questionIndex":  0,
			"selectedIndex":  1,
			"elapsedSeconds": 0.5,
		},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	ackSeen := false
	rankingSeen = false
	for i := 0; i < 4; i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "answerAck":
			ackSeen = true
			if accepted, _ := payload["accepted"].(bool); !accepted {
				t.Fatalf("expected accepted ack, got %+v", payload)
			}
		case "ranking":
			rankingSeen = true
		}
		if ackSeen && rankingSeen {
			break
		}
	}
	if !ackSeen || !rankingSeen {
		t.Fatalf("expected answerAck and ranking update, got ack=%v ranking=%v", ackSeen, rankingSeen)
	}
}

func TestWebSocketRejectsClosedPhase(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)
	wsHandler := NewWSHandler(engine)

	// session started but question not opened: submissions are closed
	if _, err := engine.Start(ctx, "quiz-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=quiz-1&participantId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// drain the two snapshots
	readNext(conn, t, "")
	readNext(conn, t, "")

	answer := map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionIndex": 0, "selectedIndex": 1},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	typ, payload := readNext(conn, t, "answerAck")
	if typ != "answerAck" {
		t.Fatalf("expected answerAck, got %s", typ)
	}
	if accepted, _ := payload["accepted"].(bool); accepted {
		t.Fatalf("expected rejection outside active phase, got %+v", payload)
	}
}

func TestSendOrStopGivesUpOnDeadWriter(t *testing.T) {
	send := make(chan outboundMessage[any], 1)
	send <- outboundMessage[any]{Type: "session"} // buffer full, nobody draining
	writerDone := make(chan struct{})
	close(writerDone)

	result := make(chan bool, 1)
	go func() {
		result <- sendOrStop(send, outboundMessage[any]{Type: "error"}, writerDone)
	}()
	select {
	case delivered := <-result:
		if delivered {
			t.Fatalf("expected send to report failure with a dead writer")
		}
	case <-time.After(time.Second):
		t.Fatalf("send blocked on a full buffer after the writer exited")
	}

	// with the writer alive and buffer space, the message is queued
	live := make(chan outboundMessage[any], 1)
	if !sendOrStop(live, outboundMessage[any]{Type: "answerAck"}, make(chan struct{})) {
		t.Fatalf("expected delivery to a live writer")
	}
	if msg := <-live; msg.Type != "answerAck" {
		t.Fatalf("unexpected queued message %+v", msg)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
