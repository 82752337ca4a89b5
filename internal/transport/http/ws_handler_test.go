package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"live-trivia-service/internal/app"
	"live-trivia-service/internal/domain"
	"live-trivia-service/internal/infra/memory"
	"live-trivia-service/internal/judge"

	"github.com/gorilla/websocket"
)

func TestWebSocketAnswerFlow(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	defer service.Close()

	round, err := service.CreateRound(ctx, "Round 1", "test", time.Now())
	if err != nil {
		t.Fatalf("create round: %v", err)
	}
	if err := service.SetGuestList(ctx, round.ID, []string{"alice@example.com"}); err != nil {
		t.Fatalf("guest list: %v", err)
	}
	question, err := service.AddQuestion(ctx, domain.Question{
		RoundID: round.ID, Prompt: "Capital of France?", Answer: "paris", TimeSeconds: 60,
	})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	if err := service.ActivateQuestion(ctx, question.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	wsHandler := NewWSHandler(service)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?roomCode=" + round.RoomCode + "&userId=u1&email=alice@example.com"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The joined frame and the initial leaderboard race; take frames until
	// joined shows up.
	joined := false
	for i := 0; i < 3 && !joined; i++ {
		typ, _ := readNext(conn, t, "")
		joined = typ == "joined"
	}
	if !joined {
		t.Fatal("never received joined frame")
	}

	answer := map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"questionId":  question.ID,
			"answer":      "paris",
			"timeTakenMs": 5000,
		},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	// Expect the submission ack and a judged leaderboard frame.
	submittedSeen := false
	scoredBoardSeen := false
	for i := 0; i < 6 && !(submittedSeen && scoredBoardSeen); i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "submitted":
			submittedSeen = true
			if payload["submissionId"] == "" {
				t.Fatalf("expected submissionId in ack, got %v", payload)
			}
		case "leaderboard":
			entries, _ := payload["entries"].([]any)
			if len(entries) == 1 {
				entry := entries[0].(map[string]any)
				if entry["totalScore"].(float64) == 500 {
					scoredBoardSeen = true
				}
			}
		}
	}
	if !submittedSeen || !scoredBoardSeen {
		t.Fatalf("expected submitted ack and scored leaderboard, got submitted=%v scored=%v", submittedSeen, scoredBoardSeen)
	}
}

func TestWebSocketRejectsUninvitedEmail(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	defer service.Close()

	round, err := service.CreateRound(ctx, "Round 1", "test", time.Now())
	if err != nil {
		t.Fatalf("create round: %v", err)
	}
	if err := service.SetGuestList(ctx, round.ID, []string{"alice@example.com"}); err != nil {
		t.Fatalf("guest list: %v", err)
	}

	wsHandler := NewWSHandler(service)
	server := httptest.NewServer(http.HandlerFunc(wsHandler.ServeWS))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "?roomCode=" + round.RoomCode + "&userId=u2&email=mallory@example.com"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	typ, _ := readNext(conn, t, "")
	if typ != "error" {
		t.Fatalf("expected error frame, got %s", typ)
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

func newTestService() *app.Service {
	store := memory.NewStore()
	engine := judge.NewEngine(store, store, store, judge.DefaultMaxDistance)
	return app.NewService(store, store, store, store, store, engine, app.Config{JudgeWorkers: 2, JudgeQueueSize: 16})
}
