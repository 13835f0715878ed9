package battle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"llm-colosseum/server/elo"
	"llm-colosseum/server/store"
)

var handlerPool = []string{"m1", "m2", "m3"}

func newTestHandler() (*Handler, *store.Memory) {
	st := store.NewMemory()
	return NewHandler(st, handlerPool, nil), st
}

func battleBody(rpid, field, value string) string {
	return fmt.Sprintf(`{
		"model": "battle-arena",
		"messages": [{"role":"user","content":"$sA tell me a story"}],
		"extra_body": {"battle_mode_active": true, "context_type": "battle_simulation",
			"rpid": %q, %q: %s}
	}`, rpid, field, value)
}

func handle(t *testing.T, h *Handler, body string) Result {
	t.Helper()
	req, instr, err := ParseRequest([]byte(body))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	return h.Handle(context.Background(), req, instr)
}

func TestHandleStartCreatesSession(t *testing.T) {
	h, st := newTestHandler()
	res := handle(t, h, battleBody("x", "start_models", `["Assistant A"]`))

	gen, ok := res.(Generate)
	if !ok {
		t.Fatalf("got %T (%+v), want Generate", res, res)
	}
	if gen.DisplayLabel != elo.LabelA {
		t.Fatalf("display label = %q", gen.DisplayLabel)
	}

	s, created, err := st.GetOrCreateSession(context.Background(), "x", handlerPool)
	if err != nil || created {
		t.Fatalf("session must already exist: created=%v err=%v", created, err)
	}

	var out struct {
		Model    string `json:"model"`
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(gen.Body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Model != s.ModelA {
		t.Fatalf("slot A must map to model A: got %q, want %q", out.Model, s.ModelA)
	}
	if out.Messages[0].Content != "tell me a story" {
		t.Fatalf("content = %q, want command stripped", out.Messages[0].Content)
	}
}

func TestHandleStartSlotBMapsToModelB(t *testing.T) {
	h, st := newTestHandler()
	res := handle(t, h, battleBody("x", "start_models", `["Assistant B"]`))
	gen, ok := res.(Generate)
	if !ok {
		t.Fatalf("got %T, want Generate", res)
	}
	s, _, _ := st.GetOrCreateSession(context.Background(), "x", handlerPool)
	var out struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(gen.Body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Model != s.ModelB {
		t.Fatalf("slot B must map to model B: got %q, want %q", out.Model, s.ModelB)
	}
	if gen.DisplayLabel != elo.LabelB {
		t.Fatalf("display label = %q", gen.DisplayLabel)
	}
}

func TestHandleStartConflict(t *testing.T) {
	h, _ := newTestHandler()
	handle(t, h, battleBody("x", "start_models", `["Assistant A"]`))
	res := handle(t, h, battleBody("x", "start_models", `["Assistant B"]`))
	e, ok := res.(Error)
	if !ok || !strings.Contains(e.Message, "already exists") {
		t.Fatalf("got %T (%+v), want conflict error", res, res)
	}
}

func TestHandleContinueBeforeStart(t *testing.T) {
	h, _ := newTestHandler()
	res := handle(t, h, battleBody("ghost", "battle_models", `["Assistant A"]`))
	e, ok := res.(Error)
	if !ok || !strings.Contains(e.Message, "start") {
		t.Fatalf("got %T (%+v), want ordering error", res, res)
	}
}

func TestHandleContinueActive(t *testing.T) {
	h, _ := newTestHandler()
	handle(t, h, battleBody("x", "start_models", `["Assistant A"]`))
	res := handle(t, h, battleBody("x", "battle_models", `["Assistant B"]`))
	if _, ok := res.(Generate); !ok {
		t.Fatalf("got %T (%+v), want Generate", res, res)
	}
}

func TestHandleContinueAfterCompleted(t *testing.T) {
	h, _ := newTestHandler()
	handle(t, h, battleBody("x", "start_models", `["Assistant A"]`))
	handle(t, h, battleBody("x", "win_models", `["Assistant A"]`))
	res := handle(t, h, battleBody("x", "battle_models", `["Assistant A"]`))
	e, ok := res.(Error)
	if !ok || !strings.Contains(e.Message, "completed") {
		t.Fatalf("got %T (%+v), want completed error", res, res)
	}
}

func TestHandleResolve(t *testing.T) {
	h, st := newTestHandler()
	handle(t, h, battleBody("x", "start_models", `["Assistant A"]`))
	res := handle(t, h, battleBody("x", "win_models", `["Assistant A"]`))

	win, ok := res.(Win)
	if !ok {
		t.Fatalf("got %T (%+v), want Win", res, res)
	}
	if win.SessionID != "x" || win.ModelA == "" || win.ModelB == "" || win.ModelA == win.ModelB {
		t.Fatalf("win = %+v", win)
	}

	ra, _ := st.GetRating(context.Background(), win.ModelA)
	rb, _ := st.GetRating(context.Background(), win.ModelB)
	if ra.Value != 1016 || rb.Value != 984 {
		t.Fatalf("ratings = %d/%d, want 1016/984", ra.Value, rb.Value)
	}
}

func TestHandleResolveUnknownID(t *testing.T) {
	h, _ := newTestHandler()
	res := handle(t, h, battleBody("ghost", "win_models", `[]`))
	e, ok := res.(Error)
	if !ok || !strings.Contains(e.Message, "no such battle") {
		t.Fatalf("got %T (%+v), want not-found error", res, res)
	}
}

func TestHandleResolveTwice(t *testing.T) {
	h, _ := newTestHandler()
	handle(t, h, battleBody("x", "start_models", `["Assistant A"]`))
	handle(t, h, battleBody("x", "win_models", `["Assistant A"]`))
	res := handle(t, h, battleBody("x", "win_models", `["Assistant B"]`))
	e, ok := res.(Error)
	if !ok || !strings.Contains(e.Message, "already completed") {
		t.Fatalf("got %T (%+v), want conflict error", res, res)
	}
}

func TestHandleStartPoolExhausted(t *testing.T) {
	st := store.NewMemory()
	h := NewHandler(st, []string{"solo"}, nil)
	res := handle(t, h, battleBody("x", "start_models", `["Assistant A"]`))
	e, ok := res.(Error)
	if !ok || !strings.Contains(e.Message, "candidate models") {
		t.Fatalf("got %T (%+v), want pool error", res, res)
	}
}
