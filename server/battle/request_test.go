package battle

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, body string) (*ChatRequest, Instruction) {
	t.Helper()
	req, instr, err := ParseRequest([]byte(body))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	return req, instr
}

func TestParseRequestStart(t *testing.T) {
	req, instr := mustParse(t, `{
		"model": "battle-arena",
		"stream": false,
		"messages": [{"role":"user","content":"$sA hello"}],
		"extra_body": {
			"battle_mode_active": true,
			"context_type": "battle_simulation",
			"rpid": "x",
			"start_models": ["Assistant A"]
		}
	}`)
	if instr.Kind != KindStart || instr.SessionID != "x" || instr.Slot != "Assistant A" {
		t.Fatalf("instr = %+v", instr)
	}
	if req.Model != "battle-arena" || req.Stream {
		t.Fatalf("req = %+v", req)
	}
}

func TestParseRequestStreamDefaultsTrue(t *testing.T) {
	req, _ := mustParse(t, `{
		"extra_body": {"battle_mode_active": true, "context_type": "battle_simulation",
			"rpid": "x", "battle_models": ["Assistant B"]}
	}`)
	if !req.Stream {
		t.Fatal("stream must default to true")
	}
}

func TestParseRequestResolve(t *testing.T) {
	_, instr := mustParse(t, `{
		"extra_body": {"battle_mode_active": true, "context_type": "battle_simulation",
			"rpid": "x", "win_models": []}
	}`)
	if instr.Kind != KindResolve || len(instr.Signal) != 0 {
		t.Fatalf("instr = %+v", instr)
	}
}

func TestParseRequestResolveTakesPrecedence(t *testing.T) {
	_, instr := mustParse(t, `{
		"extra_body": {"battle_mode_active": true, "context_type": "battle_simulation",
			"rpid": "x", "win_models": ["Assistant A"], "start_models": ["Assistant A"]}
	}`)
	if instr.Kind != KindResolve {
		t.Fatalf("win_models must win dispatch, got kind %v", instr.Kind)
	}
}

func TestParseRequestValidationErrors(t *testing.T) {
	cases := []struct {
		name, body, wantSub string
	}{
		{"not json", `{"model":`, "invalid JSON"},
		{"no extra body", `{"model":"m"}`, "battle_mode_active"},
		{"battle mode off", `{"extra_body":{"battle_mode_active":false,"context_type":"battle_simulation","rpid":"x","start_models":["Assistant A"]}}`, "battle_mode_active"},
		{"wrong context", `{"extra_body":{"battle_mode_active":true,"context_type":"other","rpid":"x","start_models":["Assistant A"]}}`, "context_type"},
		{"rpid missing", `{"extra_body":{"battle_mode_active":true,"context_type":"battle_simulation","start_models":["Assistant A"]}}`, "rpid"},
		{"rpid not string", `{"extra_body":{"battle_mode_active":true,"context_type":"battle_simulation","rpid":7,"start_models":["Assistant A"]}}`, "rpid"},
		{"win not a list", `{"extra_body":{"battle_mode_active":true,"context_type":"battle_simulation","rpid":"x","win_models":"Assistant A"}}`, "win_models"},
		{"slot list too long", `{"extra_body":{"battle_mode_active":true,"context_type":"battle_simulation","rpid":"x","start_models":["Assistant A","Assistant B"]}}`, "start_models"},
		{"slot unknown", `{"extra_body":{"battle_mode_active":true,"context_type":"battle_simulation","rpid":"x","battle_models":["Assistant C"]}}`, "battle_models"},
		{"no instruction", `{"extra_body":{"battle_mode_active":true,"context_type":"battle_simulation","rpid":"x"}}`, "no instruction"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := ParseRequest([]byte(c.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), c.wantSub) {
				t.Fatalf("error %q does not mention %q", err, c.wantSub)
			}
		})
	}
}

func TestParseRequestValidationErrorType(t *testing.T) {
	_, _, err := ParseRequest([]byte(`{"extra_body":{"battle_mode_active":true,"context_type":"battle_simulation","rpid":"x","win_models":42}}`))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestRewriteStripsCommandAndSideChannel(t *testing.T) {
	req, _ := mustParse(t, `{
		"model": "battle-arena",
		"temperature": 0.7,
		"messages": [
			{"role":"system","content":"$sA not a user message"},
			{"role":"user","content":"$sA hello there","name":"alice"},
			{"role":"user","content":[{"type":"text","text":"$sA parts"}]}
		],
		"extra_body": {"battle_mode_active": true, "context_type": "battle_simulation",
			"rpid": "x", "start_models": ["Assistant A"]}
	}`)

	body, err := req.Rewrite("real-model-1")
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Model       string            `json:"model"`
		Temperature float64           `json:"temperature"`
		Messages    []json.RawMessage `json:"messages"`
		ExtraBody   json.RawMessage   `json:"extra_body"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Model != "real-model-1" {
		t.Fatalf("model = %q", out.Model)
	}
	if out.Temperature != 0.7 {
		t.Fatal("passthrough fields must survive the rewrite")
	}
	if out.ExtraBody != nil {
		t.Fatal("extra_body must be removed")
	}

	var m1 map[string]any
	if err := json.Unmarshal(out.Messages[0], &m1); err != nil {
		t.Fatal(err)
	}
	if m1["content"] != "$sA not a user message" {
		t.Fatal("system messages must not be cleaned")
	}
	var m2 map[string]any
	if err := json.Unmarshal(out.Messages[1], &m2); err != nil {
		t.Fatal(err)
	}
	if m2["content"] != "hello there" {
		t.Fatalf("user content = %q, want command stripped", m2["content"])
	}
	if m2["name"] != "alice" {
		t.Fatal("unknown message fields must survive")
	}
	var m3 map[string]any
	if err := json.Unmarshal(out.Messages[2], &m3); err != nil {
		t.Fatal(err)
	}
	if _, ok := m3["content"].([]any); !ok {
		t.Fatal("non-string contents must pass through unchanged")
	}
}
