package battle

import (
	"encoding/json"
	"errors"
)

// ChatRequest holds a parsed chat-completions body. Top-level fields the
// battle protocol does not interpret (temperature, top_p, ...) are carried
// through untouched so the generation backend sees the caller's settings.
type ChatRequest struct {
	Model  string
	Stream bool

	fields   map[string]json.RawMessage
	messages []map[string]json.RawMessage
}

// ParseRequest splits a request body into the passthrough chat request and
// the validated battle instruction embedded in its extra_body. A structural
// failure (unparseable body or fields) returns a nil request; an instruction
// failure returns the parsed request alongside the error so the transport can
// still inspect the envelope.
func ParseRequest(body []byte) (*ChatRequest, Instruction, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, Instruction{}, validationErrorf("invalid JSON request body: %v", err)
	}

	req := &ChatRequest{fields: fields, Stream: true}
	if raw, ok := fields["model"]; ok {
		if err := json.Unmarshal(raw, &req.Model); err != nil {
			return nil, Instruction{}, validationErrorf("'model' must be a string")
		}
	}
	if raw, ok := fields["stream"]; ok {
		if err := json.Unmarshal(raw, &req.Stream); err != nil {
			return nil, Instruction{}, validationErrorf("'stream' must be a boolean")
		}
	}
	if raw, ok := fields["messages"]; ok {
		if err := json.Unmarshal(raw, &req.messages); err != nil {
			return nil, Instruction{}, validationErrorf("'messages' must be a list of message objects")
		}
	}

	instr, err := parseInstruction(fields["extra_body"])
	if err != nil {
		return req, Instruction{}, err
	}
	return req, instr, nil
}

// UserContents returns the string contents of user-role messages, in order.
func (r *ChatRequest) UserContents() []string {
	var out []string
	for _, m := range r.messages {
		if role, _ := stringField(m, "role"); role != "user" {
			continue
		}
		if content, ok := stringField(m, "content"); ok {
			out = append(out, content)
		}
	}
	return out
}

// Rewrite produces the outbound generation body: the real model substituted
// for the arena model, one leading command token stripped from each user
// message, and the battle side channel removed.
func (r *ChatRequest) Rewrite(realModel string) ([]byte, error) {
	if realModel == "" {
		return nil, errors.New("rewrite requires a model id")
	}

	out := make(map[string]json.RawMessage, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	delete(out, "extra_body")

	model, err := json.Marshal(realModel)
	if err != nil {
		return nil, err
	}
	out["model"] = model

	if len(r.messages) > 0 {
		cleaned := make([]map[string]json.RawMessage, len(r.messages))
		for i, m := range r.messages {
			cleaned[i] = cleanUserMessage(m)
		}
		msgs, err := json.Marshal(cleaned)
		if err != nil {
			return nil, err
		}
		out["messages"] = msgs
	}

	return json.Marshal(out)
}

// cleanUserMessage strips the command token from a user message with string
// content; other roles and non-string contents pass through unchanged.
func cleanUserMessage(m map[string]json.RawMessage) map[string]json.RawMessage {
	role, _ := stringField(m, "role")
	if role != "user" {
		return m
	}
	content, ok := stringField(m, "content")
	if !ok {
		return m
	}
	cleaned := CleanContent(content)
	if cleaned == content {
		return m
	}
	cp := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		cp[k] = v
	}
	raw, err := json.Marshal(cleaned)
	if err != nil {
		return m
	}
	cp["content"] = raw
	return cp
}

func stringField(m map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := m[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
