package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OpenAI-shape synthesis for WIN/ERROR results, which are answered locally
// without contacting the generation backend.

func newResponseID() string { return "chatcmpl-" + uuid.NewString() }

type chatChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Index        int            `json:"index"`
	Delta        map[string]any `json:"delta"`
	FinishReason *string        `json:"finish_reason"`
}

// formatChunk renders one SSE data line carrying a content delta.
func formatChunk(content, model, requestID string) string {
	b, _ := json.Marshal(chatChunk{
		ID:      requestID,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []chunkChoice{{Delta: map[string]any{"content": content}}},
	})
	return fmt.Sprintf("data: %s\n\n", b)
}

// formatFinishChunk renders the closing delta plus the [DONE] marker.
func formatFinishChunk(model, requestID string) string {
	reason := "stop"
	b, _ := json.Marshal(chatChunk{
		ID:      requestID,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []chunkChoice{{Delta: map[string]any{}, FinishReason: &reason}},
	})
	return fmt.Sprintf("data: %s\n\ndata: [DONE]\n\n", b)
}

// formatCompletion builds a whole non-streamed chat completion object.
func formatCompletion(content, model, requestID string) map[string]any {
	return map[string]any{
		"id":      requestID,
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 0, "completion_tokens": 0, "total_tokens": 0},
	}
}
