package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Relay forwards rewritten generation requests to the external backend and
// copies its response back verbatim.
type Relay struct {
	base   string
	client *http.Client
}

func NewRelay(base string) *Relay {
	return &Relay{
		base: strings.TrimRight(base, "/"),
		// Generation can legitimately take minutes on long prompts.
		client: &http.Client{Timeout: 6 * time.Minute},
	}
}

// ChatCompletions posts body to the backend's chat endpoint. The caller owns
// the response body.
func (rl *Relay) ChatCompletions(ctx context.Context, body []byte) (*http.Response, error) {
	url := rl.base + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := rl.client.Do(req)
	relayDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var buf bytes.Buffer
		_, _ = io.CopyN(&buf, resp.Body, 2048)
		return nil, fmt.Errorf("backend http %d: %s", resp.StatusCode, truncate(buf.String(), 800))
	}
	return resp, nil
}

// relayStream copies the backend's streamed response to the client as-is,
// flushing per chunk. A mid-stream failure appends an error chunk and a
// finish chunk so the client's stream terminates cleanly.
func relayStream(w http.ResponseWriter, upstream io.Reader, displayModel string) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			slog.Error("backend stream interrupted", "err", err)
			requestID := newResponseID()
			errContent := fmt.Sprintf("\n\n[Battle Server Error]: backend stream interrupted: %v", err)
			_, _ = io.WriteString(w, formatChunk(errContent, displayModel, requestID))
			_, _ = io.WriteString(w, formatFinishChunk(displayModel, requestID))
			if flusher != nil {
				flusher.Flush()
			}
			return
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
