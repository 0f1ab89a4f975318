package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// Client streams chat completions from the Anthropic Messages API.
type Client struct {
	apiKey     string
	model      string
	maxTokens  int
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a streaming client. The timeout bounds the whole call
// including the streamed body, so it should cover the longest expected reply.
func NewClient(apiKey, model string, maxTokens int, timeout time.Duration) *Client {
	return &Client{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		baseURL:   defaultBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Probe makes a minimal non-streaming call to verify the credential and
// connectivity on startup.
func (c *Client) Probe(ctx context.Context) error {
	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: 10,
		Messages:  []Message{{Role: "user", Content: "Hi"}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal probe request: %w", err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return fmt.Errorf("failed to reach model API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model API probe failed: %s", readAPIError(resp))
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}

// Stream opens a streaming completion call and returns a channel of text
// chunks. The channel is finite, single-consumer and not restartable. Any
// transport or API error is converted into one final visible chunk and the
// channel closes; the partial text plus that chunk is what the caller
// persists. No automatic retry.
func (c *Client) Stream(ctx context.Context, messages []Message, systemPrompt string) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		body, err := json.Marshal(messagesRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			System:    systemPrompt,
			Stream:    true,
			Messages:  messages,
		})
		if err != nil {
			emitError(ctx, out, err)
			return
		}

		resp, err := c.post(ctx, body)
		if err != nil {
			log.Printf("Error connecting to model API: %v", err)
			emitError(ctx, out, err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			emitError(ctx, out, fmt.Errorf("%s", readAPIError(resp)))
			return
		}

		// Read the SSE body line by line. Deltas can carry long lines,
		// so the scanner buffer is raised well past the default.
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" || !strings.HasPrefix(line, "data: ") {
				continue
			}
			jsonData := strings.TrimPrefix(line, "data: ")

			var event streamEvent
			if err := json.Unmarshal([]byte(jsonData), &event); err != nil {
				log.Printf("Error parsing stream event: %v", err)
				continue
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta != nil && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
					select {
					case out <- event.Delta.Text:
					case <-ctx.Done():
						return
					}
				}
			case "error":
				message := "unknown stream error"
				if event.Error != nil {
					message = fmt.Sprintf("%s: %s", event.Error.Type, event.Error.Message)
				}
				emitError(ctx, out, fmt.Errorf("%s", message))
				return
			case "message_stop":
				return
			}
		}

		if err := scanner.Err(); err != nil {
			log.Printf("Scanner error: %v", err)
			emitError(ctx, out, err)
		}
	}()

	return out
}

func (c *Client) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Anthropic-Version", anthropicVersion)

	return c.httpClient.Do(req)
}

// emitError pushes the single visible error chunk that terminates a stream.
func emitError(ctx context.Context, out chan<- string, err error) {
	errMsg := fmt.Sprintf("Error during streaming: %v", err)
	log.Print(errMsg)
	select {
	case out <- errMsg:
	case <-ctx.Done():
	}
}

func readAPIError(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return resp.Status
	}

	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		return fmt.Sprintf("%s: %s", parsed.Error.Type, parsed.Error.Message)
	}
	return fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
}
