package llm

// Message is one user or assistant turn in the model request. The system
// prompt is never part of this list; it travels in the request's System field.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Stream    bool      `json:"stream,omitempty"`
	Messages  []Message `json:"messages"`
}

// streamEvent covers the server-sent event payloads the client cares about:
// content_block_delta (text chunks), error, and message_stop.
type streamEvent struct {
	Type  string       `json:"type"`
	Delta *streamDelta `json:"delta,omitempty"`
	Error *apiError    `json:"error,omitempty"`
}

type streamDelta struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Type  string    `json:"type"`
	Error *apiError `json:"error,omitempty"`
}
