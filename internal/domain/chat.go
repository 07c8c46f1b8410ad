package domain

// Role is the author of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// IncomingMessage is a chat message as sent by proxy callers. Pointers
// distinguish a missing field from an empty one; any other field the caller
// sends is dropped during decoding.
type IncomingMessage struct {
	Role    *string `json:"role"`
	Content *string `json:"content"`
}

// ChatRequest is the body accepted by the proxy chat endpoint
type ChatRequest struct {
	Messages []IncomingMessage `json:"messages" binding:"required"`
	Model    string            `json:"model,omitempty"`
}

// ChatResponse is the uniform response returned by the proxy
type ChatResponse struct {
	Model   string  `json:"model"`
	Message Message `json:"message"`
}

// BackendChatRequest is the body sent to the model server
type BackendChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// BackendChatResponse is the subset of the model server response we read
type BackendChatResponse struct {
	Model   string   `json:"model,omitempty"`
	Message *Message `json:"message,omitempty"`
	Done    bool     `json:"done,omitempty"`
}

// RootResponse is returned by the proxy root endpoint
type RootResponse struct {
	Message string `json:"message"`
}
