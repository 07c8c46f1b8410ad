package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/liliang-cn/ragchat/internal/domain"
	"github.com/liliang-cn/ragchat/internal/llm"
	"go.uber.org/zap"
)

// NoResponseContent is returned when the backend answers without a message
const NoResponseContent = "No response from model"

// ProxyOutcome classifies a proxied chat call
type ProxyOutcome int

const (
	// ProxyOK means the backend answered 200 with a decodable body
	ProxyOK ProxyOutcome = iota
	// ProxyInvalidRequest means a caller message lacked role or content
	ProxyInvalidRequest
	// ProxyBackendRejected means the backend answered with a non-200 status
	ProxyBackendRejected
	// ProxyBackendUnreachable covers connection failures, timeouts and undecodable bodies
	ProxyBackendUnreachable
)

func (o ProxyOutcome) String() string {
	switch o {
	case ProxyOK:
		return "ok"
	case ProxyInvalidRequest:
		return "invalid_request"
	case ProxyBackendRejected:
		return "backend_rejected"
	case ProxyBackendUnreachable:
		return "backend_unreachable"
	default:
		return "unknown"
	}
}

// ProxyResult is the outcome of one proxied chat call. Response is always
// populated: on failure its message content describes the error.
type ProxyResult struct {
	Response domain.ChatResponse
	Outcome  ProxyOutcome
	Err      error
}

// Failed reports whether the backend call did not succeed
func (r *ProxyResult) Failed() bool {
	return r.Outcome != ProxyOK
}

// BackendClient sends chat messages to the model server
type BackendClient interface {
	Do(ctx context.Context, messages []domain.Message) (*domain.BackendChatResponse, error)
	Model() string
}

// ProxyService rewrites chat requests for the backend model server. It holds
// no per-request state.
type ProxyService struct {
	backend BackendClient
	logger  *zap.Logger
}

// NewProxyService creates a new proxy service
func NewProxyService(backend BackendClient, logger *zap.Logger) *ProxyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProxyService{backend: backend, logger: logger}
}

// Model returns the backend model every request is forced to
func (s *ProxyService) Model() string {
	return s.backend.Model()
}

// Chat forwards the request to the backend with the configured model and
// streaming disabled. The requested model is only logged.
func (s *ProxyService) Chat(ctx context.Context, req *domain.ChatRequest) *ProxyResult {
	model := s.backend.Model()
	s.logger.Info("proxying chat request",
		zap.String("model", model),
		zap.String("requested_model", req.Model),
		zap.Int("messages", len(req.Messages)),
	)

	messages, err := normalizeMessages(req.Messages)
	if err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return failure(model, ProxyInvalidRequest, err, err.Error())
	}
	s.logger.Debug("sending messages to backend", zap.Any("messages", messages))

	resp, err := s.backend.Do(ctx, messages)
	if err != nil {
		var statusErr *llm.StatusError
		if errors.As(err, &statusErr) {
			s.logger.Error("backend returned error",
				zap.Int("status", statusErr.StatusCode),
				zap.String("body", statusErr.Body),
			)
			return failure(model, ProxyBackendRejected, err, statusErr.Body)
		}
		s.logger.Error("backend request failed", zap.Error(err))
		return failure(model, ProxyBackendUnreachable, err, err.Error())
	}

	message := domain.Message{Role: domain.RoleAssistant, Content: NoResponseContent}
	if resp.Message != nil {
		message = *resp.Message
	}
	s.logger.Info("backend responded", zap.String("role", string(message.Role)), zap.Int("content_length", len(message.Content)))

	return &ProxyResult{
		Response: domain.ChatResponse{Model: model, Message: message},
		Outcome:  ProxyOK,
	}
}

func failure(model string, outcome ProxyOutcome, err error, text string) *ProxyResult {
	return &ProxyResult{
		Response: domain.ChatResponse{
			Model: model,
			Message: domain.Message{
				Role:    domain.RoleAssistant,
				Content: "Error: " + text,
			},
		},
		Outcome: outcome,
		Err:     err,
	}
}

// normalizeMessages keeps only role and content of each message
func normalizeMessages(in []domain.IncomingMessage) ([]domain.Message, error) {
	out := make([]domain.Message, 0, len(in))
	for i, m := range in {
		if m.Role == nil {
			return nil, fmt.Errorf("%w: message %d has no role", domain.ErrInvalidRequest, i)
		}
		if m.Content == nil {
			return nil, fmt.Errorf("%w: message %d has no content", domain.ErrInvalidRequest, i)
		}
		out = append(out, domain.Message{Role: domain.Role(*m.Role), Content: *m.Content})
	}
	return out, nil
}
