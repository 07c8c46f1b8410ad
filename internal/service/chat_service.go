package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/liliang-cn/ragchat/internal/domain"
	"go.uber.org/zap"
)

// Frontend replies that are not model answers
const (
	EmptyResponseMessage  = "Empty response from query engine. Please check the configuration."
	IndexNotLoadedMessage = "Error: Index not loaded. Please check the configuration."
)

// Querier answers a question from the indexed collection
type Querier interface {
	Query(ctx context.Context, question string) (string, error)
	Ready() bool
}

// ChatService turns a user message into the text shown back to the user.
// It never returns an error; failures become the reply text.
type ChatService struct {
	engine Querier
	logger *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(engine Querier, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{engine: engine, logger: logger}
}

// HandleMessage queries the engine and formats the reply
func (s *ChatService) HandleMessage(ctx context.Context, content string) (reply string) {
	s.logger.Info("received message", zap.String("content", content))

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("query panicked", zap.Any("panic", r))
			reply = fmt.Sprintf("Error: %v", r)
		}
	}()

	if s.engine == nil || !s.engine.Ready() {
		return IndexNotLoadedMessage
	}

	answer, err := s.engine.Query(ctx, content)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		if errors.Is(err, domain.ErrIndexNotLoaded) {
			return IndexNotLoadedMessage
		}
		return fmt.Sprintf("Error: %v", err)
	}

	s.logger.Info("query answered", zap.String("answer", answer))
	if strings.TrimSpace(answer) == "" {
		return EmptyResponseMessage
	}
	return answer
}
