package service

import (
	"context"
	"strings"
	"time"

	"review-rag-be/internal/dto"
	"review-rag-be/internal/pkg/logger"
	"review-rag-be/pkg/rag/chain"
	"review-rag-be/pkg/rag/history"
	"review-rag-be/pkg/rag/ragerr"

	"github.com/google/uuid"
)

type IChatService interface {
	CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error)
	Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error)
	GetHistory(ctx context.Context, sessionID string) (*dto.ChatHistoryResponse, error)
}

// Invoker is the conversational chain.
type Invoker interface {
	Invoke(ctx context.Context, sessionID, input string) (*chain.Result, error)
}

type chatService struct {
	chain   Invoker
	history history.HistoryStore
	events  IEventPublisher
	logger  logger.ILogger
	timeout time.Duration
}

// NewChatService wires the chain. timeout bounds a whole request; zero leaves
// it to the caller's context.
func NewChatService(c Invoker, store history.HistoryStore, events IEventPublisher, log logger.ILogger, timeout time.Duration) IChatService {
	return &chatService{
		chain:   c,
		history: store,
		events:  events,
		logger:  log,
		timeout: timeout,
	}
}

func (s *chatService) CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error) {
	id := uuid.NewString()
	if _, err := s.history.GetOrCreate(ctx, id); err != nil {
		return nil, ragerr.Classify(ragerr.KindConnection, "chat.CreateSession", err)
	}
	s.logger.Info("CHAT", "Session created", map[string]interface{}{"session_id": id})
	return &dto.CreateSessionResponse{SessionId: id}, nil
}

func (s *chatService) Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.chain.Invoke(ctx, strings.TrimSpace(req.SessionId), req.Question)
	if err != nil {
		return nil, err
	}

	resp := &dto.AskResponse{
		SessionId:       res.SessionID,
		Answer:          res.Answer,
		StandaloneQuery: res.StandaloneQuery,
		Documents:       make([]dto.ReviewDTO, 0, len(res.Documents)),
	}
	var products []string
	seen := make(map[string]bool)
	for _, d := range res.Documents {
		name := d.ProductName()
		resp.Documents = append(resp.Documents, dto.ReviewDTO{ProductName: name, Content: d.Content})
		if !seen[name] {
			seen[name] = true
			products = append(products, name)
		}
	}

	if s.events != nil {
		s.events.PublishChatAnswered(ctx, res.SessionID, products, time.Since(start))
	}
	return resp, nil
}

func (s *chatService) GetHistory(ctx context.Context, sessionID string) (*dto.ChatHistoryResponse, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ragerr.Errorf(ragerr.KindInvalidInput, "chat.GetHistory", "session id is required")
	}
	tr, err := s.history.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, ragerr.Classify(ragerr.KindConnection, "chat.GetHistory", err)
	}

	resp := &dto.ChatHistoryResponse{
		SessionId: tr.SessionID,
		Turns:     make([]dto.TurnDTO, 0, len(tr.Turns)),
	}
	for _, t := range tr.Turns {
		resp.Turns = append(resp.Turns, dto.TurnDTO{Role: string(t.Role), Text: t.Text, CreatedAt: t.CreatedAt})
	}
	return resp, nil
}
