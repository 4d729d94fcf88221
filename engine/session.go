package engine

import (
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
)

// Session accumulates the message exchange of one engine run. Runs in this
// module are single-shot — one user message, then tool-result turns until
// the model answers — so a Session never outlives its Run call.
type Session struct {
	ID        string
	UserID    string
	TurnCount int
	CreatedAt time.Time

	messages []anthropic.MessageParam
}

// NewSession creates a session for one run.
func NewSession(userID string) *Session {
	return &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: time.Now(),
		messages:  make([]anthropic.MessageParam, 0, 4),
	}
}

// AddUserMessage appends a user text message.
func (s *Session) AddUserMessage(content string) {
	s.messages = append(s.messages, anthropic.NewUserMessage(anthropic.NewTextBlock(content)))
}

// AddAssistantResponse appends a full Claude response including tool_use
// blocks, so the follow-up tool results have their referent.
func (s *Session) AddAssistantResponse(resp *anthropic.Message) {
	var content []anthropic.ContentBlockParamUnion
	for _, block := range resp.Content {
		content = append(content, block.ToParam())
	}

	s.messages = append(s.messages, anthropic.MessageParam{
		Role:    anthropic.MessageParamRoleAssistant,
		Content: content,
	})
}

// AddToolResults appends tool results to continue the exchange.
func (s *Session) AddToolResults(results []anthropic.ContentBlockParamUnion) {
	s.messages = append(s.messages, anthropic.MessageParam{
		Role:    anthropic.MessageParamRoleUser,
		Content: results,
	})
}

// Messages returns the exchange so far.
func (s *Session) Messages() []anthropic.MessageParam {
	return s.messages
}

// IncrementTurnCount increments and returns the turn count.
func (s *Session) IncrementTurnCount() int {
	s.TurnCount++
	return s.TurnCount
}
