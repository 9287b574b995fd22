// Package assistant wires the memory and history stores into a
// conversational loop: facts prefixed with "remember" are stored, everything
// else is answered with relevant memories and recent transcript as context.
package assistant

import (
	"context"
	"strings"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/usecase/history"
	"github.com/m-mizutani/engram/pkg/usecase/memory"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const systemPrompt = `You are an assistant with contextual memory.
- Keep answers short and direct unless asked for detail.
- Use retrieved memory only if it helps the current request.`

const (
	// recentTurns bounds the transcript window sent to the model.
	recentTurns = 20
	// recallLimit bounds how many memories are injected per request.
	recallLimit = 5
)

// LLM is the chat completion surface the assistant needs. Satisfied by
// adapter.GeminiClient.
type LLM interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Session is one user's conversation against the stores.
type Session struct {
	memories *memory.Store
	history  *history.Store
	llm      LLM
	userID   model.UserID
}

// NewInput contains parameters for creating a session
type NewInput struct {
	Memories *memory.Store
	History  *history.Store
	LLM      LLM
	UserID   model.UserID
}

func New(input NewInput) *Session {
	userID := input.UserID
	if userID == "" {
		userID = model.NewUserID()
	}

	return &Session{
		memories: input.Memories,
		history:  input.History,
		llm:      input.LLM,
		userID:   userID,
	}
}

// UserID returns the session's user identifier.
func (s *Session) UserID() model.UserID {
	return s.userID
}

// Send processes one user utterance and returns the assistant reply. Both
// turns are persisted to the chat ledger.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	if fact := rememberCommand(text); fact != "" {
		if err := s.memories.Add(ctx, fact); err != nil {
			return "", goerr.Wrap(err, "failed to store fact")
		}

		reply := "Ok. I'll remember: " + fact
		if err := s.recordTurns(ctx, text, reply); err != nil {
			return "", err
		}
		return reply, nil
	}

	memories, err := s.memories.Search(ctx, text, recallLimit)
	if err != nil {
		return "", goerr.Wrap(err, "failed to recall memories")
	}

	turns, err := s.history.LoadHistory(ctx, s.userID, 0)
	if err != nil {
		return "", err
	}
	if len(turns) > recentTurns {
		turns = turns[len(turns)-recentTurns:]
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buildSystemPrompt(memories), ""),
	}

	resp, err := s.llm.GenerateContent(ctx, buildContents(turns, text), config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate reply")
	}

	reply := extractText(resp)
	if reply == "" {
		return "", goerr.New("model returned no text")
	}

	if err := s.recordTurns(ctx, text, reply); err != nil {
		return "", err
	}
	return reply, nil
}

func (s *Session) recordTurns(ctx context.Context, userText, reply string) error {
	if err := s.history.AddMessage(ctx, s.userID, model.RoleUser, userText); err != nil {
		return err
	}
	return s.history.AddMessage(ctx, s.userID, model.RoleAssistant, reply)
}

// rememberCommand extracts the fact from a "remember ..." utterance, or
// returns "" when the utterance is a normal request.
func rememberCommand(text string) string {
	low := strings.ToLower(text)
	for _, prefix := range []string{"remember that ", "remember "} {
		if strings.HasPrefix(low, prefix) {
			return strings.TrimSpace(text[len(prefix):])
		}
	}
	return ""
}

func buildSystemPrompt(memories []string) string {
	if len(memories) == 0 {
		return systemPrompt
	}

	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\nRelevant memories:\n")
	for _, m := range memories {
		sb.WriteString("- ")
		sb.WriteString(m)
		sb.WriteString("\n")
	}
	return sb.String()
}

func buildContents(turns []*model.ChatTurn, userText string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns)+1)
	for _, turn := range turns {
		role := genai.Role(genai.RoleUser)
		if turn.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	return append(contents, genai.NewContentFromText(userText, genai.RoleUser))
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String())
}
