package assistant_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/repository"
	"github.com/m-mizutani/engram/pkg/usecase/assistant"
	"github.com/m-mizutani/engram/pkg/usecase/history"
	"github.com/m-mizutani/engram/pkg/usecase/memory"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embedding(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(strings.ToLower(text), "sky") {
		return []float32{1, 0, 0}, nil
	}
	return []float32{0, 1, 0}, nil
}

type fakeLLM struct {
	reply    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	calls    int
}

func (f *fakeLLM) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.contents = contents
	f.config = config
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(f.reply, genai.RoleModel)},
		},
	}, nil
}

type fixture struct {
	session  *assistant.Session
	memories *memory.Store
	history  *history.Store
	llm      *fakeLLM
}

func setup(t *testing.T) *fixture {
	dir := t.TempDir()
	repo, err := repository.NewSQLite(filepath.Join(dir, "engram.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	memories, err := memory.New(context.Background(), repo, fakeEmbedder{}, filepath.Join(dir, "engram.index"))
	gt.NoError(t, err)

	histStore := history.New(repo)
	llm := &fakeLLM{reply: "hello back"}

	session := assistant.New(assistant.NewInput{
		Memories: memories,
		History:  histStore,
		LLM:      llm,
	})

	return &fixture{session: session, memories: memories, history: histStore, llm: llm}
}

func TestGeneratesUserID(t *testing.T) {
	f := setup(t)
	gt.True(t, f.session.UserID() != "")
}

func TestEmptyInput(t *testing.T) {
	f := setup(t)

	reply, err := f.session.Send(context.Background(), "   ")
	gt.NoError(t, err)
	gt.Equal(t, reply, "")
	gt.Equal(t, f.llm.calls, 0)
}

func TestRememberCommand(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	reply, err := f.session.Send(ctx, "Remember that the sky is blue")
	gt.NoError(t, err)
	gt.Equal(t, reply, "Ok. I'll remember: the sky is blue")
	// the fact is stored directly, no model round trip
	gt.Equal(t, f.llm.calls, 0)

	count, err := f.memories.Count(ctx)
	gt.NoError(t, err)
	gt.Equal(t, count, int64(1))

	// both turns land in the transcript
	turns, err := f.history.LoadHistory(ctx, f.session.UserID(), 0)
	gt.NoError(t, err)
	gt.A(t, turns).Length(2)
	gt.Equal(t, turns[0].Role, model.RoleUser)
	gt.Equal(t, turns[1].Role, model.RoleAssistant)
}

func TestSendInjectsMemories(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.session.Send(ctx, "remember the sky is blue")
	gt.NoError(t, err)

	reply, err := f.session.Send(ctx, "what color is the sky?")
	gt.NoError(t, err)
	gt.Equal(t, reply, "hello back")
	gt.Equal(t, f.llm.calls, 1)

	instruction := f.llm.config.SystemInstruction.Parts[0].Text
	gt.True(t, strings.Contains(instruction, "the sky is blue"))

	// prior remember exchange plus the new utterance
	gt.A(t, f.llm.contents).Length(3)
	last := f.llm.contents[len(f.llm.contents)-1]
	gt.Equal(t, last.Parts[0].Text, "what color is the sky?")

	turns, err := f.history.LoadHistory(ctx, f.session.UserID(), 0)
	gt.NoError(t, err)
	gt.A(t, turns).Length(4)
	gt.Equal(t, turns[3].Text, "hello back")
}

func TestSendWithoutMemories(t *testing.T) {
	f := setup(t)

	reply, err := f.session.Send(context.Background(), "what color is the sky?")
	gt.NoError(t, err)
	gt.Equal(t, reply, "hello back")

	instruction := f.llm.config.SystemInstruction.Parts[0].Text
	gt.True(t, !strings.Contains(instruction, "Relevant memories"))
	gt.A(t, f.llm.contents).Length(1)
}
