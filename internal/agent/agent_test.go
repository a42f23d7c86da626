package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/vectorstore"
)

// scriptedModel replays canned responses in order and records every call.
type scriptedModel struct {
	responses []*llms.ContentResponse
	err       error
	calls     [][]llms.MessageContent
}

func (m *scriptedModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	snapshot := append([]llms.MessageContent(nil), messages...)
	m.calls = append(m.calls, snapshot)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.calls) > len(m.responses) {
		return nil, errors.New("script exhausted")
	}
	return m.responses[len(m.calls)-1], nil
}

func (m *scriptedModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

var _ llms.Model = (*scriptedModel)(nil)

type fakeSearcher struct {
	hits []vectorstore.SearchResult
	err  error

	calls          int
	lastCollection string
	lastQuery      string
	lastTopK       int
}

func (s *fakeSearcher) Search(_ context.Context, collection, query string, topK int, _ float32, _ map[string]any) ([]vectorstore.SearchResult, error) {
	s.calls++
	s.lastCollection = collection
	s.lastQuery = query
	s.lastTopK = topK
	return s.hits, s.err
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}
}

func toolCallResponse(id, name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			ToolCalls: []llms.ToolCall{{
				ID:   id,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      name,
					Arguments: args,
				},
			}},
		}},
	}
}

func searchHit(content, path string) vectorstore.SearchResult {
	return vectorstore.SearchResult{
		Content:  content,
		Score:    0.9,
		Metadata: map[string]any{"file_path": path},
	}
}

func toolResponseContent(t *testing.T, msg llms.MessageContent) string {
	t.Helper()
	require.Equal(t, llms.ChatMessageTypeTool, msg.Role)
	require.Len(t, msg.Parts, 1)
	resp, ok := msg.Parts[0].(llms.ToolCallResponse)
	require.True(t, ok, "tool message part should be a ToolCallResponse")
	return resp.Content
}

func TestChat_DirectAnswer(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		textResponse("Paris is the capital of France."),
	}}
	agent := New(Config{Collection: "corpus"}, model, &fakeSearcher{}, zap.NewNop())

	result, err := agent.Chat(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, "Paris is the capital of France.", result.Answer)
	assert.Empty(t, result.Links)
	require.Len(t, model.calls, 1)

	first := model.calls[0]
	require.Len(t, first, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, first[0].Role)
	assert.Equal(t, llms.TextContent{Text: systemPrompt}, first[0].Parts[0])
	assert.Equal(t, llms.ChatMessageTypeHuman, first[1].Role)
}

func TestChat_ToolLoop(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse("call_1", searchToolName, `{"query":"migration steps"}`),
		textResponse("The runbook lists three migration steps."),
	}}
	searcher := &fakeSearcher{hits: []vectorstore.SearchResult{
		searchHit("step one: back up", "/srv/corpus/work/runbook.md"),
		searchHit("step two: migrate", "/srv/corpus/work/runbook.md"),
	}}
	agent := New(Config{
		Collection:   "work",
		WatchRoot:    "/srv/corpus",
		PublicPrefix: "/Users/me/Documents",
	}, model, searcher, zap.NewNop())

	result, err := agent.Chat(context.Background(), "How do I migrate?")
	require.NoError(t, err)

	assert.Equal(t, "The runbook lists three migration steps.", result.Answer)
	assert.Equal(t, []string{"file:///Users/me/Documents/work/runbook.md"}, result.Links)

	assert.Equal(t, 1, searcher.calls)
	assert.Equal(t, "work", searcher.lastCollection)
	assert.Equal(t, "migration steps", searcher.lastQuery)
	assert.Equal(t, 5, searcher.lastTopK)

	require.Len(t, model.calls, 2)
	second := model.calls[1]
	require.Len(t, second, 4)

	assert.Equal(t, llms.ChatMessageTypeAI, second[2].Role)
	_, hasToolCall := second[2].Parts[0].(llms.ToolCall)
	assert.True(t, hasToolCall, "assistant history entry should carry the tool call")

	content := toolResponseContent(t, second[3])
	assert.Contains(t, content, "[Document 1 - /srv/corpus/work/runbook.md]\nstep one: back up")
	assert.Contains(t, content, "[Document 2 - /srv/corpus/work/runbook.md]\nstep two: migrate")
}

func TestChat_NoHits(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse("call_1", searchToolName, `{"query":"anything"}`),
		textResponse("I could not find that in your documents."),
	}}
	agent := New(Config{Collection: "corpus"}, model, &fakeSearcher{}, zap.NewNop())

	result, err := agent.Chat(context.Background(), "question")
	require.NoError(t, err)

	assert.Empty(t, result.Links)
	require.Len(t, model.calls, 2)
	assert.Equal(t, "No relevant documents found.", toolResponseContent(t, model.calls[1][3]))
}

func TestChat_SearchFailureSurfacesAsNoDocuments(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse("call_1", searchToolName, `{"query":"anything"}`),
		textResponse("answer"),
	}}
	searcher := &fakeSearcher{err: errors.New("store down")}
	agent := New(Config{Collection: "corpus"}, model, searcher, zap.NewNop())

	result, err := agent.Chat(context.Background(), "question")
	require.NoError(t, err)

	assert.Equal(t, "answer", result.Answer)
	assert.Equal(t, "No relevant documents found.", toolResponseContent(t, model.calls[1][3]))
}

func TestChat_MalformedToolArguments(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse("call_1", searchToolName, `{not json`),
		textResponse("answer"),
	}}
	searcher := &fakeSearcher{}
	agent := New(Config{Collection: "corpus"}, model, searcher, zap.NewNop())

	_, err := agent.Chat(context.Background(), "question")
	require.NoError(t, err)

	assert.Equal(t, 0, searcher.calls)
	assert.Equal(t, "No relevant documents found.", toolResponseContent(t, model.calls[1][3]))
}

func TestChat_UnknownToolGetsTextualResponse(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse("call_1", "delete_everything", `{}`),
		textResponse("done"),
	}}
	searcher := &fakeSearcher{}
	agent := New(Config{Collection: "corpus"}, model, searcher, zap.NewNop())

	result, err := agent.Chat(context.Background(), "question")
	require.NoError(t, err)

	assert.Equal(t, "done", result.Answer)
	assert.Equal(t, 0, searcher.calls)
	assert.Equal(t, `unknown tool "delete_everything"`, toolResponseContent(t, model.calls[1][3]))
}

func TestChat_MaxTurnsExceeded(t *testing.T) {
	loop := toolCallResponse("call_1", searchToolName, `{"query":"again"}`)
	model := &scriptedModel{responses: []*llms.ContentResponse{loop, loop, loop}}
	agent := New(Config{Collection: "corpus", MaxTurns: 3}, model, &fakeSearcher{}, zap.NewNop())

	_, err := agent.Chat(context.Background(), "question")
	require.ErrorIs(t, err, ErrMaxTurnsExceeded)
	assert.Len(t, model.calls, 3)
}

func TestChat_ModelError(t *testing.T) {
	model := &scriptedModel{err: errors.New("connection refused")}
	agent := New(Config{Collection: "corpus"}, model, &fakeSearcher{}, zap.NewNop())

	_, err := agent.Chat(context.Background(), "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat model")
}

func TestChat_NoChoices(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		{Choices: nil},
	}}
	agent := New(Config{Collection: "corpus"}, model, &fakeSearcher{}, zap.NewNop())

	_, err := agent.Chat(context.Background(), "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestChat_LinksDeduplicatedAcrossSearches(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse("call_1", searchToolName, `{"query":"first"}`),
		toolCallResponse("call_2", searchToolName, `{"query":"second"}`),
		textResponse("answer"),
	}}
	searcher := &fakeSearcher{hits: []vectorstore.SearchResult{
		searchHit("chunk", "/data/notes/a.txt"),
	}}
	agent := New(Config{Collection: "corpus"}, model, searcher, zap.NewNop())

	result, err := agent.Chat(context.Background(), "question")
	require.NoError(t, err)

	assert.Equal(t, 2, searcher.calls)
	assert.Equal(t, []string{"file:///data/notes/a.txt"}, result.Links)
}

func TestChat_HitWithoutPathRendersUnknown(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse("call_1", searchToolName, `{"query":"orphan"}`),
		textResponse("answer"),
	}}
	searcher := &fakeSearcher{hits: []vectorstore.SearchResult{
		{Content: "orphan chunk", Score: 0.9},
	}}
	agent := New(Config{Collection: "corpus"}, model, searcher, zap.NewNop())

	result, err := agent.Chat(context.Background(), "question")
	require.NoError(t, err)

	assert.Contains(t, toolResponseContent(t, model.calls[1][3]), "[Document 1 - Unknown]")
	assert.Empty(t, result.Links)
}

func TestNewChatModel_Ollama(t *testing.T) {
	llm, err := NewChatModel(BackendConfig{Backend: "ollama", Model: "llama3.1"})
	require.NoError(t, err)
	assert.NotNil(t, llm)
}

func TestNewChatModel_OpenAI(t *testing.T) {
	llm, err := NewChatModel(BackendConfig{
		Backend: "openai",
		BaseURL: "http://localhost:8000/v1",
		Model:   "gpt-4o-mini",
	})
	require.NoError(t, err)
	assert.NotNil(t, llm)
}

func TestNewChatModel_OpenAIRequiresBaseURL(t *testing.T) {
	_, err := NewChatModel(BackendConfig{Backend: "openai", Model: "gpt-4o-mini"})
	require.Error(t, err)
}

func TestNewChatModel_UnknownBackend(t *testing.T) {
	_, err := NewChatModel(BackendConfig{Backend: "anthropic"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown chat backend")
}
