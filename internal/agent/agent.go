// Package agent runs the retrieval-augmented chat loop.
//
// A conversation starts with a fixed system prompt and the user message.
// Each turn the chat model is offered a single search_documents tool; tool
// calls are executed against the vector store and fed back as tool
// messages until the model answers without calling tools. Links are
// recovered from the accumulated tool output afterwards.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/vectorstore"
)

const systemPrompt = "You are a helpful assistant that answers questions about documents. " +
	"You have access to a search_documents tool that allows you to search through a user's local files. " +
	"When a user asks a question that requires information from their documents, use the search_documents tool. " +
	"After receiving the search results, provide a comprehensive answer based on the retrieved context. " +
	"If you don't find relevant information in the documents, say so clearly. " +
	"Always cite which documents you found the information in."

const (
	searchToolName = "search_documents"

	// noDocumentsFound is what the model sees on an empty or failed
	// search. Tool failures never abort the conversation.
	noDocumentsFound = "No relevant documents found."
)

// ErrMaxTurnsExceeded indicates the model kept requesting tools until the
// configured turn bound ran out.
var ErrMaxTurnsExceeded = errors.New("agent exceeded maximum turns")

// documentPattern recovers file paths from rendered search results.
var documentPattern = regexp.MustCompile(`\[Document \d+ - (.+?)\]`)

// searchTools is the tool set offered to the model on every turn.
var searchTools = []llms.Tool{
	{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        searchToolName,
			Description: "Search through the user's local documents to find relevant information.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query to find relevant documents",
					},
				},
				"required": []string{"query"},
			},
		},
	},
}

// Searcher finds document chunks for a tool query. Satisfied by
// vectorstore.Store.
type Searcher interface {
	Search(ctx context.Context, collection, query string, topK int, scoreThreshold float32, filters map[string]any) ([]vectorstore.SearchResult, error)
}

// Config holds agent settings.
type Config struct {
	// Collection is searched by the search_documents tool.
	Collection string

	// Temperature for the chat model. Defaults to 0.5.
	Temperature float64

	// MaxTurns bounds model calls per conversation. Defaults to 10.
	MaxTurns int

	// SearchTopK is the hit count per tool search. Defaults to 5.
	SearchTopK int

	// WatchRoot and PublicPrefix rewrite link paths, same as the query
	// interface. Both must be set for rewriting to happen.
	WatchRoot    string
	PublicPrefix string
}

// Result is a finished conversation.
type Result struct {
	Answer string   `json:"answer"`
	Links  []string `json:"links"`
}

// Agent drives the tool loop against a chat model.
type Agent struct {
	cfg      Config
	llm      llms.Model
	searcher Searcher
	logger   *zap.Logger
}

// New creates an agent. The chat model comes from NewChatModel or any
// other llms.Model.
func New(cfg Config, llm llms.Model, searcher Searcher, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.5
	}
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = 10
	}
	if cfg.SearchTopK == 0 {
		cfg.SearchTopK = 5
	}
	return &Agent{
		cfg:      cfg,
		llm:      llm,
		searcher: searcher,
		logger:   logger,
	}
}

// Chat answers a user message, searching the corpus as the model sees
// fit. The answer is the first model reply without tool calls; links are
// every distinct document path that appeared in tool output.
func (a *Agent) Chat(ctx context.Context, message string) (Result, error) {
	start := time.Now()

	history := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, message),
	}

	var toolOutputs []string
	for turn := 1; turn <= a.cfg.MaxTurns; turn++ {
		resp, err := a.llm.GenerateContent(ctx, history,
			llms.WithTools(searchTools),
			llms.WithTemperature(a.cfg.Temperature),
		)
		if err != nil {
			chatsTotal.WithLabelValues("error").Inc()
			return Result{}, fmt.Errorf("chat model: %w", err)
		}
		if len(resp.Choices) == 0 {
			chatsTotal.WithLabelValues("error").Inc()
			return Result{}, errors.New("chat model returned no choices")
		}

		choice := resp.Choices[0]
		if len(choice.ToolCalls) == 0 {
			result := Result{
				Answer: choice.Content,
				Links:  a.collectLinks(toolOutputs),
			}
			chatsTotal.WithLabelValues("success").Inc()
			chatDuration.Observe(time.Since(start).Seconds())
			a.logger.Info("chat completed",
				zap.Int("turns", turn),
				zap.Int("searches", len(toolOutputs)),
				zap.Int("links", len(result.Links)),
				zap.Duration("elapsed", time.Since(start)),
			)
			return result, nil
		}

		history = append(history, assistantMessage(choice))
		for _, call := range choice.ToolCalls {
			output := a.executeTool(ctx, call)
			if toolCallName(call) == searchToolName {
				toolOutputs = append(toolOutputs, output)
			}
			history = append(history, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: call.ID,
						Name:       toolCallName(call),
						Content:    output,
					},
				},
			})
		}
	}

	chatsTotal.WithLabelValues("max_turns").Inc()
	return Result{}, fmt.Errorf("%w after %d turns", ErrMaxTurnsExceeded, a.cfg.MaxTurns)
}

// executeTool runs one tool call. Every call gets a textual response so
// the conversation stays well formed for the backend.
func (a *Agent) executeTool(ctx context.Context, call llms.ToolCall) string {
	name := toolCallName(call)
	if name != searchToolName {
		a.logger.Warn("model requested unknown tool", zap.String("tool", name))
		return fmt.Sprintf("unknown tool %q", name)
	}

	var args struct {
		Query string `json:"query"`
	}
	if call.FunctionCall != nil {
		if err := json.Unmarshal([]byte(call.FunctionCall.Arguments), &args); err != nil {
			a.logger.Warn("unparseable tool arguments",
				zap.String("arguments", call.FunctionCall.Arguments),
				zap.Error(err),
			)
			return noDocumentsFound
		}
	}
	if args.Query == "" {
		return noDocumentsFound
	}

	return a.searchDocuments(ctx, args.Query)
}

// searchDocuments renders hits as numbered, path-annotated excerpts.
func (a *Agent) searchDocuments(ctx context.Context, query string) string {
	toolSearches.Inc()
	a.logger.Debug("searching documents", zap.String("query", query))

	hits, err := a.searcher.Search(ctx, a.cfg.Collection, query, a.cfg.SearchTopK, 0, nil)
	if err != nil {
		a.logger.Warn("tool search failed", zap.String("query", query), zap.Error(err))
		return noDocumentsFound
	}
	if len(hits) == 0 {
		return noDocumentsFound
	}

	results := make([]string, 0, len(hits))
	for i, hit := range hits {
		path := "Unknown"
		if p, ok := hit.Metadata["file_path"].(string); ok && p != "" {
			path = p
		}
		results = append(results, fmt.Sprintf("[Document %d - %s]\n%s\n", i+1, path, hit.Content))
	}
	return strings.Join(results, "\n")
}

// collectLinks extracts every document path mentioned in tool output,
// deduplicated in first-seen order.
func (a *Agent) collectLinks(toolOutputs []string) []string {
	seen := make(map[string]struct{})
	var links []string
	for _, output := range toolOutputs {
		for _, match := range documentPattern.FindAllStringSubmatch(output, -1) {
			path := match[1]
			if path == "Unknown" {
				continue
			}
			link := a.link(path)
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			links = append(links, link)
		}
	}
	return links
}

// link renders a document path as a file:// URI, swapping the watch root
// for the public prefix when both are configured.
func (a *Agent) link(path string) string {
	if a.cfg.WatchRoot != "" && a.cfg.PublicPrefix != "" {
		if rest, ok := strings.CutPrefix(path, a.cfg.WatchRoot); ok {
			path = a.cfg.PublicPrefix + rest
		}
	}
	return "file://" + path
}

// assistantMessage rebuilds the model reply as a history entry, tool
// calls included.
func assistantMessage(choice *llms.ContentChoice) llms.MessageContent {
	msg := llms.MessageContent{Role: llms.ChatMessageTypeAI}
	if choice.Content != "" {
		msg.Parts = append(msg.Parts, llms.TextContent{Text: choice.Content})
	}
	for _, call := range choice.ToolCalls {
		msg.Parts = append(msg.Parts, call)
	}
	return msg
}

func toolCallName(call llms.ToolCall) string {
	if call.FunctionCall == nil {
		return ""
	}
	return call.FunctionCall.Name
}
