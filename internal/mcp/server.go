package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const ragQueryDescription = "Uses a RAG model to find context in indexed documents " +
	"(PDF, CSV, DOCX, XLSX, PPTX, HTML, MD, TXT). Documents are organized in pools; " +
	"pass a pool name to scope the search or leave it empty for the default pool. " +
	"The tool returns a list of relevant documents and, separately, the context " +
	"retrieved from them. The links are URIs pointing directly at the documents. " +
	"Always provide those links when answering: every major statement based on the " +
	"retrieved context must cite its source document."

type ragQueryInput struct {
	Text string `json:"text" jsonschema:"the text context to find"`
	Pool string `json:"pool,omitempty" jsonschema:"the document pool to search in; empty searches the default pool"`
}

type ragQueryOutput struct {
	Links  []string `json:"links" jsonschema:"links to the documents the context came from"`
	Output string   `json:"output" jsonschema:"the retrieved context"`
}

// Server bridges MCP clients to a corpusd daemon.
type Server struct {
	mcp     *mcp.Server
	client  *Client
	metrics *Metrics
	logger  *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "corpusd").
	Name string

	// Version is the server version (default: "0.1.0").
	Version string

	// DaemonURL is the corpusd HTTP API base address
	// (default: "http://localhost:8001").
	DaemonURL string

	// Timeout bounds each daemon request.
	Timeout time.Duration

	// Logger for structured logging.
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:      "corpusd",
		Version:   "0.1.0",
		DaemonURL: "http://localhost:8001",
		Timeout:   30 * time.Second,
		Logger:    zap.NewNop(),
	}
}

// NewServer creates the MCP server and registers its tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Name == "" {
		cfg.Name = "corpusd"
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}
	if cfg.DaemonURL == "" {
		cfg.DaemonURL = "http://localhost:8001"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:     mcpServer,
		client:  NewClient(cfg.DaemonURL, cfg.Timeout),
		metrics: NewMetrics(cfg.Logger),
		logger:  cfg.Logger,
	}

	s.registerTools()

	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rag_query",
		Description: ragQueryDescription,
	}, s.handleRAGQuery)
}

// handleRAGQuery forwards the search to the daemon and renders the
// answer as two text blocks: the file links, then the context.
func (s *Server) handleRAGQuery(ctx context.Context, _ *mcp.CallToolRequest, args ragQueryInput) (*mcp.CallToolResult, ragQueryOutput, error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, "rag_query")
	var toolErr error
	defer func() {
		s.metrics.DecrementActive(ctx, "rag_query")
		s.metrics.RecordInvocation(ctx, "rag_query", time.Since(start), toolErr)
	}()

	if args.Text == "" {
		toolErr = fmt.Errorf("text is required")
		return nil, ragQueryOutput{}, toolErr
	}

	s.logger.Info("rag_query",
		zap.String("pool", args.Pool),
		zap.Int("text_len", len(args.Text)),
	)

	result, err := s.client.Query(ctx, args.Text, args.Pool)
	if err != nil {
		toolErr = err
		return nil, ragQueryOutput{}, toolErr
	}

	output := ragQueryOutput{
		Links:  result.Links,
		Output: result.Output,
	}
	if output.Links == nil {
		output.Links = []string{}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: renderLinks(output.Links)},
			&mcp.TextContent{Text: "# Relevant context:\n\n" + output.Output},
		},
	}, output, nil
}

// renderLinks formats document links as a markdown list.
func renderLinks(links []string) string {
	var b strings.Builder
	b.WriteString("# Relevant files:\n\n")
	for i, link := range links {
		if i > 0 {
			b.WriteByte('\n')
		}
		display := strings.TrimPrefix(link, "file://")
		fmt.Fprintf(&b, "* [%s](%s)", display, link)
	}
	return b.String()
}

// Run starts the MCP server on the stdio transport and blocks until the
// client disconnects or ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
