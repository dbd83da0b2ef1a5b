package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/noema-ai/noema/internal/model"
)

func (s *Server) registerTools() {
	// noema_teach — feed a statement into the knowledge base.
	s.mcpServer.AddTool(
		mcplib.NewTool("noema_teach",
			mcplib.WithDescription(`Teach Noema a fact or statement.

WHEN TO USE: When you have information the agent should remember —
facts, preferences, corrections. Noema starts with an empty knowledge
base and only knows what it has been taught.

Teaching a statement that contradicts an earlier one replaces it: the
newest statement wins and the old fact is retired. The response reports
any replacements along with the message UIDs the confirmation rests on.

EXAMPLE: text="The capital of France is Paris", user_id="alice"`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("text",
				mcplib.Description("The statement to teach, in natural language"),
				mcplib.Required(),
			),
			mcplib.WithString("user_id",
				mcplib.Description("Whose knowledge base to write to"),
				mcplib.Required(),
			),
		),
		s.handleTeach,
	)

	// noema_ask — query the knowledge base.
	s.mcpServer.AddTool(
		mcplib.NewTool("noema_ask",
			mcplib.WithDescription(`Ask Noema a question answered only from taught knowledge.

WHEN TO USE: When you want an answer grounded strictly in what this
user has previously taught. Noema never answers from general knowledge;
if nothing relevant was taught it says so plainly.

WHAT YOU GET BACK:
- response: the answer with [source: N] citations
- references: the message UIDs the answer rests on
- reasoning: a trace of the retrieval steps taken

EXAMPLE: text="What is the capital of France?", user_id="alice"`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("text",
				mcplib.Description("The question to ask, in natural language"),
				mcplib.Required(),
			),
			mcplib.WithString("user_id",
				mcplib.Description("Whose knowledge base to answer from"),
				mcplib.Required(),
			),
		),
		s.handleAsk,
	)
}

func (s *Server) handleTeach(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return s.dispatch(ctx, request)
}

func (s *Server) handleAsk(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return s.dispatch(ctx, request)
}

// dispatch feeds the tool arguments through the agent. Both tools share the
// message pipeline; the agent's own intent router decides whether the text
// teaches or asks, so a question passed to noema_teach still gets answered.
func (s *Server) dispatch(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	text := request.GetString("text", "")
	if text == "" {
		return errorResult("text is required"), nil
	}
	userID := request.GetString("user_id", "")
	if userID == "" {
		return errorResult("user_id is required"), nil
	}

	resp, err := s.agent.Handle(ctx, model.MessageRequest{Text: text, UserID: userID})
	if err != nil {
		return errorResult(err.Error()), nil
	}

	data, _ := json.MarshalIndent(resp, "", "  ")
	return textResult(string(data)), nil
}
