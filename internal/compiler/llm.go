package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
)

// Completer sends one system/user prompt pair to a language model.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// AnthropicCompleter implements Completer with the Anthropic Messages API.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicCompleter creates a client. An empty apiKey falls back to
// the ANTHROPIC_API_KEY environment variable.
func NewAnthropicCompleter(apiKey string, model anthropic.Model, maxTokens int64) *AnthropicCompleter {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &AnthropicCompleter{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Complete returns the first text block of the response.
func (c *AnthropicCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		slog.Error("anthropic call failed", "duration", time.Since(start), "error", err)
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	slog.Debug("anthropic call completed", "duration", time.Since(start), "stop_reason", msg.StopReason)

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("no text content in response")
}

// LLMDrafter asks a language model for a draft. Its output is untrusted
// and goes through the same cleanup and policy passes as any other draft.
type LLMDrafter struct {
	llm Completer
}

// NewLLMDrafter returns a drafter backed by llm.
func NewLLMDrafter(llm Completer) *LLMDrafter {
	return &LLMDrafter{llm: llm}
}

func (d *LLMDrafter) Name() string { return string(SourceLLM) }

func (d *LLMDrafter) Draft(ctx context.Context, req DraftRequest) (string, error) {
	out, err := d.llm.Complete(ctx, SystemPrompt(req.Schema), UserPrompt(req))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", errors.New("model returned an empty draft")
	}
	return out, nil
}

// SystemPrompt describes the table and the query rules.
func SystemPrompt(s catalog.Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You write PostgreSQL queries against one table, %s, of Argo float profile measurements.\n\n", s.Table)
	b.WriteString("Columns:\n")
	for _, c := range s.Columns {
		fmt.Fprintf(&b, "- %s (%s", c.Name, c.Type)
		if c.Unit != "" {
			fmt.Fprintf(&b, ", %s", c.Unit)
		}
		fmt.Fprintf(&b, "): %s\n", c.Description)
	}

	accepted := joinInts(s.Quality.Accepted)
	b.WriteString("\nRules:\n")
	fmt.Fprintf(&b, "- Write exactly one SELECT statement reading %s. No CTEs, joins, subqueries or other statements.\n", s.Table)
	for _, c := range s.Columns {
		if c.Identifier {
			fmt.Fprintf(&b, "- %s values carry encoding noise. Match them with LIKE '%%<digits>%%', never with = or IN.\n", c.Name)
		}
	}
	if len(s.Quality.Columns) > 0 {
		fmt.Fprintf(&b, "- Keep only good data: %s IN (%s) unless the user asks for unfiltered data.\n",
			strings.Join(s.Quality.Columns, fmt.Sprintf(" IN (%s) AND ", accepted)), accepted)
	}
	fmt.Fprintf(&b, "- Always add LIMIT. Use %d unless the user asks for fewer rows; never exceed %d.\n",
		s.Limits.DefaultRows, s.Limits.MaxRows)
	b.WriteString("- Latitude and longitude are decimal degrees; pressure is in decibars.\n")
	b.WriteString("\nAnswer with a JSON object {\"sql\": \"...\", \"explanation\": \"...\"}.\n")
	return b.String()
}

// UserPrompt carries the question, the analysis and any retrieved context.
func UserPrompt(req DraftRequest) string {
	a := req.Analysis
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", req.Question)
	fmt.Fprintf(&b, "Query type: %s\n", a.Type)
	fmt.Fprintf(&b, "Region: %s", a.Region.Name)
	if a.Region.Bounds != nil {
		r := a.Region.Bounds
		fmt.Fprintf(&b, " (latitude %g to %g, longitude %g to %g)", r.LatMin, r.LatMax, r.LonMin, r.LonMax)
	}
	b.WriteString("\n")
	if len(a.Parameters) > 0 {
		fmt.Fprintf(&b, "Parameters: %s\n", strings.Join(a.Parameters, ", "))
	}
	fmt.Fprintf(&b, "Time period: %s\n", a.TimePeriod.Label)
	if a.DepthZone != nil {
		fmt.Fprintf(&b, "Depth zone: %s\n", a.DepthZone.Name)
	}
	if len(a.Signals.FloatIDs) > 0 {
		fmt.Fprintf(&b, "Float ids: %s\n", strings.Join(a.Signals.FloatIDs, ", "))
	}
	if strings.TrimSpace(req.Context) != "" {
		fmt.Fprintf(&b, "\nRelevant context:\n%s\n", req.Context)
	}
	return b.String()
}
