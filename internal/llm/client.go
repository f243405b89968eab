package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"cleanroom/internal/config"
	"cleanroom/internal/metrics"
	"cleanroom/internal/models"
)

// Client wraps the OpenAI chat-completions API for clustering and mapping
// calls. All methods block on the network and honor the passed context.
type Client struct {
	api         openai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

// New builds a client from the LLM config section.
func New(cfg config.LLMConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		baseURL := cfg.BaseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		api:         openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     timeout,
	}
}

// Complete sends a single-turn prompt and returns the text response.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, "generic")
}

func (c *Client) complete(ctx context.Context, prompt, kind string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.temperature),
	})
	metrics.LLMRequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("calling model: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		metrics.LLMRequestsTotal.WithLabelValues(kind, "empty").Inc()
		return "", fmt.Errorf("empty response from model")
	}
	metrics.LLMRequestsTotal.WithLabelValues(kind, "ok").Inc()
	return completion.Choices[0].Message.Content, nil
}

// ClusterColumns asks the model to partition the sampled columns into
// groups of like data. The validated result covers every input column
// exactly once.
func (c *Client) ClusterColumns(ctx context.Context, cols []ColumnSample) ([][]string, error) {
	if len(cols) < 2 {
		return nil, fmt.Errorf("need at least two columns to cluster")
	}
	response, err := c.complete(ctx, buildClusteringPrompt(cols), "cluster")
	if err != nil {
		return nil, err
	}
	known := make([]string, len(cols))
	for i, col := range cols {
		known[i] = col.Column
	}
	clusters, err := ParseClusterResponse(response, known)
	if err != nil {
		metrics.ResponseRepairsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.ResponseRepairsTotal.WithLabelValues("ok").Inc()
	return clusters, nil
}

// ProposeMapping asks for a canonical mapping over the given distinct
// values. A *ParseError result still carries the raw response for manual
// handling.
func (c *Client) ProposeMapping(ctx context.Context, values []string, instructions, columnID string) ([]models.MappingEntry, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("no values to map for %s", columnID)
	}
	response, err := c.complete(ctx, buildInitialMappingPrompt(values, instructions), "mapping")
	if err != nil {
		return nil, err
	}
	entries, err := ParseMappingResponse(response, columnID)
	if err != nil {
		metrics.ResponseRepairsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.ResponseRepairsTotal.WithLabelValues("ok").Inc()
	return entries, nil
}

// RefineMapping reruns a classification with the reviewer feedback folded
// into the prompt.
func (c *Client) RefineMapping(ctx context.Context, entries []models.MappingEntry, feedback []models.Feedback, columnID string) ([]models.MappingEntry, error) {
	feedbackJSON, err := json.MarshalIndent(feedback, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding feedback: %w", err)
	}
	prompt := buildRefinementPrompt(FormatMappingLines(entries), string(feedbackJSON))
	response, err := c.complete(ctx, prompt, "refine")
	if err != nil {
		return nil, err
	}
	refined, err := ParseMappingResponse(response, columnID)
	if err != nil {
		metrics.ResponseRepairsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.ResponseRepairsTotal.WithLabelValues("ok").Inc()
	return refined, nil
}
