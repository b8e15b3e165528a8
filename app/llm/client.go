package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	ollama "github.com/ollama/ollama/api"

	"github.com/lysyi3m/forum-digest/app/config"
	"github.com/lysyi3m/forum-digest/app/digest"
)

// ErrEmptyExcerpt signals that there was nothing to summarize; the model
// is never called for it.
var ErrEmptyExcerpt = errors.New("nothing to summarize: empty excerpt")

// keepAlive keeps the model resident between sequential topic calls
const keepAlive = 5 * time.Minute

// citationMarkerRe matches excerpt citation markers echoed back verbatim
// by the model into plain-text output.
var citationMarkerRe = regexp.MustCompile(`\[post:\d+ @ [^\]]*\]\s*`)

// Client issues chat requests to a local Ollama server. Each call gets one
// wall-clock budget covering transport and backoff together; transient
// failures are retried with exponential backoff inside that budget.
type Client struct {
	api     *ollama.Client
	model   string
	budget  time.Duration
	system  string
	format  string
	counter TokenCounter
}

func NewClient(baseURL string, httpClient *http.Client, model string, budget time.Duration, system, format string, counter TokenCounter) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama base URL %q: %w", baseURL, err)
	}

	return &Client{
		api:     ollama.NewClient(u, httpClient),
		model:   model,
		budget:  budget,
		system:  system,
		format:  format,
		counter: counter,
	}, nil
}

// Model returns the configured model identifier
func (c *Client) Model() string {
	return c.model
}

// Version probes the inference server's version endpoint. Diagnostics only.
func (c *Client) Version(ctx context.Context) (string, error) {
	version, err := c.api.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to probe inference server version: %w", err)
	}
	return version, nil
}

// Warmup issues one minimal call to force model residency before real
// work begins. The caller decides whether a failure matters.
func (c *Client) Warmup(ctx context.Context) error {
	_, err := c.chat(ctx, digest.BuildPrompt("warmup", "warmup"))
	if err != nil {
		return fmt.Errorf("warmup call failed: %w", err)
	}
	return nil
}

// Summarize sends the title and excerpt to the model and returns the
// validated payload with the prompt hash and local token counts. An empty
// excerpt returns ErrEmptyExcerpt without calling the model.
func (c *Client) Summarize(ctx context.Context, topicID int64, title, excerpt string) (*Result, error) {
	if strings.TrimSpace(excerpt) == "" {
		return nil, ErrEmptyExcerpt
	}

	prompt := digest.BuildPrompt(title, excerpt)

	raw, err := c.chat(ctx, prompt)
	if err != nil {
		return nil, err
	}

	payload, err := c.validate(raw)
	if err != nil {
		return nil, err
	}

	return &Result{
		TopicID:      topicID,
		Summary:      payload,
		Model:        c.model,
		PromptHash:   digest.PromptHash(topicID, c.model, prompt),
		InputTokens:  c.counter.Count(c.system) + c.counter.Count(prompt),
		OutputTokens: c.counter.Count(raw),
	}, nil
}

// chat performs the retrying chat call. The deadline is computed once at
// entry; backoff attempts stop when it expires.
func (c *Client) chat(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	stream := false
	req := &ollama.ChatRequest{
		Model:  c.model,
		Stream: &stream,
		Messages: []ollama.Message{
			{Role: "system", Content: c.system},
			{Role: "user", Content: prompt},
		},
		KeepAlive: &ollama.Duration{Duration: keepAlive},
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.budget

	var content strings.Builder
	attempt := 0

	op := func() error {
		attempt++
		content.Reset()

		err := c.api.Chat(callCtx, req, func(resp ollama.ChatResponse) error {
			content.WriteString(resp.Message.Content)
			return nil
		})
		if err == nil {
			return nil
		}

		var statusErr ollama.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 {
			// Client errors will not heal on retry
			return backoff.Permanent(fmt.Errorf("http %d: %s", statusErr.StatusCode, statusErr.ErrorMessage))
		}

		slog.Debug("Chat attempt failed, will retry within budget", "attempt", attempt, "error", err)
		return fmt.Errorf("chat request failed: %w", err)
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, callCtx)); err != nil {
		if callCtx.Err() != nil && ctx.Err() == nil {
			return "", fmt.Errorf("call budget of %s exceeded: %w", c.budget, err)
		}
		return "", err
	}

	return content.String(), nil
}

// validate checks the raw model output against the deployment's single
// output schema and returns the payload to store or render.
func (c *Client) validate(raw string) (string, error) {
	switch c.format {
	case config.FormatJSON:
		var structured StructuredSummary
		decoder := json.NewDecoder(strings.NewReader(raw))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&structured); err != nil {
			return "", fmt.Errorf("malformed summary payload: %w", err)
		}
		if structured.Headline == "" && len(structured.Bullets) == 0 {
			return "", fmt.Errorf("malformed summary payload: empty headline and bullets")
		}
		return raw, nil

	case config.FormatText:
		cleaned := citationMarkerRe.ReplaceAllString(raw, "")
		cleaned = strings.TrimSpace(cleaned)
		if cleaned == "" {
			return "", fmt.Errorf("malformed summary payload: empty response")
		}
		return cleaned, nil

	default:
		return "", fmt.Errorf("unknown output format %q", c.format)
	}
}
