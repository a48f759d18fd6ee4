package interpreter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/louisbranch/agicosmic/internal/services/cosmic/country"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// OpenAIConfig configures the chat completions adapter.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	// Temperature for command interpretation; descriptions run warmer.
	Temperature float64
}

// OpenAI interprets commands with an OpenAI-compatible chat completions API.
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewOpenAI builds the adapter. The SDK's own retries are disabled so the
// retry policy stays in one place.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.2
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
	}, nil
}

// Status reports interpreter mode with the configured model.
func (o *OpenAI) Status() Status {
	return Status{Mode: ModeInterpreter, Model: o.model}
}

// Interpret asks the model for a proposal. Transport problems and unusable
// answers come back as failures.
func (o *OpenAI) Interpret(ctx context.Context, req Request) Outcome {
	system, user, err := BuildPrompt(req)
	if err != nil {
		return Failed(FailureMalformed, err.Error())
	}
	content, err := o.complete(ctx, system, user, o.temperature, true)
	if err != nil {
		return Outcome{Failure: classify(ctx, err)}
	}
	return ParseResponse(content)
}

// Describe asks the model for a prose description of state.
func (o *OpenAI) Describe(ctx context.Context, state country.State) (string, error) {
	system, user, err := BuildDescribePrompt(state)
	if err != nil {
		return "", err
	}
	content, err := o.complete(ctx, system, user, 0.8, false)
	if err != nil {
		return "", classify(ctx, err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", &Failure{Kind: FailureMalformed, Detail: "empty description"}
	}
	return content, nil
}

func (o *OpenAI) complete(ctx context.Context, system, user string, temperature float64, jsonMode bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(temperature),
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", &Failure{Kind: FailureMalformed, Detail: "completion has no choices"}
	}
	return completion.Choices[0].Message.Content, nil
}

// classify maps an SDK error to a failure kind.
func classify(ctx context.Context, err error) *Failure {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Failure{Kind: FailureTimeout, Detail: err.Error()}
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		detail := fmt.Sprintf("upstream status %d", apiErr.StatusCode)
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return &Failure{Kind: FailureRateLimited, Detail: detail}
		case apiErr.StatusCode >= 500:
			return &Failure{Kind: FailureTransport, Detail: detail}
		default:
			// Rejected credentials or model: retrying cannot help.
			return &Failure{Kind: FailureUnavailable, Detail: detail}
		}
	}
	return &Failure{Kind: FailureTransport, Detail: err.Error()}
}
