package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"docqa-platform/internal/logger"
	"docqa-platform/internal/telemetry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// GeminiOptions configures a GeminiClient.
type GeminiOptions struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Tier           string
	Timeout        time.Duration
}

// GeminiClient implements Generator and Embedder on top of the Gemini API.
// Every call passes the token budget, the request limiter and the circuit
// breaker exactly once; nothing is retried.
type GeminiClient struct {
	client         *genai.Client
	modelName      string
	embeddingModel string
	timeout        time.Duration
	breaker        *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	tokenCounter   *TokenCounter
	metrics        *telemetry.Metrics
}

var _ Generator = (*GeminiClient)(nil)

func NewGeminiClient(ctx context.Context, opts GeminiOptions, metrics *telemetry.Metrics) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(opts.Tier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	// RPM limit with some buffer
	burst := limits.RPM / 10
	if burst < 1 {
		burst = 1
	}
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), burst)

	return &GeminiClient{
		client:         client,
		modelName:      opts.Model,
		embeddingModel: opts.EmbeddingModel,
		timeout:        opts.Timeout,
		breaker:        breaker,
		rateLimiter:    rateLimiter,
		tokenCounter:   NewTokenCounter(limits),
		metrics:        metrics,
	}, nil
}

// Complete sends the prompt and returns the whole answer text.
func (gc *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.complete")
	defer span.End()

	ctx, cancel := gc.withTimeout(ctx)
	defer cancel()

	system, history, parts, err := toGenaiContents(req.Messages)
	if err != nil {
		return "", err
	}
	if err := gc.admit(ctx, span, req); err != nil {
		gc.metrics.RecordLLMCall("complete", false)
		return "", err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		cs := gc.newModel(system, req).StartChat()
		cs.History = history
		return cs.SendMessage(ctx, parts...)
	})
	if err != nil {
		err = mapBreakerError(err)
		span.SetAttributes(
			attribute.Bool("gemini.error", true),
			attribute.String("gemini.error_message", err.Error()),
		)
		gc.metrics.RecordLLMCall("complete", false)
		return "", err
	}

	resp := result.(*genai.GenerateContentResponse)
	tokens := extractTokenUsage(resp)
	gc.tokenCounter.RecordUsage(tokens, 1)
	gc.metrics.RecordTokensUsed(int64(tokens), gc.modelName)
	gc.metrics.RecordLLMCall("complete", true)
	span.SetAttributes(attribute.Int("gemini.actual_tokens", tokens))

	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Stream forwards response fragments in arrival order. The breaker guards
// the request up to the first fragment; later failures end the stream with
// an error fragment.
func (gc *GeminiClient) Stream(ctx context.Context, req CompletionRequest) <-chan Fragment {
	out := make(chan Fragment)

	go func() {
		defer close(out)

		tracer := otel.Tracer("gemini-client")
		ctx, span := tracer.Start(ctx, "gemini.stream")
		defer span.End()

		ctx, cancel := gc.withTimeout(ctx)
		defer cancel()

		send := func(f Fragment) bool {
			select {
			case out <- f:
				return true
			case <-ctx.Done():
				return false
			}
		}
		fail := func(err error) {
			span.SetAttributes(attribute.Bool("gemini.error", true))
			gc.metrics.RecordLLMCall("stream", false)
			send(Fragment{Err: err})
		}

		system, history, parts, err := toGenaiContents(req.Messages)
		if err != nil {
			fail(err)
			return
		}
		if err := gc.admit(ctx, span, req); err != nil {
			fail(err)
			return
		}

		cs := gc.newModel(system, req).StartChat()
		cs.History = history
		iter := cs.SendMessageStream(ctx, parts...)

		first, err := gc.breaker.Execute(func() (interface{}, error) {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return (*genai.GenerateContentResponse)(nil), nil
			}
			return resp, err
		})
		if err != nil {
			fail(mapBreakerError(err))
			return
		}

		produced := 0
		resp, _ := first.(*genai.GenerateContentResponse)
		for resp != nil {
			if text := responseText(resp); text != "" {
				produced += len(text)
				if !send(Fragment{Text: text}) {
					return
				}
			}
			resp, err = iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				fail(err)
				return
			}
		}

		tokens := estimateTokens(req.Messages) + produced/4
		gc.tokenCounter.RecordUsage(tokens, 1)
		gc.metrics.RecordTokensUsed(int64(tokens), gc.modelName)
		gc.metrics.RecordLLMCall("stream", true)
		span.SetAttributes(attribute.Int("gemini.streamed_chars", produced))
	}()

	return out
}

// admit checks the token budget and waits on the request limiter.
func (gc *GeminiClient) admit(ctx context.Context, span trace.Span, req CompletionRequest) error {
	estimated := estimateTokens(req.Messages)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimated),
		attribute.Int("gemini.messages", len(req.Messages)),
		attribute.String("gemini.model", gc.modelName),
	)

	if !gc.tokenCounter.CanConsume(estimated, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return ErrRateLimited
	}
	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return err
	}
	return nil
}

func (gc *GeminiClient) newModel(system string, req CompletionRequest) *genai.GenerativeModel {
	model := gc.client.GenerativeModel(gc.modelName)
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	return model
}

func (gc *GeminiClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if gc.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, gc.timeout)
}

func mapBreakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// toGenaiContents splits a prompt into the system instruction, the chat
// history and the parts of the final user message.
func toGenaiContents(messages []Message) (string, []*genai.Content, []genai.Part, error) {
	var system []string
	var turns []Message
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != RoleUser {
		return "", nil, nil, ErrNoUserMessage
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	last := []genai.Part{genai.Text(turns[len(turns)-1].Content)}
	return strings.Join(system, "\n\n"), history, last, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

// Extract token usage from Gemini response
func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}

	// Average is ~4 characters per token for Gemini
	estimated := len(responseText(resp)) / 4
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
