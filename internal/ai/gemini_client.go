package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"rag-document-platform/internal/logger"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// OracleError marks a generation or verification call that failed. The
// query workflow converts these into its sentinel failure response instead
// of propagating them.
type OracleError struct {
	Stage string
	Err   error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle call failed (%s): %v", e.Stage, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// GeminiClient wraps the Gemini API with a circuit breaker, a client-side
// rate limiter and token accounting.
type GeminiClient struct {
	client       *genai.Client
	breaker      *gobreaker.CircuitBreaker
	rateLimiter  *rate.Limiter
	tokenCounter *TokenCounter
	model        string
	temperature  float32
	tier         string
}

type TokenCounter struct {
	mu              sync.Mutex
	minuteTokens    int
	dailyTokens     int
	minuteRequests  int
	dailyRequests   int
	lastMinuteReset time.Time
	lastDayReset    time.Time
	limits          RateLimits
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func NewGeminiClient(apiKey, model string, temperature float64, tier string) (*GeminiClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(tier)

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
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), maxInt(limits.RPM/10, 1))

	return &GeminiClient{
		client:       client,
		breaker:      breaker,
		rateLimiter:  rateLimiter,
		tokenCounter: &TokenCounter{limits: limits},
		model:        model,
		temperature:  float32(temperature),
		tier:         tier,
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// GenerateAnswer produces a candidate answer grounded only in the supplied
// context chunks. The prompt instructs the model to say explicitly when the
// context is insufficient rather than invent an answer.
func (gc *GeminiClient) GenerateAnswer(ctx context.Context, question string, contextChunks []string) (string, error) {
	prompt := fmt.Sprintf(
		"You are a helpful AI assistant. Answer the user's question based solely on the context provided below. "+
			"If the context does not contain an answer, state that and do not try to make one up.\n\nContext:\n---\n%s\n---\n\nQuestion: %s",
		strings.Join(contextChunks, "\n\n"), question)

	text, err := gc.generateText(ctx, "generate", prompt, nil)
	if err != nil {
		return "", &OracleError{Stage: "generate", Err: err}
	}
	return text, nil
}

// GenerateGeneral produces the rewrite-stage answer: it discloses that the
// documents lacked sufficient information and answers from general
// knowledge instead.
func (gc *GeminiClient) GenerateGeneral(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(
		"You are a helpful assistant. Answer the user's question. Inform them that sufficient information was not "+
			"found in the provided documents to give a precise answer, but you will attempt to answer based on your "+
			"general knowledge.\n\nQuestion: %s", question)

	text, err := gc.generateText(ctx, "rewrite", prompt, nil)
	if err != nil {
		return "", &OracleError{Stage: "rewrite", Err: err}
	}
	return text, nil
}

// VerifyGrounding asks the model, in structured-output mode, whether the
// candidate answer is fully supported by the context. A response that does
// not honor the structured contract is an oracle failure, never a guess.
func (gc *GeminiClient) VerifyGrounding(ctx context.Context, question, answer string, contextChunks []string) (bool, error) {
	prompt := fmt.Sprintf(
		"You are an AI judge. Your task is to evaluate whether the generated answer is fully based on the provided "+
			"context. Respond with a boolean value indicating relevance.\n\nContext:\n---\n%s\n---\n\nQuestion: %s\n\nGenerated Answer: %s",
		strings.Join(contextChunks, "\n\n"), question, answer)

	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"is_grounded": {
				Type:        genai.TypeBoolean,
				Description: "True if the answer is fully based on the context, false otherwise.",
			},
		},
		Required: []string{"is_grounded"},
	}

	text, err := gc.generateText(ctx, "verify", prompt, schema)
	if err != nil {
		return false, &OracleError{Stage: "verify", Err: err}
	}

	var decision struct {
		IsGrounded *bool `json:"is_grounded"`
	}
	if err := json.Unmarshal([]byte(text), &decision); err != nil || decision.IsGrounded == nil {
		return false, &OracleError{Stage: "verify", Err: fmt.Errorf("structured output contract violated: %q", text)}
	}
	return *decision.IsGrounded, nil
}

func (gc *GeminiClient) generateText(ctx context.Context, stage, prompt string, schema *genai.Schema) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini."+stage)
	defer span.End()

	estimatedTokens := len(prompt) / 4
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimatedTokens),
		attribute.String("gemini.model", gc.model),
	)

	if !gc.tokenCounter.CanConsume(estimatedTokens, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", errors.New("rate limit exceeded: wait before retry")
	}

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(gc.temperature)
		model.SetMaxOutputTokens(2048)
		if schema != nil {
			model.ResponseMIMEType = "application/json"
			model.ResponseSchema = schema
		}

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			span.SetAttributes(attribute.String("gemini.error_message", err.Error()))
			return nil, err
		}

		gc.tokenCounter.RecordUsage(extractTokenUsage(resp), 1)
		return resp, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}

	text := responseText(result.(*genai.GenerateContentResponse))
	if text == "" {
		return "", errors.New("empty response from model")
	}
	span.SetAttributes(attribute.Bool("gemini.success", true))
	return text, nil
}

func (tc *TokenCounter) CanConsume(tokens, requests int) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := time.Now()

	// Reset counters if time windows expired
	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}

	if now.Sub(tc.lastDayReset) >= 24*time.Hour {
		tc.dailyTokens = 0
		tc.dailyRequests = 0
		tc.lastDayReset = now
	}

	if tc.minuteRequests+requests > tc.limits.RPM {
		return false
	}
	if tc.minuteTokens+tokens > tc.limits.TPM {
		return false
	}
	if tc.dailyRequests+requests > tc.limits.RPD {
		return false
	}

	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
	tc.dailyTokens += tokens
	tc.dailyRequests += requests
}

// Extract token usage from Gemini response
func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}

	// Fallback: ~4 characters per token
	estimated := len(responseText(resp)) / 4
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
