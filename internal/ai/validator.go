package ai

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"

	"cv-rag-platform/internal/config"
)

const validationPrompt = `Eres un asistente de recursos humanos. Lee el siguiente texto extraído de un documento y decide si es un currículum vitae (CV).

Responde en dos líneas exactamente:
ES_CV o NO_ES_CV
Justificación: <una frase breve>

Texto:
%s`

var (
	isCVMarker    = regexp.MustCompile(`\bES_CV\b`)
	notCVMarker   = regexp.MustCompile(`\bNO_ES_CV\b`)
	justification = regexp.MustCompile(`(?is)justificaci[oó]n\s*:\s*(.*)`)
)

// ParseVerdict reads a model reply. The document is a CV when the reply
// carries ES_CV and not NO_ES_CV.
func ParseVerdict(reply string) (bool, string) {
	isCV := isCVMarker.MatchString(reply) && !notCVMarker.MatchString(reply)

	why := strings.TrimSpace(reply)
	if m := justification.FindStringSubmatch(reply); m != nil {
		why = strings.TrimSpace(m[1])
	}
	return isCV, why
}

type textGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

// CVValidator asks a generative model whether extracted text is a CV.
type CVValidator struct {
	gen   textGenerator
	guard *Guard
	model string
}

func NewCVValidator(ctx context.Context, cfg *config.Config) (*CVValidator, error) {
	var gen textGenerator
	switch cfg.ValidationProvider {
	case "google", "":
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			return nil, err
		}
		gen = &geminiGenerator{client: client, model: cfg.ValidationModel}
	case "openai":
		gen = &openAIGenerator{client: openai.NewClientWithConfig(openAIConfig(cfg)), model: cfg.ValidationModel}
	default:
		return nil, fmt.Errorf("unknown validation provider: %s", cfg.ValidationProvider)
	}

	return &CVValidator{
		gen:   gen,
		guard: NewGuard("cv-validation", GenerationLimits(cfg.LLMTier)),
		model: cfg.ValidationModel,
	}, nil
}

func (v *CVValidator) Validate(ctx context.Context, text string) (bool, string, error) {
	ctx, span := otel.Tracer("cv-validator").Start(ctx, "validator.validate")
	defer span.End()

	prompt := fmt.Sprintf(validationPrompt, text)
	span.SetAttributes(
		attribute.String("validator.model", v.model),
		attribute.Int("validator.estimated_tokens", estimateTokens(prompt)),
	)

	result, err := v.guard.Do(ctx, estimateTokens(prompt), func(ctx context.Context) (interface{}, error) {
		return v.gen.Generate(ctx, prompt)
	})
	if err != nil {
		span.RecordError(err)
		return false, "", err
	}

	isCV, why := ParseVerdict(result.(string))
	span.SetAttributes(attribute.Bool("validator.is_cv", isCV))
	return isCV, why, nil
}

func (v *CVValidator) Close() error {
	return v.gen.Close()
}

type geminiGenerator struct {
	client *genai.Client
	model  string
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0)
	model.SetMaxOutputTokens(256)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

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
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response from %s", g.model)
	}
	return sb.String(), nil
}

func (g *geminiGenerator) Close() error {
	return g.client.Close()
}

type openAIGenerator struct {
	client *openai.Client
	model  string
}

func (g *openAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     g.model,
		MaxTokens: 256,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from %s", g.model)
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *openAIGenerator) Close() error {
	return nil
}
