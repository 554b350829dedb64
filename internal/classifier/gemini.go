package classifier

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/recurring-tracker/internal/domain"
	"github.com/dvloznov/recurring-tracker/internal/logger"
)

// DefaultModelName is the Gemini model used for classification.
const DefaultModelName = "gemini-2.5-flash"

// ContentGenerator is the subset of the genai models API the classifier
// needs. *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClassifier asks Gemini for an obligation type and falls back to
// keyword rules when the model fails or answers with an unknown label.
type GeminiClassifier struct {
	models   ContentGenerator
	model    string
	fallback *KeywordClassifier
}

// NewGeminiClassifier creates a classifier backed by a new genai client.
// Credentials come from the environment, as for every genai client.
func NewGeminiClassifier(ctx context.Context, model string) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClassifier: create genai client: %w", err)
	}
	return NewGeminiClassifierWithGenerator(client.Models, model), nil
}

// NewGeminiClassifierWithGenerator creates a classifier around an existing
// generator. An empty model selects DefaultModelName.
func NewGeminiClassifierWithGenerator(models ContentGenerator, model string) *GeminiClassifier {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiClassifier{
		models:   models,
		model:    model,
		fallback: NewKeywordClassifier(),
	}
}

// Classify implements obligations.Classifier.
func (g *GeminiClassifier) Classify(ctx context.Context, merchantName string) (domain.ObligationType, error) {
	log := logger.FromContext(ctx)

	// keyword hits are cheap and reliable, so only ask the model otherwise
	if t := classifyByKeyword(merchantName); t != domain.ObligationOther {
		return t, nil
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildPrompt(merchantName)}},
		},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		log.Warn().Err(err).Str("merchant", logger.TruncateMerchant(merchantName)).Msg("Gemini classification failed")
		return g.fallback.Classify(ctx, merchantName)
	}

	label := cleanLabel(resp.Text())
	t, ok := domain.ParseObligationType(label)
	if !ok {
		log.Warn().Str("label", label).Str("merchant", logger.TruncateMerchant(merchantName)).Msg("Gemini returned unknown obligation type")
		return g.fallback.Classify(ctx, merchantName)
	}
	return t, nil
}

func buildPrompt(merchantName string) string {
	labels := make([]string, len(domain.ObligationTypes))
	for i, t := range domain.ObligationTypes {
		labels[i] = string(t)
	}

	var b strings.Builder
	b.WriteString("You label recurring payments found in a personal bank account.\n\n")
	b.WriteString("Merchant: " + merchantName + "\n\n")
	b.WriteString("Answer with EXACTLY one of these labels and nothing else:\n")
	b.WriteString(strings.Join(labels, ", ") + "\n\n")
	b.WriteString("If you are unsure, answer \"other\".\n")
	b.WriteString("Do NOT use Markdown, quotes or punctuation.\n")
	return b.String()
}

// cleanLabel strips fences, quotes and trailing punctuation the model may
// add despite instructions.
func cleanLabel(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.Trim(s, "`"))
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[:idx]
	}
	s = strings.Trim(s, " \t\"'.")
	return strings.ToLower(s)
}
