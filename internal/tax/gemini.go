package tax

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"soberana/docledger/internal/models"
)

const classifyPrompt = `Classify the following Brazilian company expense for tax purposes:
Merchant: %s
Amount: %s
Date: %s

Respond in this format:
Classification: [DEDUCTIBLE, NON_DEDUCTIBLE or REVIEW]
Category: [short expense category]
Justification: [one sentence]
LegalCitation: [the applicable rule, or N/A]
RiskLevel: [LOW, MEDIUM or HIGH]`

// GeminiClassifier asks Gemini to classify an expense and parses the
// labeled-line response shape.
type GeminiClassifier struct {
	apiKey string
	model  string

	client *genai.Client
	gen    *genai.GenerativeModel
}

func NewGeminiClassifier(apiKey, model string) *GeminiClassifier {
	return &GeminiClassifier{apiKey: apiKey, model: model}
}

func (g *GeminiClassifier) ensureClient(ctx context.Context) error {
	if g.client != nil {
		return nil
	}
	if g.apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	g.gen = client.GenerativeModel(g.model)
	return nil
}

func (g *GeminiClassifier) Classify(ctx context.Context, tx models.Transaction) (*models.TaxAnalysis, error) {
	if err := g.ensureClient(ctx); err != nil {
		return nil, err
	}

	date := ""
	if tx.Date != nil {
		date = tx.Date.Format("2006-01-02")
	}
	prompt := fmt.Sprintf(classifyPrompt, tx.MerchantName, tx.Amount.StringFixed(2), date)

	resp, err := g.gen.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini API")
	}

	analysis := parseClassification(fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]))
	analysis.ModelVersion = g.model
	if usage := resp.UsageMetadata; usage != nil {
		analysis.PromptTokens = int(usage.PromptTokenCount)
		analysis.CompletionTokens = int(usage.CandidatesTokenCount)
		analysis.TotalTokens = int(usage.TotalTokenCount)
	}
	return analysis, nil
}

// parseClassification reads the "Label: value" lines the prompt requests.
// Unknown labels are ignored; a missing classification degrades to REVIEW.
func parseClassification(response string) *models.TaxAnalysis {
	analysis := &models.TaxAnalysis{Classification: "REVIEW"}
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Classification:"):
			analysis.Classification = cleanLabelValue(line, "Classification:")
		case strings.HasPrefix(line, "Category:"):
			analysis.Category = cleanLabelValue(line, "Category:")
		case strings.HasPrefix(line, "Justification:"):
			analysis.Justification = cleanLabelValue(line, "Justification:")
		case strings.HasPrefix(line, "LegalCitation:"):
			analysis.LegalCitation = cleanLabelValue(line, "LegalCitation:")
		case strings.HasPrefix(line, "RiskLevel:"):
			analysis.RiskLevel = cleanLabelValue(line, "RiskLevel:")
		}
	}
	return analysis
}

func cleanLabelValue(line, label string) string {
	value := strings.TrimSpace(strings.TrimPrefix(line, label))
	return strings.Trim(value, "[]")
}
