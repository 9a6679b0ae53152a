package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"soberana/docledger/internal/dateutils"
	"soberana/docledger/internal/logging"
	"soberana/docledger/internal/models"
	"soberana/docledger/internal/parsererror"
)

const extractionPrompt = `Analyze the following financial document text and extract its key fields.

Document text:
%s

Respond with a single JSON object, no markdown, in exactly this shape:
{"doc_type": "RECEIPT" or "BANK_STATEMENT", "date": "YYYY-MM-DD", "amount": "1234.56", "merchant_or_bank": "name"}

Use null for any field you cannot determine. The amount uses a dot as the
decimal separator and no thousands separators.`

// geminiResponse is the JSON shape the prompt requests.
type geminiResponse struct {
	DocType        string `json:"doc_type"`
	Date           string `json:"date"`
	Amount         string `json:"amount"`
	MerchantOrBank string `json:"merchant_or_bank"`
}

// GeminiExtractor calls the Gemini API. The client is created lazily on the
// first extraction so that construction never needs network access.
type GeminiExtractor struct {
	apiKey  string
	model   string
	timeout time.Duration
	log     logging.Logger

	client *genai.Client
	gen    *genai.GenerativeModel
}

func NewGeminiExtractor(apiKey, model string, timeout time.Duration, log logging.Logger) *GeminiExtractor {
	if log == nil {
		log = logging.GetLogger()
	}
	return &GeminiExtractor{
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
		log:     log,
	}
}

func (g *GeminiExtractor) ensureClient(ctx context.Context) error {
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

// Extract sends the document text to Gemini and decodes the structured
// response. A malformed model response is an extraction error, never a
// crash.
func (g *GeminiExtractor) Extract(ctx context.Context, rawText string) (*models.ParseResult, error) {
	if err := g.ensureClient(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.gen.GenerateContent(ctx, genai.Text(fmt.Sprintf(extractionPrompt, rawText)))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &parsererror.DataExtractionError{FieldName: "response", Reason: "empty response from Gemini"}
	}

	text := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	result, err := decodeResponse(text)
	if err != nil {
		g.log.WithError(err).Warn("Gemini returned unparseable payload")
		return nil, err
	}

	g.log.Info("AI extraction succeeded",
		logging.Field{Key: "doc_type", Value: string(result.DocType)},
		logging.Field{Key: "merchant", Value: result.MerchantOrBank})
	return result, nil
}

// decodeResponse parses the model output, tolerating markdown code fences
// around the JSON object.
func decodeResponse(text string) (*models.ParseResult, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var payload geminiResponse
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, &parsererror.DataExtractionError{
			FieldName: "response",
			Reason:    fmt.Sprintf("invalid JSON from model: %v", err),
		}
	}

	result := &models.ParseResult{MerchantOrBank: payload.MerchantOrBank}

	switch strings.ToUpper(payload.DocType) {
	case string(models.DocTypeBankStatement):
		result.DocType = models.DocTypeBankStatement
	default:
		result.DocType = models.DocTypeReceipt
	}

	if payload.Date != "" && payload.Date != "null" {
		if t, err := dateutils.ParseDayFirst(payload.Date); err == nil {
			result.Date = &t
		}
	}
	if payload.Amount != "" && payload.Amount != "null" {
		if v, err := models.ParseAmount(payload.Amount); err == nil {
			result.Amount = &v
		}
	}
	return result, nil
}
