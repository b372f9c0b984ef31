package services

import (
	"context"
	"strings"
	"time"

	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/clients/openai"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/logger"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/types"
)

const analysisSchemaName = "conversation_sales_analysis"

const systemPrompt = `You are a sales intelligence analyst for a business that sells over WhatsApp.
You will receive the transcript of one customer conversation. Lines prefixed
with "Me:" were sent by the business; all other lines were sent by the
customer. Extract the sales signals described by the response schema.
Rules:
- product_category: the single product family discussed, or "unknown".
- lead_stage: one of new, engaged, qualified, negotiating, closed_won, closed_lost, unknown.
- sentiment: one of positive, neutral, negative, mixed, unknown.
- urgency: one of high, medium, low, none.
- Use null for free-text fields and [] for list fields when the transcript
  gives no signal. Never invent facts that are not in the transcript.
- confidence: your confidence in this extraction, between 0 and 1.`

// AnalysisOutcome is the per-conversation result of one analyze call. A
// failed call still carries a canonical empty Result annotated with its
// failure kind, so it participates in counts but is never persisted.
type AnalysisOutcome struct {
	ChatJID   string
	Result    *types.ConversationAnalysis
	FromCache bool
	Failure   FailureKind
	Err       error
}

// AnalyzerService wraps the AI client behind the fixed prompt/response
// contract.
type AnalyzerService struct {
	log *logger.Logger
	ai  openai.Client
}

func NewAnalyzerService(log *logger.Logger, ai openai.Client) *AnalyzerService {
	return &AnalyzerService{
		log: log.With("service", "AnalyzerService"),
		ai:  ai,
	}
}

// Analyze classifies one transcript. Empty or whitespace-only transcripts
// short-circuit to the canonical empty result without any external call.
func (s *AnalyzerService) Analyze(ctx context.Context, t types.Transcript) AnalysisOutcome {
	if strings.TrimSpace(t.Text) == "" {
		return AnalysisOutcome{
			ChatJID: t.ChatJID,
			Result:  types.NewEmptyAnalysis(t.ChatJID, t.DisplayName, s.ai.Model(), types.ConfidenceEmpty),
		}
	}

	start := time.Now()
	raw, err := s.ai.GenerateJSON(ctx, systemPrompt, t.Text, analysisSchemaName, responseSchema())
	elapsed := time.Since(start)

	if err != nil {
		kind := ClassifyAIError(err)
		s.log.Warn("Analysis call failed", "chat_jid", t.ChatJID, "failure", string(kind), "error", err)
		result := types.NewEmptyAnalysis(t.ChatJID, t.DisplayName, s.ai.Model(), types.ConfidenceError)
		result.ProcessingMs = elapsed.Milliseconds()
		return AnalysisOutcome{ChatJID: t.ChatJID, Result: result, Failure: kind, Err: err}
	}

	result := s.decode(t, raw)
	result.ProcessingMs = elapsed.Milliseconds()
	return AnalysisOutcome{ChatJID: t.ChatJID, Result: result}
}

// decode maps the model's JSON onto the fixed result schema. Absent or
// null fields take schema defaults; enums outside their sets are coerced to
// unknown/none; confidence is clamped to [0,1].
func (s *AnalyzerService) decode(t types.Transcript, raw map[string]any) *types.ConversationAnalysis {
	result := types.NewEmptyAnalysis(t.ChatJID, t.DisplayName, s.ai.Model(), types.ConfidenceUnscored)

	result.ProductCategory = coerceEnum(getString(raw, "product_category"), nil, types.CategoryUnknown)
	result.ProductInterest = getString(raw, "product_interest")
	result.LeadStage = coerceEnum(getString(raw, "lead_stage"), []string{
		types.LeadStageNew, types.LeadStageEngaged, types.LeadStageQualified,
		types.LeadStageNegotiating, types.LeadStageClosedWon, types.LeadStageClosedLost,
	}, types.LeadStageUnknown)
	result.Sentiment = coerceEnum(getString(raw, "sentiment"), []string{
		types.SentimentPositive, types.SentimentNeutral, types.SentimentNegative, types.SentimentMixed,
	}, types.SentimentUnknown)
	result.Urgency = coerceEnum(getString(raw, "urgency"), []string{
		types.UrgencyHigh, types.UrgencyMedium, types.UrgencyLow,
	}, types.UrgencyNone)
	result.Objections = types.StringList(getStringList(raw, "objections"))
	result.BuyingSignals = types.StringList(getStringList(raw, "buying_signals"))
	result.NextSteps = types.StringList(getStringList(raw, "next_steps"))
	result.Summary = getString(raw, "summary")
	result.RecommendedAction = getString(raw, "recommended_action")
	result.IsQualifiedLead = getBool(raw, "is_qualified_lead")
	result.NeedsFollowup = getBool(raw, "needs_followup")
	result.PricingDiscussed = getBool(raw, "pricing_discussed")

	if conf, ok := getFloat(raw, "confidence"); ok {
		result.Confidence = clamp01(conf)
	}
	return result
}

func responseSchema() map[string]any {
	nullableString := map[string]any{"type": []string{"string", "null"}}
	stringList := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"product_category":   nullableString,
			"product_interest":   nullableString,
			"lead_stage":         map[string]any{"type": "string", "enum": []string{"new", "engaged", "qualified", "negotiating", "closed_won", "closed_lost", "unknown"}},
			"sentiment":          map[string]any{"type": "string", "enum": []string{"positive", "neutral", "negative", "mixed", "unknown"}},
			"urgency":            map[string]any{"type": "string", "enum": []string{"high", "medium", "low", "none"}},
			"objections":         stringList,
			"buying_signals":     stringList,
			"next_steps":         stringList,
			"summary":            nullableString,
			"recommended_action": nullableString,
			"is_qualified_lead":  map[string]any{"type": "boolean"},
			"needs_followup":     map[string]any{"type": "boolean"},
			"pricing_discussed":  map[string]any{"type": "boolean"},
			"confidence":         map[string]any{"type": []string{"number", "null"}},
		},
		"required": []string{
			"product_category", "product_interest", "lead_stage", "sentiment",
			"urgency", "objections", "buying_signals", "next_steps", "summary",
			"recommended_action", "is_qualified_lead", "needs_followup",
			"pricing_discussed", "confidence",
		},
		"additionalProperties": false,
	}
}

func getString(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func getStringList(raw map[string]any, key string) []string {
	arr, ok := raw[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func getBool(raw map[string]any, key string) bool {
	v, ok := raw[key].(bool)
	return ok && v
}

func getFloat(raw map[string]any, key string) (float64, bool) {
	switch v := raw[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// coerceEnum lowercases value and checks membership; an empty allowed set
// accepts any non-empty value. Anything else falls back.
func coerceEnum(value string, allowed []string, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	if len(allowed) == 0 {
		return value
	}
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	return fallback
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
