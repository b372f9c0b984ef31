package types

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Lead stage, sentiment and urgency enums. The analyzer coerces anything
// outside these sets to the unknown/none value.
const (
	LeadStageNew         = "new"
	LeadStageEngaged     = "engaged"
	LeadStageQualified   = "qualified"
	LeadStageNegotiating = "negotiating"
	LeadStageClosedWon   = "closed_won"
	LeadStageClosedLost  = "closed_lost"
	LeadStageUnknown     = "unknown"

	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
	SentimentMixed    = "mixed"
	SentimentUnknown  = "unknown"

	UrgencyHigh   = "high"
	UrgencyMedium = "medium"
	UrgencyLow    = "low"
	UrgencyNone   = "none"

	CategoryUnknown = "unknown"
)

// Confidence tiers for results that arrive without a usable model score.
// They express relative trust in the result, highest for a real but
// unscored response, lowest for an error fallback.
const (
	ConfidenceUnscored = 0.5
	ConfidenceEmpty    = 0.3
	ConfidenceError    = 0.1
)

// ConversationAnalysis is the persisted analysis row, keyed by chat JID.
// Upserts are last-write-wins on every column.
type ConversationAnalysis struct {
	ChatJID           string         `gorm:"column:chat_jid;primaryKey" json:"chat_jid"`
	ChatName          string         `gorm:"column:chat_name" json:"chat_name"`
	ProductCategory   string         `gorm:"column:product_category;not null" json:"product_category"`
	ProductInterest   string         `gorm:"column:product_interest" json:"product_interest"`
	LeadStage         string         `gorm:"column:lead_stage;not null" json:"lead_stage"`
	Sentiment         string         `gorm:"column:sentiment;not null" json:"sentiment"`
	Urgency           string         `gorm:"column:urgency;not null" json:"urgency"`
	Objections        datatypes.JSON `gorm:"column:objections" json:"objections"`
	BuyingSignals     datatypes.JSON `gorm:"column:buying_signals" json:"buying_signals"`
	NextSteps         datatypes.JSON `gorm:"column:next_steps" json:"next_steps"`
	Summary           string         `gorm:"column:summary" json:"summary"`
	RecommendedAction string         `gorm:"column:recommended_action" json:"recommended_action"`
	IsQualifiedLead   bool           `gorm:"column:is_qualified_lead;not null" json:"is_qualified_lead"`
	NeedsFollowup     bool           `gorm:"column:needs_followup;not null" json:"needs_followup"`
	PricingDiscussed  bool           `gorm:"column:pricing_discussed;not null" json:"pricing_discussed"`
	Confidence        float64        `gorm:"column:confidence;not null" json:"confidence"`
	ModelUsed         string         `gorm:"column:model_used" json:"model_used"`
	ProcessingMs      int64          `gorm:"column:processing_ms" json:"processing_ms"`
	AnalyzedAt        time.Time      `gorm:"column:analyzed_at;not null" json:"analyzed_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (ConversationAnalysis) TableName() string {
	return "conversation_analysis"
}

// EmptyList is the stored form of a list field with no signal. List fields
// are never null.
func EmptyList() datatypes.JSON {
	return datatypes.JSON([]byte("[]"))
}

// StringList encodes values as a JSONB string array, collapsing nil to [].
func StringList(values []string) datatypes.JSON {
	if len(values) == 0 {
		return EmptyList()
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return EmptyList()
	}
	return datatypes.JSON(raw)
}

// DecodeStringList is the inverse of StringList, tolerant of null columns.
func DecodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// NewEmptyAnalysis builds the canonical empty result for a chat: every enum
// at its unknown/none value, empty lists, cleared flags. Confidence is the
// caller's tier.
func NewEmptyAnalysis(chatJID, chatName, model string, confidence float64) *ConversationAnalysis {
	now := time.Now().UTC()
	return &ConversationAnalysis{
		ChatJID:         chatJID,
		ChatName:        chatName,
		ProductCategory: CategoryUnknown,
		LeadStage:       LeadStageUnknown,
		Sentiment:       SentimentUnknown,
		Urgency:         UrgencyNone,
		Objections:      EmptyList(),
		BuyingSignals:   EmptyList(),
		NextSteps:       EmptyList(),
		Confidence:      confidence,
		ModelUsed:       model,
		AnalyzedAt:      now,
		UpdatedAt:       now,
	}
}
