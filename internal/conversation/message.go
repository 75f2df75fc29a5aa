package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Relevance is the eviction priority of a message. Lower values are pruned first.
type Relevance int

const (
	Archivable Relevance = 0
	Low        Relevance = 25
	Medium     Relevance = 50
	High       Relevance = 75
	Critical   Relevance = 100
)

func (r Relevance) String() string {
	switch r {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	case Archivable:
		return "archivable"
	}
	return "custom"
}

// MessageType tags what kind of payload a message carries.
type MessageType string

const (
	TypeText            MessageType = "text"
	TypeMealPlan        MessageType = "mealPlan"
	TypeRecipe          MessageType = "recipe"
	TypeNutritionGoal   MessageType = "nutritionGoal"
	TypeMacroSuggestion MessageType = "macroSuggestion"
	TypeProgressUpdate  MessageType = "progressUpdate"
)

// Message is one entry of a conversation session.
type Message struct {
	ID        string      `json:"id"`
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	Relevance Relevance   `json:"relevance"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage creates a text message stamped with a fresh ID and the current time.
func NewMessage(role Role, content string, relevance Relevance) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Relevance: relevance,
		Type:      TypeText,
		Timestamp: time.Now().UTC(),
	}
}

// WithType returns a copy of m tagged with t.
func (m Message) WithType(t MessageType) Message {
	m.Type = t
	return m
}

// EstimateTokens approximates the token count of text as two tokens per word.
func EstimateTokens(text string) int {
	return len(strings.Fields(text)) * 2
}
