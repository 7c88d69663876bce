package assistant

import (
	"github.com/hueai/medassist-backend/internal/domain"
	"github.com/hueai/medassist-backend/internal/platform/openrouter"
)

const systemPrompt = "You are an AI health consultant assisting patients with health-related questions. " +
	"You provide helpful, empathetic, and medically-informed responses. " +
	"Always remind users that you are an AI assistant and they should consult healthcare professionals for proper diagnosis and treatment. " +
	"Be conversational and supportive while maintaining medical accuracy."

// DisclaimerText travels with every response as its own field; it is never
// folded into the persisted answer text.
const DisclaimerText = "⚠️ **Important Disclaimer**: This is an AI health assistant and should not replace " +
	"professional medical advice, diagnosis, or treatment. Always consult with a qualified " +
	"healthcare provider for proper medical guidance. If you're experiencing a medical emergency, " +
	"call emergency services immediately."

// BuildMessages assembles the model's message list: system prompt with the
// patient context block, the recent history window, then the current turn.
func BuildMessages(userMessage, patientContext string, history []*domain.ChatMessage) []openrouter.Message {
	system := systemPrompt
	if patientContext != "" {
		system += "\n\nPatient Context:\n" + patientContext
	}

	messages := make([]openrouter.Message, 0, len(history)+2)
	messages = append(messages, openrouter.TextMessage("system", system))

	for _, msg := range history {
		role := "assistant"
		if msg.Role == domain.RoleUser {
			role = "user"
		}
		messages = append(messages, openrouter.TextMessage(role, msg.Content))
	}

	messages = append(messages, openrouter.TextMessage("user", userMessage))
	return messages
}
