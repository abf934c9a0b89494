package internal

import (
	"time"
)

// CreateTestConversation creates a conversation with one exchange
func CreateTestConversation(id string) *Conversation {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &Conversation{
		ID:        id,
		StartedAt: Timestamp{Time: started},
		Messages: []ChatMessage{
			{
				Role: RoleUser,
				Text: "What time is it?",
				Time: Timestamp{Time: started},
			},
			{
				Role: RoleAssistant,
				Text: "It is 10 AM.",
				Time: Timestamp{Time: started.Add(time.Second)},
			},
		},
	}
}

// CreateTestConversationWithMessages creates a conversation with custom messages
func CreateTestConversationWithMessages(id string, messages []ChatMessage) *Conversation {
	return &Conversation{
		ID:        id,
		StartedAt: Timestamp{Time: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		Messages:  messages,
	}
}
