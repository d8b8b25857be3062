package testutil

import (
	"mentor/model"
)

// Greeting is the opening Assistant line used in fixtures.
const Greeting = "How can I assist you with coding and algorithms today?"

// TestMessages returns a short tutoring conversation.
func TestMessages() []model.Message {
	return []model.Message{
		model.NewAssistantMessage(Greeting),
		model.NewHumanMessage("What is a binary search?"),
		model.NewAssistantMessage("What do you think happens if you compare against the middle element first?"),
		model.NewHumanMessage("Can you help me with the prerequisites for CS201?"),
	}
}

// SingleUserMessage returns a single Human message for simple tests.
func SingleUserMessage(content string) []model.Message {
	return []model.Message{model.NewHumanMessage(content)}
}

// TestCredentials returns a complete credential bundle.
func TestCredentials() model.Credentials {
	return model.Credentials{
		LLMKey:         "sk-test",
		IndexKey:       "index-test",
		IndexName:      "algorithms",
		EmbeddingModel: "nomic-embed-text",
	}
}

// ToolCallJSON is a well-formed routing reply requesting retrieval.
const ToolCallJSON = `{"tool_call":{"function":"retrieve","arguments":{"query":"prerequisites CS201","index_api_key":"index-test","index_name":"algorithms","embedding_model":"nomic-embed-text"}}}`

// Hits returns sample retrieval hits.
func Hits() []model.Document {
	return []model.Document{
		{Content: "CS201 requires CS101.", Metadata: map[string]string{"source": "syllabus.txt"}},
		{Content: "CS201 meets twice a week.", Metadata: map[string]string{"source": "schedule.txt"}},
	}
}
