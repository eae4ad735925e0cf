package llm

import "fmt"

// ChatSystemPrompt primes the assistant for free-form conversation.
const ChatSystemPrompt = "You are a friendly assistant. Answer the user's questions clearly and concisely."

// InterpretPrompt asks the backend to summarize extracted document text.
func InterpretPrompt(fileName, text string) []Message {
	return []Message{
		{Role: RoleSystem, Content: "You analyze documents and slide decks. Summarize the key points, structure, and findings of the provided content. Respond in plain prose."},
		{Role: RoleUser, Content: fmt.Sprintf("Document %q:\n\n%s", fileName, text)},
	}
}

// TranslatePrompt asks the backend to render an interpretation in the target language.
func TranslatePrompt(interpretation string) []Message {
	return []Message{
		{Role: RoleSystem, Content: "Rewrite the following analysis in clear English, preserving every finding. If it is already in English, polish the wording."},
		{Role: RoleUser, Content: interpretation},
	}
}
