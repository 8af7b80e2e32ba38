package ollama

import (
	"github.com/aschepis/backscratcher/slots/llm"
	"github.com/ollama/ollama/api"
)

// ToOllamaMessages converts llm.Messages to Ollama chat messages, prepending the system prompt.
func ToOllamaMessages(system string, msgs []llm.Message) []api.Message {
	result := make([]api.Message, 0, len(msgs)+1)
	if system != "" {
		result = append(result, api.Message{Role: "system", Content: system})
	}
	for _, msg := range msgs {
		role := string(msg.Role)
		if role == "" {
			role = string(llm.RoleUser)
		}
		result = append(result, api.Message{
			Role:    role,
			Content: msg.Text(),
		})
	}
	return result
}

// FromChatResponse converts a final Ollama chat response to an llm.Response.
func FromChatResponse(chatResp api.ChatResponse) *llm.Response {
	content := make([]llm.ContentBlock, 0, 1)
	if chatResp.Message.Content != "" {
		content = append(content, llm.ContentBlock{
			Type: llm.ContentBlockTypeText,
			Text: chatResp.Message.Content,
		})
	}

	stopReason := "stop"
	if chatResp.DoneReason == "length" {
		stopReason = "max_tokens"
	}

	return &llm.Response{
		Content: content,
		Usage: &llm.Usage{
			InputTokens:  int64(chatResp.PromptEvalCount),
			OutputTokens: int64(chatResp.EvalCount),
		},
		StopReason: stopReason,
	}
}
