package chatbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	assistantModel = openai.ChatModelGPT4oMini
	contextChunks  = 3
)

// OpenAI answers guest inquiries through the Responses API, grounding
// each reply on chunks retrieved from the knowledge store. The reply is
// streamed internally and returned whole; the widget renders whole
// messages only.
type OpenAI struct {
	client openai.Client
	kb     *Knowledge
}

func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		kb:     NewKnowledge(),
	}
}

func (o *OpenAI) Respond(ctx context.Context, message string) (*Reply, error) {
	hits := o.kb.Search(message, contextChunks)
	prompt := buildPrompt(message, hits)

	stream := o.client.Responses.NewStreaming(ctx, responses.ResponseNewParams{
		Model: assistantModel,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	})
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		event := stream.Current()
		if event.Type == "response.output_text.delta" {
			sb.WriteString(event.Delta)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("assistant response: %w", err)
	}

	return &Reply{
		Text:             sb.String(),
		ContextUsed:      len(hits) > 0,
		KnowledgeResults: len(hits),
		ModelUsed:        string(assistantModel),
	}, nil
}

func buildPrompt(message string, context []string) string {
	var sb strings.Builder
	sb.WriteString("You are a professional, courteous assistant for a hospitality services company. ")
	sb.WriteString("Help guests with inquiries about hotel revenue management, marketing solutions, chatbot integration and OTA management. ")
	sb.WriteString("Keep answers short and warm. If the guest asks for a human, tell them you can connect them with an agent.\n")
	if len(context) > 0 {
		sb.WriteString("\nCompany knowledge relevant to this inquiry:\n")
		for _, c := range context {
			sb.WriteString("- ")
			sb.WriteString(c)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nGuest message: ")
	sb.WriteString(message)
	return sb.String()
}
