package chatbot

import (
	"context"
	"strings"
)

// Reply mirrors the chatbot endpoint's response body.
type Reply struct {
	Text             string
	ContextUsed      bool
	KnowledgeResults int
	ModelUsed        string
}

// Responder produces the automated-assistant side of a bot-mode
// conversation. Implementations must not panic on transport failure;
// the handler maps errors to a 500 without killing the flow.
type Responder interface {
	Respond(ctx context.Context, message string) (*Reply, error)
}

// Canned is the fallback responder used when no OpenAI key is
// configured. Keyword-routed answers keep the widget flow working in
// demos and tests.
type Canned struct{}

var cannedAnswers = []struct {
	keywords []string
	answer   string
}{
	{
		[]string{"price", "pricing", "cost", "rate"},
		"Our pricing depends on the property size and services selected. Share your contact details and our team will send you a tailored quote.",
	},
	{
		[]string{"book", "booking", "reserve", "reservation"},
		"I can help with booking assistance. Could you tell me the dates and the property you have in mind?",
	},
	{
		[]string{"service", "offer", "revenue", "marketing", "ota"},
		"We offer hotel revenue management, marketing solutions, AI chatbot integration and OTA management for hospitality businesses.",
	},
	{
		[]string{"hello", "hi", "hey"},
		"Hello! How can I help you with your hospitality business today?",
	},
}

var defaultKnowledge = NewKnowledge()

func (Canned) Respond(_ context.Context, message string) (*Reply, error) {
	hits := defaultKnowledge.Search(message, 1)

	lower := strings.ToLower(message)
	for _, c := range cannedAnswers {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return &Reply{
					Text:             c.answer,
					ContextUsed:      len(hits) > 0,
					KnowledgeResults: len(hits),
					ModelUsed:        "canned",
				}, nil
			}
		}
	}
	// No keyword route: answer straight from the best knowledge chunk
	// when one matches.
	if len(hits) > 0 {
		return &Reply{
			Text:             hits[0],
			ContextUsed:      true,
			KnowledgeResults: len(hits),
			ModelUsed:        "canned",
		}, nil
	}
	return &Reply{
		Text:      "Thanks for your message! Could you tell me a bit more about what you are looking for? You can also ask to talk to a person at any time.",
		ModelUsed: "canned",
	}, nil
}
