package chatbot

import (
	"context"
	"strings"
	"testing"
)

func TestSearchRanksByOverlap(t *testing.T) {
	kb := NewKnowledge(
		"Pricing is per property and depends on room count.",
		"OTA management covers listing optimization and rate parity.",
		"Support hours are Monday through Saturday.",
	)

	hits := kb.Search("how does pricing work for a property", 2)
	if len(hits) == 0 {
		t.Fatal("no hits for a pricing query")
	}
	if !strings.Contains(hits[0], "Pricing") {
		t.Fatalf("best hit = %q", hits[0])
	}
}

func TestSearchNoMatchReturnsNothing(t *testing.T) {
	kb := NewKnowledge()
	if hits := kb.Search("xyzzy plugh", 3); len(hits) != 0 {
		t.Fatalf("expected no hits, got %v", hits)
	}
	// Stopword-only queries match nothing either.
	if hits := kb.Search("what about that", 3); len(hits) != 0 {
		t.Fatalf("stopword query hit %v", hits)
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	kb := NewKnowledge(
		"hotel revenue management services",
		"hotel marketing services",
		"hotel chatbot services",
	)
	if hits := kb.Search("hotel services", 2); len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
}

func TestCannedReportsRetrieval(t *testing.T) {
	reply, err := Canned{}.Respond(context.Background(), "what is your pricing for a small property")
	if err != nil {
		t.Fatal(err)
	}
	if !reply.ContextUsed || reply.KnowledgeResults == 0 {
		t.Fatalf("retrieval hit not reported: %+v", reply)
	}

	reply, err = Canned{}.Respond(context.Background(), "xyzzy")
	if err != nil {
		t.Fatal(err)
	}
	if reply.ContextUsed || reply.KnowledgeResults != 0 {
		t.Fatalf("no-hit query reported context: %+v", reply)
	}
}

func TestCannedAnswersFromKnowledge(t *testing.T) {
	// No canned keyword matches, but the knowledge store does: the
	// answer comes from the best chunk.
	reply, err := Canned{}.Respond(context.Background(), "when are your support hours")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply.Text, "Monday") {
		t.Fatalf("reply = %q", reply.Text)
	}
	if reply.KnowledgeResults != 1 {
		t.Fatalf("knowledge results = %d", reply.KnowledgeResults)
	}
}
