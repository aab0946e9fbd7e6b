package chatbot

import (
	"sort"
	"strings"
)

// defaultChunks is the built-in company knowledge the assistant answers
// from. One chunk per topic; retrieval picks the best-matching few and
// feeds them into the prompt.
var defaultChunks = []string{
	"DASA Hospitality provides hotel revenue management: dynamic pricing, demand forecasting and competitor rate analysis to maximize RevPAR for independent hotels.",
	"Marketing solutions include direct-booking campaigns, metasearch advertising, social media management and guest-review reputation monitoring.",
	"AI chatbot integration embeds a guest-facing assistant on the property's website, answering inquiries around the clock and escalating to a human agent on request.",
	"OTA management covers listing optimization and rate parity across booking channels such as Booking.com, Expedia and Airbnb, with channel-manager synchronization.",
	"Pricing is per property and depends on room count and the services selected; onboarding takes one to two weeks and includes a dedicated account manager.",
	"Booking assistance: guests can share travel dates and the property of interest and the team follows up with availability and a tailored quote.",
	"Support hours are Monday through Saturday, 9am to 6pm; outside those hours the assistant collects contact details for a callback the next business day.",
	"Existing clients include boutique hotels, serviced apartments and vacation rental operators across Europe and Southeast Asia.",
}

// stopwords are query terms too common to signal topic.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "you": {}, "your": {}, "our": {}, "for": {},
	"with": {}, "are": {}, "can": {}, "what": {}, "how": {}, "when": {},
	"where": {}, "who": {}, "about": {}, "please": {}, "would": {},
	"like": {}, "this": {}, "that": {}, "have": {}, "does": {}, "do": {},
}

// Knowledge is an in-memory retrieval store over text chunks. Chunks
// are scored by how many distinct query terms they contain; zero-score
// chunks are never returned, so the result count is a truthful signal
// of whether any context was found.
type Knowledge struct {
	chunks []string
	terms  []map[string]struct{}
}

func NewKnowledge(chunks ...string) *Knowledge {
	if len(chunks) == 0 {
		chunks = defaultChunks
	}
	k := &Knowledge{chunks: chunks}
	for _, c := range chunks {
		k.terms = append(k.terms, tokenize(c))
	}
	return k
}

// Search returns up to limit chunks relevant to the query, best match
// first. Ties keep chunk order, so results are deterministic.
func (k *Knowledge) Search(query string, limit int) []string {
	qt := tokenize(query)
	if len(qt) == 0 || limit <= 0 {
		return nil
	}

	type scored struct {
		idx   int
		score int
	}
	var hits []scored
	for i, ct := range k.terms {
		score := 0
		for t := range qt {
			if _, ok := ct[t]; ok {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{i, score})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, k.chunks[h.idx])
	}
	return out
}

func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}
