// ABOUTME: Keyword-retrieval assistant that answers chat messages from the catalog index
// ABOUTME: Ranks index documents by term overlap and replies with a markdown list

package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/2389/brewdesk/internal/catalog"
)

// topK is how many documents a reply cites.
const topK = 5

const (
	greetingReply = "Hi! I can help you find **drinks**, **food**, **drinkware** and **outlets**. What are you looking for?"
	noMatchReply  = "I couldn't find anything matching that. Try asking about our drinks, food, drinkware or outlet locations."
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "you": true, "your": true,
	"what": true, "which": true, "where": true, "have": true, "any": true, "can": true,
	"with": true, "show": true, "tell": true, "about": true, "there": true, "some": true,
	"list": true, "all": true, "how": true, "much": true, "does": true, "cost": true,
	"find": true, "get": true, "near": true, "from": true, "that": true, "this": true,
	"our": true, "menu": true, "please": true,
}

var greetings = map[string]bool{"hi": true, "hello": true, "hey": true}

// kindHints narrows retrieval to one kind when the question names it.
var kindHints = map[string]catalog.Kind{
	"outlet": catalog.KindOutlet, "outlets": catalog.KindOutlet, "store": catalog.KindOutlet,
	"stores": catalog.KindOutlet, "location": catalog.KindOutlet, "locations": catalog.KindOutlet,
	"product": catalog.KindProduct, "products": catalog.KindProduct, "drinkware": catalog.KindProduct,
	"tumbler": catalog.KindProduct, "tumblers": catalog.KindProduct, "mug": catalog.KindProduct,
	"food": catalog.KindFood, "foods": catalog.KindFood, "eat": catalog.KindFood,
	"drink": catalog.KindDrink, "drinks": catalog.KindDrink, "beverage": catalog.KindDrink,
	"beverages": catalog.KindDrink,
}

// Assistant answers chat messages.
type Assistant struct {
	store *Store
}

// NewAssistant returns an assistant backed by store.
func NewAssistant(store *Store) *Assistant {
	return &Assistant{store: store}
}

// Reply answers message. The persisted index is used when present; otherwise
// documents are built from the live catalog.
func (a *Assistant) Reply(ctx context.Context, message string) (string, error) {
	terms := tokenize(message)
	if len(terms) == 0 {
		return noMatchReply, nil
	}
	if len(terms) <= 2 && greetings[terms[0]] {
		return greetingReply, nil
	}

	docs, err := a.store.IndexDocuments(ctx)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		if docs, err = BuildDocuments(ctx, a.store); err != nil {
			return "", err
		}
	}

	hits := rank(docs, terms)
	if len(hits) == 0 {
		return noMatchReply, nil
	}
	return formatHits(hits), nil
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, f := range fields {
		if greetings[f] || (len(f) >= 3 && !stopWords[f]) {
			out = append(out, f)
		}
	}
	return out
}

type hit struct {
	doc   Document
	score int
}

func rank(docs []Document, terms []string) []hit {
	var only catalog.Kind
	var words []string
	for _, t := range terms {
		if k, ok := kindHints[t]; ok {
			only = k
			continue
		}
		words = append(words, t)
	}

	var hits []hit
	for _, d := range docs {
		if only != "" && d.Kind != only {
			continue
		}
		text := strings.ToLower(d.Text)
		score := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				score++
			}
		}
		// A bare kind question ("what drinks do you have") lists that kind.
		if score == 0 && (len(words) > 0 || only == "") {
			continue
		}
		hits = append(hits, hit{doc: d, score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func formatHits(hits []hit) string {
	var b strings.Builder
	b.WriteString("Here's what I found:\n\n")
	for _, h := range hits {
		label, rest, ok := strings.Cut(h.doc.Text, ": ")
		if !ok {
			fmt.Fprintf(&b, "- %s\n", h.doc.Text)
			continue
		}
		fmt.Fprintf(&b, "- **%s:** %s\n", label, rest)
	}
	return strings.TrimRight(b.String(), "\n")
}
