// Package reranker reorders search hits by blending vector similarity
// with lexical query-term overlap.
//
// Embedding search alone can rank a hit highly because it sits near the
// query in embedding space without sharing any of its vocabulary. The
// blend gives both signals equal weight, so among semantically close hits
// the ones that actually use the query's terms come out on top.
package reranker

import (
	"sort"
	"strings"

	"github.com/fyrsmithlabs/corpusd/internal/vectorstore"
)

const (
	vectorWeight  = 0.5
	overlapWeight = 0.5
)

// Reranker blends vector scores with query-term overlap.
type Reranker struct{}

// New creates a reranker.
func New() *Reranker {
	return &Reranker{}
}

// Rerank returns the topN hits ordered by blended score. A query with no
// usable terms keeps the vector order. topN <= 0 keeps every hit. The
// input slice is not modified.
func (r *Reranker) Rerank(query string, hits []vectorstore.SearchResult, topN int) []vectorstore.SearchResult {
	if len(hits) == 0 {
		return nil
	}
	if topN <= 0 || topN > len(hits) {
		topN = len(hits)
	}

	queryTerms := uniqueTerms(tokenize(query))
	if len(queryTerms) == 0 {
		out := make([]vectorstore.SearchResult, topN)
		copy(out, hits[:topN])
		return out
	}

	type scored struct {
		hit   vectorstore.SearchResult
		score float32
	}

	scoredHits := make([]scored, len(hits))
	for i, hit := range hits {
		overlap := termOverlap(queryTerms, tokenize(hit.Content))
		scoredHits[i] = scored{
			hit:   hit,
			score: vectorWeight*hit.Score + overlapWeight*overlap,
		}
	}

	// Stable keeps the vector order for ties.
	sort.SliceStable(scoredHits, func(i, j int) bool {
		return scoredHits[i].score > scoredHits[j].score
	})

	out := make([]vectorstore.SearchResult, topN)
	for i := 0; i < topN; i++ {
		out[i] = scoredHits[i].hit
	}
	return out
}

// tokenize splits text into lowercase terms, dropping stopwords and terms
// shorter than three characters.
func tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isAlphanumeric(r)
	})

	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if len(token) > 2 && !stopwords[token] {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

func uniqueTerms(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		set[term] = struct{}{}
	}
	return set
}

// termOverlap returns the fraction of query terms present in the document
// tokens, between 0 and 1.
func termOverlap(queryTerms map[string]struct{}, docTokens []string) float32 {
	if len(queryTerms) == 0 {
		return 0
	}

	docSet := make(map[string]struct{}, len(docTokens))
	for _, token := range docTokens {
		docSet[token] = struct{}{}
	}

	matches := 0
	for term := range queryTerms {
		if _, ok := docSet[term]; ok {
			matches++
		}
	}

	return float32(matches) / float32(len(queryTerms))
}

var stopwords = map[string]bool{
	"the": true, "and": true, "but": true,
	"for": true, "with": true, "from": true, "was": true,
	"are": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true,
	"this": true, "that": true, "these": true, "those": true, "you": true,
	"she": true, "they": true, "what": true, "which": true, "who": true,
	"when": true, "where": true, "why": true, "how": true, "not": true,
}
