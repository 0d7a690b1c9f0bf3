package ranker

import "math"

// BM25 constants per Robertson/Sparck-Jones tuning defaults. No
// library in the corpus provides BM25 (it is a closed-form scoring
// function over token-frequency tables, not a domain service), so this
// is a direct stdlib implementation.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// BM25Index scores a fixed corpus of tokenized documents against a
// query, for the HYBRID tier's lexical side-channel (§4.5 step 6).
// It is built fresh per query from the candidate set already fetched
// from the store — there is no persisted inverted index.
type BM25Index struct {
	docs     map[int64][]string
	docFreq  map[string]int
	avgLen   float64
	maxScore float64
}

// NewBM25Index builds an index over docs, keyed by memory ID.
func NewBM25Index(docs map[int64][]string) *BM25Index {
	idx := &BM25Index{
		docs:    docs,
		docFreq: make(map[string]int),
	}
	var totalLen int
	for _, tokens := range docs {
		totalLen += len(tokens)
		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			if !seen[tok] {
				seen[tok] = true
				idx.docFreq[tok]++
			}
		}
	}
	if len(docs) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(docs))
	}
	return idx
}

func (idx *BM25Index) idf(term string) float64 {
	n := float64(len(idx.docs))
	df := float64(idx.docFreq[term])
	if n == 0 {
		return 0
	}
	v := math.Log(1 + (n-df+0.5)/(df+0.5))
	if v < 0 {
		return 0
	}
	return v
}

// Score computes the raw BM25 score of document id against query.
func (idx *BM25Index) Score(id int64, query []string) float64 {
	tokens, ok := idx.docs[id]
	if !ok || len(tokens) == 0 || idx.avgLen == 0 {
		return 0
	}
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	docLen := float64(len(tokens))
	var score float64
	for _, term := range query {
		f := float64(tf[term])
		if f == 0 {
			continue
		}
		num := f * (bm25K1 + 1)
		den := f + bm25K1*(1-bm25B+bm25B*docLen/idx.avgLen)
		score += idx.idf(term) * (num / den)
	}
	return score
}

// NormalizedScore squashes a raw BM25 score into [0, 1) via
// 1 - exp(-score), so it can be blended with cosine similarity without
// tracking a running maximum across queries.
func (idx *BM25Index) NormalizedScore(id int64, query []string) float64 {
	raw := idx.Score(id, query)
	if raw <= 0 {
		return 0
	}
	return 1 - math.Exp(-raw)
}
