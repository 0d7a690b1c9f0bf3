package sector

import "github.com/openmemory/engine/internal/model"

// defaultPatterns is the static pattern configuration shipped with the
// engine (§4.1: "static configuration ... reloadable without data
// migration"). Each entry is a case-insensitive substring matched
// against the input text.
var defaultPatterns = map[model.Sector][]string{
	model.SectorEpisodic: {
		"today", "yesterday", "last week", "last night", "this morning",
		"remember when", "happened", "we met", "i saw", "i went", "we went",
		"earlier today", "last month", "last year", "at the time",
	},
	model.SectorSemantic: {
		"is the capital of", "is defined as", "means that", "refers to",
		"fact:", "generally,", "always true", "is a type of", "consists of",
		"definition of", "known as",
	},
	model.SectorProcedural: {
		"how to", "step 1", "first,", "then,", "install", "configure",
		"run the", "execute", "the process of", "to set up", "instructions",
	},
	model.SectorEmotional: {
		"felt", "feel", "feeling", "anxious", "happy", "sad", "angry",
		"afraid", "love", "hate", "worried", "excited", "nervous", "grateful",
	},
	model.SectorReflective: {
		"i think", "i believe", "in retrospect", "looking back", "i realize",
		"lesson learned", "i wonder", "reflecting on", "in hindsight",
		"on reflection",
	},
}

// ClonePatterns returns a deep-enough copy of the default pattern table
// for callers that want to mutate it via LoadPatterns without
// affecting the package default.
func ClonePatterns() map[model.Sector][]string {
	out := make(map[model.Sector][]string, len(defaultPatterns))
	for s, pats := range defaultPatterns {
		cp := make([]string, len(pats))
		copy(cp, pats)
		out[s] = cp
	}
	return out
}
