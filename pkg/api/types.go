package api

import "net/url"

// Question is one quiz item as returned by the indexed API. Questions are
// immutable once fetched; identity is the ID field.
type Question struct {
	// ID is the stable question identifier used for explanation lookups.
	ID string `json:"id"`

	// Prompt is the question text shown to the user.
	Prompt string `json:"prompt"`

	// Choices are the answer options in display order. May be empty for
	// free-form question kinds.
	Choices []string `json:"choices"`

	// Kind is the question type (e.g. "multiple-choice", "open").
	Kind string `json:"kind"`

	// Difficulty is the difficulty label the question was indexed under.
	Difficulty string `json:"difficulty"`

	// Skill is the skill category the question was indexed under.
	Skill string `json:"skill"`
}

// Filter narrows indexed queries. Zero-value fields are omitted from the
// request. Filters are supplied by the caller per fetch and never cached
// across calls.
type Filter struct {
	Skill      string
	Difficulty string
}

// values returns the filter as query parameters, skipping empty fields.
func (f Filter) values() url.Values {
	v := url.Values{}
	if f.Skill != "" {
		v.Set("skill", f.Skill)
	}
	if f.Difficulty != "" {
		v.Set("difficulty", f.Difficulty)
	}
	return v
}

// Response envelopes for the indexed API actions.
type bundleResponse struct {
	Questions []Question `json:"questions"`
}

type questionResponse struct {
	Question *Question `json:"question"`
}

type explanationResponse struct {
	Explanation string `json:"explanation"`
}
