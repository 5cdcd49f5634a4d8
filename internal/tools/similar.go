package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
)

// ErrNoSearcher means similarity search is not configured.
var ErrNoSearcher = errors.New("similarity search not configured")

// Match is one similar profile.
type Match struct {
	Score   float64        `json:"similarity_score"`
	Profile map[string]any `json:"profile"`
}

// Searcher finds stored profile summaries similar to a text. The
// embedding and index behind it are opaque to this package.
type Searcher interface {
	Search(ctx context.Context, text string, k int) ([]Match, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, text string, k int) ([]Match, error)

func (f SearcherFunc) Search(ctx context.Context, text string, k int) ([]Match, error) {
	return f(ctx, text, k)
}

// SimilarResult is the payload of search_similar_profiles.
type SimilarResult struct {
	Query   string  `json:"query"`
	Results []Match `json:"results"`
}

// SimilarProfilesTool delegates to a Searcher.
type SimilarProfilesTool struct {
	searcher Searcher
}

func (t *SimilarProfilesTool) Name() string { return toolplan.SimilarProfiles }

func (t *SimilarProfilesTool) Description() string {
	return "Search for profiles similar to the question"
}

func (t *SimilarProfilesTool) Call(ctx context.Context, call engine.Call) (any, error) {
	if t.searcher == nil {
		return nil, ErrNoSearcher
	}
	text := call.StringArg("query_text", call.Question)
	k := call.IntArg("top_k", toolplan.DefaultTopK)
	if k <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", k)
	}
	matches, err := t.searcher.Search(ctx, text, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(matches) > k {
		matches = matches[:k]
	}
	if matches == nil {
		matches = []Match{}
	}
	return SimilarResult{Query: text, Results: matches}, nil
}
