package compiler

import (
	"context"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/intent"
)

// DraftRequest carries everything a drafter may use.
type DraftRequest struct {
	Question string
	Analysis intent.Analysis
	// Context is retrieved background text, possibly empty.
	Context string
	Schema  catalog.Schema
}

// Drafter produces a candidate statement. The draft is untrusted: it may
// be wrapped in prose or markdown, contain several statements or violate
// any policy. The compiler cleans, repairs and validates it.
type Drafter interface {
	// Name is recorded as the Source of compiled queries.
	Name() string
	Draft(ctx context.Context, req DraftRequest) (string, error)
}

// DrafterFunc adapts a function to Drafter. Its Name is "func".
type DrafterFunc func(ctx context.Context, req DraftRequest) (string, error)

func (f DrafterFunc) Name() string { return "func" }

func (f DrafterFunc) Draft(ctx context.Context, req DraftRequest) (string, error) {
	return f(ctx, req)
}
