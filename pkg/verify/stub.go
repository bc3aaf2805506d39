package verify

import "context"

// StubProvider parks every submission for manual review. Used when no
// verification backend is configured.
type StubProvider struct{}

func NewStubProvider() *StubProvider {
	return &StubProvider{}
}

func (p *StubProvider) Verify(ctx context.Context, request *Request) (*Result, error) {
	return &Result{
		Decision: DecisionReviewRequired,
		Reason:   "no verification backend configured",
	}, nil
}
