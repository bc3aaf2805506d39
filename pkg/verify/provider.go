package verify

import "context"

// Decision is the provider's verdict on a purchase submission.
type Decision string

const (
	DecisionApproved       Decision = "approved"
	DecisionRejected       Decision = "rejected"
	DecisionReviewRequired Decision = "review_required"
)

// Request carries everything the provider gets to judge a submission.
type Request struct {
	PurchaseID    string `json:"purchase_id"`
	PurchaserID   string `json:"purchaser_id"`
	TargetURL     string `json:"target_url"`
	TargetItem    string `json:"target_item"`
	TargetPrice   int    `json:"target_price"`
	ScreenshotRef string `json:"screenshot_ref"`
}

// Result is the provider's verdict plus whatever evidence it returned.
type Result struct {
	Decision Decision               `json:"decision"`
	Reason   string                 `json:"reason"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Provider judges purchase screenshots. Implementations call an external
// verification backend; failures surface as errors so the caller can park
// the purchase for manual review.
type Provider interface {
	Verify(ctx context.Context, request *Request) (*Result, error)
}
