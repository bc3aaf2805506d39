package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RTPSnapshot is the audit record persisted whenever a dynamic (non-bootstrap)
// distribution is used for a draw.
type RTPSnapshot struct {
	ID              primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	RTP             float64                `json:"rtp" bson:"rtp"`
	Probabilities   map[RewardTier]float64 `json:"probabilities" bson:"probabilities"`
	FeedbackApplied bool                   `json:"feedback_applied" bson:"feedback_applied"`
	CapturedAt      time.Time              `json:"captured_at" bson:"captured_at"`
}

// SystemMetrics is a periodic economy health snapshot recorded by the batch
// RTP update.
type SystemMetrics struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TotalParticipants int64              `json:"total_participants" bson:"total_participants"`
	NewThisMonth      int64              `json:"new_this_month" bson:"new_this_month"`
	ActiveCount       int64              `json:"active_count" bson:"active_count"`
	TotalObligation   int64              `json:"total_obligation" bson:"total_obligation"`
	TotalAvailable    int64              `json:"total_available" bson:"total_available"`
	CurrentRTP        float64            `json:"current_rtp" bson:"current_rtp"`
	PredictedRTP      float64            `json:"predicted_rtp" bson:"predicted_rtp"`
	GrowthRate        float64            `json:"growth_rate" bson:"growth_rate"`
	BronzeProbability float64            `json:"bronze_probability" bson:"bronze_probability"`
	SilverProbability float64            `json:"silver_probability" bson:"silver_probability"`
	GoldProbability   float64            `json:"gold_probability" bson:"gold_probability"`
	RedProbability    float64            `json:"red_probability" bson:"red_probability"`
	PoisonProbability float64            `json:"poison_probability" bson:"poison_probability"`
	CapturedAt        time.Time          `json:"captured_at" bson:"captured_at"`
}
