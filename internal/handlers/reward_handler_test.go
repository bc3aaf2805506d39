package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ringokai/internal/middleware"
	"ringokai/internal/models"
	"ringokai/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubDrawService struct {
	odds *services.DrawDistribution
	err  error
}

func (s *stubDrawService) Draw(ctx context.Context, participantID primitive.ObjectID) (*services.DrawResult, error) {
	return nil, s.err
}

func (s *stubDrawService) GetLatestReward(ctx context.Context, participantID primitive.ObjectID) (*services.RewardView, error) {
	return nil, s.err
}

func (s *stubDrawService) Consume(ctx context.Context, participantID, rewardID primitive.ObjectID) (*models.Reward, error) {
	return nil, s.err
}

func (s *stubDrawService) DrawOdds(ctx context.Context, participantID primitive.ObjectID) (*services.DrawDistribution, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.odds, nil
}

func probabilitiesRouter(svc services.DrawService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewRewardHandler(svc)
	router.GET("/probabilities", middleware.ParticipantRequired(), handler.GetProbabilities)
	return router
}

func TestGetProbabilitiesReturnsOddsWithReasons(t *testing.T) {
	dist := &services.DrawDistribution{
		Probabilities: map[models.RewardTier]float64{
			models.RewardTierBronze: 0.6,
			models.RewardTierPoison: 0.4,
		},
		Policy:       services.PolicyDynamic,
		Reasons:      []string{"dynamic odds in effect"},
		RTP:          1.0,
		PredictedRTP: 0.95,
		GrowthRate:   0.05,
	}
	router := probabilitiesRouter(&stubDrawService{odds: dist})

	req := httptest.NewRequest(http.MethodGet, "/probabilities", nil)
	req.Header.Set("X-User-Id", primitive.NewObjectID().Hex())
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Status string `json:"status"`
		Data   struct {
			Probabilities map[string]float64 `json:"probabilities"`
			Policy        string             `json:"policy"`
			Reasons       []string           `json:"reasons"`
			RTP           float64            `json:"rtp"`
			PredictedRTP  float64            `json:"predicted_rtp"`
			GrowthRate    float64            `json:"growth_rate"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))

	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "dynamic", body.Data.Policy)
	assert.Equal(t, []string{"dynamic odds in effect"}, body.Data.Reasons)
	assert.InDelta(t, 0.6, body.Data.Probabilities["bronze"], 1e-9)
	assert.InDelta(t, 0.95, body.Data.PredictedRTP, 1e-9)
	assert.InDelta(t, 0.05, body.Data.GrowthRate, 1e-9)
}

func TestGetProbabilitiesUnknownParticipant(t *testing.T) {
	router := probabilitiesRouter(&stubDrawService{err: services.ErrParticipantNotFound})

	req := httptest.NewRequest(http.MethodGet, "/probabilities", nil)
	req.Header.Set("X-User-Id", primitive.NewObjectID().Hex())
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGetProbabilitiesRequiresIdentity(t *testing.T) {
	router := probabilitiesRouter(&stubDrawService{})

	req := httptest.NewRequest(http.MethodGet, "/probabilities", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
