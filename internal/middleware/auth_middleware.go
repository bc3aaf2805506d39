package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ParticipantRequired resolves the calling participant from the X-User-Id
// header and puts the parsed ObjectID on the gin context. How the header got
// there (session gateway, API gateway) is outside this service.
func ParticipantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-Id")
		if raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-Id header required"})
			c.Abort()
			return
		}

		participantID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid participant ID"})
			c.Abort()
			return
		}

		c.Set("participant_id", participantID)
		c.Next()
	}
}

// AdminRequired gates operator endpoints behind a shared admin token.
func AdminRequired(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access is not configured"})
			c.Abort()
			return
		}

		provided := c.GetHeader("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(adminToken)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// ParticipantID reads the participant ObjectID set by ParticipantRequired.
func ParticipantID(c *gin.Context) (primitive.ObjectID, bool) {
	value, exists := c.Get("participant_id")
	if !exists {
		return primitive.NilObjectID, false
	}
	id, ok := value.(primitive.ObjectID)
	return id, ok
}
