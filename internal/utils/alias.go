package utils

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AnonymousAlias derives a stable pseudonym for a wishlist owner so the
// purchaser never sees the owner's identity.
func AnonymousAlias(id primitive.ObjectID) string {
	hex := strings.ToUpper(id.Hex())
	if len(hex) < 4 {
		return "Ringo #0000"
	}
	return fmt.Sprintf("Ringo #%s", hex[len(hex)-4:])
}
