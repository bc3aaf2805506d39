package utils

import (
	"crypto/rand"
	"math/big"
)

// referralCodeAlphabet drops I, O, 0 and 1 so codes survive being read aloud
// or retyped from a screenshot.
const referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func GenerateReferralCode() string {
	return generateRandom(ReferralCodeLength, referralCodeAlphabet)
}

func generateRandom(length int, charset string) string {
	result := make([]byte, length)
	charsetLength := big.NewInt(int64(len(charset)))

	for i := range result {
		num, _ := rand.Int(rand.Reader, charsetLength)
		result[i] = charset[num.Int64()]
	}

	return string(result)
}
