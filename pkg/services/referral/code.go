package referral

import (
	"encoding/hex"
	"math/rand/v2"
	"strings"
)

const (
	CodeLength    = 6
	codeAlphabet  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	payloadPrefix = "REF_"
	legacyIDLen   = 24
)

// Code is a parsed invitation payload
type Code struct {
	Code            string // 6-character referral code, upper case
	LegacyAccountID string // Referrer account ID from old ref_<id> links
}

// ParseCode accepts "REF_ABC234", a bare "abc234", or a legacy "ref_<24 hex account id>"
func ParseCode(payload string) (Code, bool) {
	s := strings.TrimSpace(payload)
	if len(s) >= len(payloadPrefix) && strings.EqualFold(s[:len(payloadPrefix)], payloadPrefix) {
		s = s[len(payloadPrefix):]
		if len(s) == legacyIDLen {
			if _, err := hex.DecodeString(s); err == nil {
				return Code{LegacyAccountID: strings.ToLower(s)}, true
			}
		}
	}

	if len(s) != CodeLength {
		return Code{}, false
	}
	s = strings.ToUpper(s)
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return Code{}, false
		}
	}
	return Code{Code: s}, true
}

// Payload renders a code in its link form
func Payload(code string) string {
	return payloadPrefix + code
}

func generateCode() string {
	b := make([]byte, CodeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}
