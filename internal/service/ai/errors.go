package ai

import (
	"errors"
	"strings"
)

var (
	ErrMissingCredential = errors.New("ai credential is not configured")
	ErrInvalidCredential = errors.New("ai credential was rejected")
	ErrGenerationFailed  = errors.New("ai generation failed")
)

// credentialMarkers are substrings upstream APIs use when a key is rejected.
var credentialMarkers = []string{
	"api key",
	"api_key_invalid",
}

func isCredentialError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range credentialMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
