package auth

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-billgate/core"
)

var (
	tokenMessageKeys = []string{"ErrorMessage", "error_description", "message", "Message"}
	accessTokenKeys  = []string{"access_token", "AccessToken", "Token"}
	tokenTypeKeys    = []string{"token_type", "TokenType"}
	expiresInKeys    = []string{"expires_in", "ExpiresIn"}
	scopeKeys        = []string{"scope", "Scope"}
)

func resolveTokenRequest(req core.TokenRequest, defaultDuration int, defaultMCC string) (core.TokenRequest, error) {
	resolved := core.TokenRequest{
		DurationMinutes: req.DurationMinutes,
		MCC:             strings.TrimSpace(req.MCC),
	}
	if resolved.DurationMinutes == 0 {
		resolved.DurationMinutes = defaultDuration
	}
	if resolved.MCC == "" {
		resolved.MCC = strings.TrimSpace(defaultMCC)
	}
	if resolved.DurationMinutes < core.MinTokenDurationMinutes || resolved.DurationMinutes > core.MaxTokenDurationMinutes {
		return core.TokenRequest{}, core.NewBadInputError(fmt.Sprintf(
			"token duration must be within %d..%d minutes",
			core.MinTokenDurationMinutes,
			core.MaxTokenDurationMinutes,
		))
	}
	if resolved.MCC != "" && !isDigits(resolved.MCC, 4) {
		return core.TokenRequest{}, core.NewBadInputError("mcc must be 4 digits")
	}
	return resolved, nil
}

func flightKey(req core.TokenRequest) string {
	return strconv.Itoa(req.DurationMinutes) + "|" + req.MCC
}

func tokenQuery(req core.TokenRequest) map[string]string {
	query := map[string]string{"dur": strconv.Itoa(req.DurationMinutes)}
	if req.MCC != "" {
		query["mcc"] = req.MCC
	}
	return query
}

func isDigits(value string, length int) bool {
	if len(value) != length {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
