// Package httptransport is the thin HTTP layer over the protocol services.
// Handlers delegate to domain services and own nothing but parsing,
// response shaping, and the error-to-status mapping.
package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"domicile/internal/token"
	dErrors "domicile/pkg/domain-errors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain codes onto statuses. The JSON envelope carries the
// message and, when present, the stable failure kind.
func writeError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		de = dErrors.New(dErrors.CodeInternal, "internal error")
	}

	body := map[string]string{"message": de.Message}
	if de.Reason != "" {
		body["reason"] = de.Reason
	}
	writeJSON(w, statusFor(de.Code), body)
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeOAuthError shapes token-endpoint failures as RFC 6749 error bodies.
func writeOAuthError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		de = dErrors.New(dErrors.CodeInternal, "internal error")
	}

	oauthCode := "server_error"
	status := statusFor(de.Code)
	switch de.Reason {
	case token.ReasonMalformedRequest:
		oauthCode = "invalid_request"
	case token.ReasonUnsupportedGrantType:
		oauthCode = "unsupported_grant_type"
	case token.ReasonGrantInvalid, token.ReasonGrantAlreadyConsumed:
		oauthCode = "invalid_grant"
	default:
		if de.Code == dErrors.CodeUnavailable {
			oauthCode = "temporarily_unavailable"
		}
	}
	writeJSON(w, status, map[string]string{
		"error":             oauthCode,
		"error_description": de.Message,
	})
}

// sessionLookupError hides session existence on protocol endpoints: a
// missing session reads the same as a denied one.
func sessionLookupError(err error) error {
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return dErrors.New(dErrors.CodeForbidden, "access denied")
	}
	return err
}
