package httptransport

import (
	"net/http"
	"strings"

	"domicile/internal/token"
	dErrors "domicile/pkg/domain-errors"
)

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, dErrors.New(dErrors.CodeBadRequest, "request body is not form encoded").
			WithReason(token.ReasonMalformedRequest))
		return
	}
	req, err := token.ParseRequest(r.PostForm)
	if err != nil {
		writeOAuthError(w, err)
		return
	}

	resp, err := h.tokens.Exchange(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "token exchange rejected", "error", err.Error())
		writeOAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleIssueCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bearer, ok := bearerToken(r)
	if !ok {
		writeError(w, dErrors.New(dErrors.CodeUnauthorized, "bearer token is required"))
		return
	}

	signed, err := h.credentials.Issue(ctx, bearer)
	if err != nil {
		h.logger.WarnContext(ctx, "credential issuance rejected", "error", err.Error())
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/jwt")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(signed))
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	tokenValue := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
	return tokenValue, tokenValue != ""
}
