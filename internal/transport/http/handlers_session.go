package httptransport

import (
	"encoding/json"
	"net/http"

	addressmodels "domicile/internal/address/models"
	sessionservice "domicile/internal/session/service"
	dErrors "domicile/pkg/domain-errors"
)

// sessionIDHeader carries the session id on the in-journey endpoints.
const sessionIDHeader = "session_id"

type sessionRequest struct {
	ClientID string `json:"client_id"`
	Request  string `json:"request"`
}

type sessionResponse struct {
	SessionID   string `json:"session_id"`
	State       string `json:"state"`
	RedirectURI string `json:"redirect_uri"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	session, err := h.sessions.Create(ctx, req.ClientID, req.Request)
	if err != nil {
		h.logger.WarnContext(ctx, "session creation rejected", "error", err.Error())
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID:   session.ID,
		State:       session.State,
		RedirectURI: session.RedirectURI,
	})
}

// handleSubmitAddresses accepts the address batch, resolves validity, and
// mints the authorization code. An empty batch is acknowledged without any
// state change.
func (h *Handler) handleSubmitAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := r.Header.Get(sessionIDHeader)
	if sessionID == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "session_id header is required"))
		return
	}

	var batch []addressmodels.CanonicalAddress
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid address payload"))
		return
	}
	if len(batch) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.addresses.Submit(ctx, sessionID, batch); err != nil {
		h.logger.WarnContext(ctx, "address submission rejected",
			"session_id", sessionID, "error", err.Error())
		writeError(w, sessionLookupError(err))
		return
	}
	if _, err := h.sessions.IssueAuthorizationCode(ctx, sessionID); err != nil {
		h.logger.ErrorContext(ctx, "authorization code issuance failed",
			"session_id", sessionID, "error", err.Error())
		writeError(w, sessionLookupError(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

type authorizationResponse struct {
	AuthorizationCode authorizationCode `json:"authorizationCode"`
	State             string            `json:"state"`
	RedirectURI       string            `json:"redirectUri"`
}

type authorizationCode struct {
	Value string `json:"value"`
}

// handleAuthorization returns the code minted at address submission. A
// session still awaiting submission has no code and is refused.
func (h *Handler) handleAuthorization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := r.Header.Get(sessionIDHeader)
	if sessionID == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "session_id header is required"))
		return
	}

	session, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		writeError(w, sessionLookupError(err))
		return
	}
	if session.AuthorizationCode == "" {
		writeError(w, dErrors.NewWithReason(dErrors.CodeForbidden,
			sessionservice.ReasonInvalidState, "session has no authorization code"))
		return
	}

	writeJSON(w, http.StatusOK, authorizationResponse{
		AuthorizationCode: authorizationCode{Value: session.AuthorizationCode},
		State:             session.State,
		RedirectURI:       session.RedirectURI,
	})
}
