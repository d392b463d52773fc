package httptransport

import (
	"crypto"
	"encoding/base64"
	"net/http"

	"github.com/go-jose/go-jose/v4"

	dErrors "domicile/pkg/domain-errors"
)

// handleJWKS publishes the credential-signing public key as a JWK Set. The
// key id is the RFC 7638 thumbprint, so consumers can pin keys without any
// out-of-band naming scheme.
func (h *Handler) handleJWKS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	publicKey, err := h.keys.PublicKey(ctx, h.signingKeyID)
	if err != nil {
		h.logger.ErrorContext(ctx, "signing key unavailable", "error", err.Error())
		writeError(w, dErrors.New(dErrors.CodeUnavailable, "signing key unavailable"))
		return
	}

	jwk := jose.JSONWebKey{Key: publicKey, Use: "sig", Algorithm: "ES256"}
	thumbprint, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "compute key thumbprint failed"))
		return
	}
	jwk.KeyID = base64.RawURLEncoding.EncodeToString(thumbprint)

	writeJSON(w, http.StatusOK, jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
}
