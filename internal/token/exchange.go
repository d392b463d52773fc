package token

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"go.opentelemetry.io/otel"

	"domicile/internal/platform/metrics"
	"domicile/internal/session/store"
	dErrors "domicile/pkg/domain-errors"
	"domicile/pkg/platform/sentinel"
	"domicile/pkg/requestcontext"
)

// Failure kinds for the exchange. The transport layer maps these onto OAuth2
// error codes.
const (
	ReasonMalformedRequest     = "malformed_request"
	ReasonUnsupportedGrantType = "unsupported_grant_type"
	ReasonGrantInvalid         = "grant_invalid"
	ReasonGrantAlreadyConsumed = "grant_already_consumed"
)

const grantTypeAuthorizationCode = "authorization_code"

// Request is a parsed token request.
type Request struct {
	Code        string
	ClientID    string
	RedirectURI string
	GrantType   string
}

// Response is the OAuth2 token response body.
type Response struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ParseRequest reads a form-encoded token request. Every parameter must
// appear exactly once; duplicates are as malformed as omissions.
func ParseRequest(form url.Values) (*Request, error) {
	read := func(name string) (string, error) {
		values, ok := form[name]
		if !ok || len(values) != 1 || values[0] == "" {
			return "", dErrors.Newf(dErrors.CodeBadRequest,
				"token request must carry exactly one %s value", name).
				WithReason(ReasonMalformedRequest)
		}
		return values[0], nil
	}

	var req Request
	var err error
	if req.Code, err = read("code"); err != nil {
		return nil, err
	}
	if req.ClientID, err = read("client_id"); err != nil {
		return nil, err
	}
	if req.RedirectURI, err = read("redirect_uri"); err != nil {
		return nil, err
	}
	if req.GrantType, err = read("grant_type"); err != nil {
		return nil, err
	}
	return &req, nil
}

// Exchange swaps a single-use authorization code for a bearer token.
type Exchange struct {
	sessions store.Store
	minter   *Minter
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewExchange wires the token exchange.
func NewExchange(sessions store.Store, minter *Minter, m *metrics.Metrics, logger *slog.Logger) *Exchange {
	return &Exchange{sessions: sessions, minter: minter, metrics: m, logger: logger}
}

// Exchange validates the grant and binds a freshly minted token to its
// session. The conditional bind in the store is what makes the code single
// use: codes are never deleted, so a replay resolves to the same session and
// is rejected there.
func (e *Exchange) Exchange(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := otel.Tracer("domicile/token").Start(ctx, "token.exchange")
	defer span.End()

	resp, err := e.exchange(ctx, req)
	if err != nil {
		e.metrics.TokensIssued.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	e.metrics.TokensIssued.WithLabelValues(metrics.OutcomeOK).Inc()
	return resp, nil
}

func (e *Exchange) exchange(ctx context.Context, req *Request) (*Response, error) {
	if req.GrantType != grantTypeAuthorizationCode {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unsupported grant type %s", req.GrantType).
			WithReason(ReasonUnsupportedGrantType)
	}

	session, err := e.sessions.FindByAuthorizationCode(ctx, req.Code)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, ReasonGrantInvalid,
			"authorization code is not valid")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "session lookup failed")
	}

	// Code re-issuance is last write wins and superseded index entries are
	// never cleaned up, so the presented code must match the one the session
	// currently holds.
	if session.AuthorizationCode != req.Code {
		return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, ReasonGrantInvalid,
			"authorization code is not valid")
	}

	if session.Expired(requestcontext.Now(ctx)) {
		return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, ReasonGrantInvalid,
			"session for authorization code has expired")
	}
	if session.ClientID != req.ClientID {
		return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, ReasonGrantInvalid,
			"client_id does not match the authorization request")
	}
	if session.RedirectURI != req.RedirectURI {
		return nil, dErrors.Newf(dErrors.CodeBadRequest,
			"redirect uri %s does not match redirect uri %s of the authorization request",
			req.RedirectURI, session.RedirectURI).WithReason(ReasonGrantInvalid)
	}
	if session.AccessToken != "" {
		return nil, alreadyConsumed()
	}

	accessToken, err := e.minter.Mint(ctx, session)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "mint access token failed")
	}
	if err := e.sessions.BindAccessToken(ctx, session.ID, accessToken); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, alreadyConsumed()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "bind access token failed")
	}

	e.logger.InfoContext(ctx, "access token issued", "session_id", session.ID)
	return &Response{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(e.minter.TTL().Seconds()),
	}, nil
}

func alreadyConsumed() error {
	return dErrors.NewWithReason(dErrors.CodeBadRequest, ReasonGrantAlreadyConsumed,
		"authorization code has already been used")
}
