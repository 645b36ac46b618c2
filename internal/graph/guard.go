package graph

import (
	"errors"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/docregistry/apiserver/internal/auth"
	"github.com/docregistry/apiserver/internal/metrics"
)

// authenticated wraps a resolver so it only runs for requests carrying a
// valid access token. The verified claims are put on the resolver context.
func (r *Resolver) authenticated(next graphql.FieldResolveFn) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		claims, err := r.issuer.Authenticate(requestFrom(p.Context).Authorization)
		if err != nil {
			r.reject(p, err)
			return nil, auth.ErrNotAuthenticated
		}
		p.Context = auth.ContextWithClaims(p.Context, claims)
		return next(p)
	}
}

// clerk is authenticated plus the clerk role check.
func (r *Resolver) clerk(next graphql.FieldResolveFn) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		claims, err := r.issuer.AuthenticateClerk(requestFrom(p.Context).Authorization)
		if err != nil {
			r.reject(p, err)
			if errors.Is(err, auth.ErrNotAuthorized) {
				return nil, auth.ErrNotAuthorized
			}
			return nil, auth.ErrNotAuthenticated
		}
		p.Context = auth.ContextWithClaims(p.Context, claims)
		return next(p)
	}
}

func (r *Resolver) reject(p graphql.ResolveParams, err error) {
	reason := "not_authenticated"
	if errors.Is(err, auth.ErrNotAuthorized) {
		reason = "not_authorized"
	}
	metrics.GuardRejections.WithLabelValues(reason).Inc()
	r.log.WithContext(p.Context).Debug("guard rejected",
		zap.String("field", p.Info.FieldName),
		zap.String("reason", reason),
	)
}

// claimsFrom returns the claims put on the context by a guard. Resolvers
// wrapped in a guard can rely on them being present.
func claimsFrom(p graphql.ResolveParams) auth.AccessClaims {
	claims, _ := auth.ClaimsFromContext(p.Context)
	return claims
}
