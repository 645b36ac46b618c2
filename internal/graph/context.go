package graph

import (
	"context"
	"time"
)

// Session lets resolvers manage the refresh cookie of the current HTTP
// exchange.
type Session interface {
	SetRefreshToken(token string, expires time.Time)
	ClearRefreshToken()
}

// Request carries the parts of the HTTP request resolvers may look at.
type Request struct {
	Authorization string
	ClientIP      string
	Session       Session
}

type requestKey struct{}

// WithRequest attaches req to ctx. The GraphQL HTTP handler calls it before
// executing an operation.
func WithRequest(ctx context.Context, req Request) context.Context {
	return context.WithValue(ctx, requestKey{}, req)
}

func requestFrom(ctx context.Context) Request {
	req, _ := ctx.Value(requestKey{}).(Request)
	if req.Session == nil {
		req.Session = noSession{}
	}
	return req
}

type noSession struct{}

func (noSession) SetRefreshToken(string, time.Time) {}
func (noSession) ClearRefreshToken()                {}
