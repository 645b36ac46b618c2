package graph

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/docregistry/apiserver/internal/auth"
	"github.com/docregistry/apiserver/internal/services"
	"github.com/docregistry/apiserver/internal/store"
)

var (
	errNotFound = errors.New("not found")
	errInternal = errors.New("internal error")
)

// clientError converts a service error into the message returned to the
// client. Unexpected errors are logged and hidden.
func (r *Resolver) clientError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrNotAuthenticated),
		errors.Is(err, auth.ErrNotAuthorized),
		errors.Is(err, auth.ErrInvalidCredentials):
		return err
	case errors.Is(err, store.ErrNotFound):
		return errNotFound
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrOverlap),
		errors.Is(err, services.ErrStorageDisabled):
		return errors.New(strings.TrimPrefix(err.Error(), services.ErrValidation.Error()+": "))
	case errors.Is(err, errRateLimited):
		return err
	default:
		r.log.WithContext(ctx).Error("resolver failed", zap.Error(err))
		return errInternal
	}
}
