// Package services contains the server-side business logic: the avatar
// cache (AvatarService) and the user-creation flow (UserService).
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/users"
)

// UserDirectory is the external identity service, the system of record for
// users.
type UserDirectory interface {
	Create(ctx context.Context, u models.NewUser) (int64, error)
	FetchByID(ctx context.Context, id int64) (*models.User, error)
}

// ImageFetcher downloads image bytes from a URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// upstreamErr keeps common.ErrNotFound and already classified errors as they
// are and marks anything else (transport failures) as upstream unavailable.
func upstreamErr(err error) error {
	if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrUpstreamUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrUpstreamUnavailable, err)
}

// lookupUser asks the identity service first and falls back to the local
// projection when the identity service does not know the id, since it is not
// required to keep the users it was sent. The identity service's
// common.ErrNotFound is returned when neither has the user.
func lookupUser(ctx context.Context, dir UserDirectory, local users.Repository, id int64) (*models.User, error) {
	u, err := dir.FetchByID(ctx, id)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, upstreamErr(err)
	}

	lu, lerr := local.GetByID(ctx, id)
	switch {
	case lerr == nil:
		return lu, nil
	case errors.Is(lerr, common.ErrNotFound):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: lookup user %d: %v", common.ErrStorageFault, id, lerr)
	}
}
