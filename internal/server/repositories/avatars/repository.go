package avatars

import (
	"context"

	"github.com/dmitrijs2005/usersvc/internal/server/models"
)

// Repository stores at most one AvatarRecord per user.
type Repository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.AvatarRecord, error)
	Upsert(ctx context.Context, rec *models.AvatarRecord) error
	Delete(ctx context.Context, userID int64) (bool, error)
	Locations(ctx context.Context) ([]string, error)
}
