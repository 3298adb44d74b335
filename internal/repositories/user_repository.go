package repositories

import (
	"context"

	"github.com/SAP-F-2025/cbt-service/internal/models"
)

// UserRepository reads identities owned by Casdoor
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
}
