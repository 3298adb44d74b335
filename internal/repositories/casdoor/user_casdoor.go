package casdoor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/cbt-service/internal/cache"
	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// userClient is the part of the Casdoor SDK client this repository calls.
type userClient interface {
	GetUserByUserId(userId string) (*casdoorsdk.User, error)
}

type UserCasdoor struct {
	client userClient
	cache  *cache.CacheHelper
}

const userCacheTTL = 15 * time.Minute

func NewUserCasdoor(config CasdoorConfig, redisClient *redis.Client) repositories.UserRepository {
	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)
	return newUserCasdoor(client, redisClient)
}

func newUserCasdoor(client userClient, redisClient *redis.Client) *UserCasdoor {
	return &UserCasdoor{
		client: client,
		cache:  cache.NewCacheHelper(redisClient, "cbt:user:", userCacheTTL),
	}
}

// ===== CONVERSION METHODS =====

func convertCasdoorUser(cu *casdoorsdk.User) *models.User {
	if cu == nil {
		return nil
	}

	user := &models.User{
		ID:       cu.Id,
		FullName: cu.DisplayName,
		Email:    cu.Email,
		Role:     roleOf(cu),
	}
	if cu.Avatar != "" {
		avatar := cu.Avatar
		user.AvatarURL = &avatar
	}
	if user.FullName == "" {
		user.FullName = cu.Name
	}
	return user
}

func roleOf(cu *casdoorsdk.User) models.UserRole {
	if cu.IsAdmin {
		return models.RoleAdmin
	}
	names := make([]string, 0, len(cu.Roles))
	for _, r := range cu.Roles {
		if r != nil {
			names = append(names, r.Name)
		}
	}
	return PrimaryRole(names)
}

// PrimaryRole picks the strongest known role from Casdoor role names.
// Users with no recognised role are treated as students.
func PrimaryRole(names []string) models.UserRole {
	best := models.RoleStudent
	for _, name := range names {
		switch MapCasdoorRole(name) {
		case models.RoleAdmin:
			return models.RoleAdmin
		case models.RoleTeacher:
			best = models.RoleTeacher
		}
	}
	return best
}

func MapCasdoorRole(name string) models.UserRole {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "admin", "administrator":
		return models.RoleAdmin
	case "teacher", "instructor", "examiner":
		return models.RoleTeacher
	default:
		return models.RoleStudent
	}
}

// ===== READ OPERATIONS =====

// GetByID retrieves a user by ID, caching Casdoor lookups in redis
func (u *UserCasdoor) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := u.cache.CacheOrExecute(ctx, "id:"+id, &user, func() (interface{}, error) {
		cu, err := u.client.GetUserByUserId(id)
		if err != nil {
			return nil, fmt.Errorf("failed to get user from Casdoor: %w", err)
		}
		if cu == nil {
			return nil, repositories.ErrNotFound
		}
		return convertCasdoorUser(cu), nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDs retrieves multiple users, skipping ids Casdoor does not know
func (u *UserCasdoor) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		user, err := u.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (u *UserCasdoor) ExistsByID(ctx context.Context, id string) (bool, error) {
	_, err := u.GetByID(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	return false, err
}
