package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/cbt-service/internal/config"
	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
	"github.com/SAP-F-2025/cbt-service/internal/repositories/casdoor"
	"github.com/SAP-F-2025/cbt-service/internal/utils"
)

// TokenParser validates a bearer token. *casdoorsdk.Client satisfies it.
type TokenParser interface {
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// CasdoorAuthMiddleware provides authentication using Casdoor SDK
type CasdoorAuthMiddleware struct {
	BaseHandler
	parser   TokenParser
	userRepo repositories.UserRepository
}

// NewCasdoorAuthMiddleware creates a new Casdoor authentication middleware
func NewCasdoorAuthMiddleware(cfg config.CasdoorConfig, userRepo repositories.UserRepository, logger utils.Logger) *CasdoorAuthMiddleware {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)
	return NewCasdoorAuthMiddlewareWithParser(client, userRepo, logger)
}

func NewCasdoorAuthMiddlewareWithParser(parser TokenParser, userRepo repositories.UserRepository, logger utils.Logger) *CasdoorAuthMiddleware {
	return &CasdoorAuthMiddleware{
		BaseHandler: NewBaseHandler(logger),
		parser:      parser,
		userRepo:    userRepo,
	}
}

// AuthMiddleware returns a Gin middleware function for Casdoor authentication
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			cam.respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authorization header missing", nil)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			cam.respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header format", nil)
			return
		}

		claims, err := cam.parser.ParseJwtToken(tokenParts[1])
		if err != nil {
			cam.respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
			return
		}

		user, err := cam.extractUserFromClaims(c.Request.Context(), claims)
		if err != nil {
			cam.respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil)
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Set("user_role", user.Role)

		c.Next()
	}
}

// RequireRoleMiddleware checks if user has required role. Admins pass every check.
func (cam *CasdoorAuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := GetUserRoleFromContext(c)
		if err != nil {
			cam.respondError(c, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
			return
		}

		for _, requiredRole := range requiredRoles {
			if role == requiredRole || role == models.RoleAdmin {
				c.Next()
				return
			}
		}

		cam.respondError(c, http.StatusForbidden, "FORBIDDEN",
			fmt.Sprintf("insufficient permissions, required role: %v", requiredRoles), nil)
	}
}

// extractUserFromClaims prefers the Casdoor user record and falls back to
// the token claims when the lookup fails.
func (cam *CasdoorAuthMiddleware) extractUserFromClaims(ctx context.Context, claims *casdoorsdk.Claims) (*models.User, error) {
	userID := claims.Id
	if userID == "" {
		return nil, fmt.Errorf("invalid user ID in token")
	}

	user, err := cam.userRepo.GetByID(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !repositories.IsNotFoundError(err) && cam.logger != nil {
		cam.logger.Warn("User lookup failed, using token claims", "user_id", userID, "error", err)
	}
	return userFromClaims(claims), nil
}

func userFromClaims(claims *casdoorsdk.Claims) *models.User {
	user := &models.User{
		ID:       claims.Id,
		FullName: claims.DisplayName,
		Email:    claims.Email,
		Role:     roleFromClaims(claims),
	}
	if user.FullName == "" {
		user.FullName = claims.Name
	}
	if claims.Avatar != "" {
		avatar := claims.Avatar
		user.AvatarURL = &avatar
	}
	return user
}

func roleFromClaims(claims *casdoorsdk.Claims) models.UserRole {
	if claims.IsAdmin {
		return models.RoleAdmin
	}
	names := []string{claims.Type}
	for _, r := range claims.Roles {
		if r != nil {
			names = append(names, r.Name)
		}
	}
	return casdoor.PrimaryRole(names)
}

// GetUserFromContext extracts user from Gin context
func GetUserFromContext(c *gin.Context) (*models.User, error) {
	user, exists := c.Get("user")
	if !exists {
		return nil, fmt.Errorf("user not found in context")
	}

	userModel, ok := user.(*models.User)
	if !ok {
		return nil, fmt.Errorf("invalid user type in context")
	}

	return userModel, nil
}

// GetUserRoleFromContext extracts user role from Gin context
func GetUserRoleFromContext(c *gin.Context) (models.UserRole, error) {
	userRole, exists := c.Get("user_role")
	if !exists {
		return "", fmt.Errorf("user role not found in context")
	}

	role, ok := userRole.(models.UserRole)
	if !ok {
		return "", fmt.Errorf("invalid user role type in context")
	}

	return role, nil
}
