package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cll-genie-server/internal/domain"
)

// Context keys set by this package.
const (
	CorrelationIDKey = "correlation_id"
	UserKey          = "user"
	GroupsKey        = "groups"
	SuperUserKey     = "super_user"
)

// Default headers written by the upstream authenticator.
const (
	DefaultUserHeader   = "X-Remote-User"
	DefaultGroupsHeader = "X-Remote-Groups"
)

// ActingUser reads the user and groups asserted by the authenticating
// proxy. Requests without a user are rejected.
func ActingUser(cfg domain.AuthConfig) gin.HandlerFunc {
	userHeader := cfg.UserHeader
	if userHeader == "" {
		userHeader = DefaultUserHeader
	}
	groupsHeader := cfg.GroupsHeader
	if groupsHeader == "" {
		groupsHeader = DefaultGroupsHeader
	}
	superGroups := make(map[string]bool, len(cfg.SuperUserGroups))
	for _, g := range cfg.SuperUserGroups {
		superGroups[g] = true
	}

	return func(c *gin.Context) {
		user := strings.TrimSpace(c.GetHeader(userHeader))
		if user == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":          "Missing acting user",
				"correlation_id": c.GetString(CorrelationIDKey),
			})
			return
		}

		groups := splitGroups(c.GetHeader(groupsHeader))
		super := false
		for _, g := range groups {
			if superGroups[g] {
				super = true
				break
			}
		}

		c.Set(UserKey, user)
		c.Set(GroupsKey, groups)
		c.Set(SuperUserKey, super)
		c.Next()
	}
}

func splitGroups(header string) []string {
	groups := []string{}
	for _, g := range strings.Split(header, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// RequireSuperUser rejects requests from users outside the super-user groups.
func RequireSuperUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(SuperUserKey) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":          "This action requires super-user rights",
				"correlation_id": c.GetString(CorrelationIDKey),
			})
			return
		}
		c.Next()
	}
}

// User returns the acting user of the request.
func User(c *gin.Context) string {
	return c.GetString(UserKey)
}
