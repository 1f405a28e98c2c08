package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks if the actor has one of the
// specified roles. Operator tokens with role "admin" pass every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actorRole := ActorRoleFromContext(c.Request().Context())
			if actorRole == "admin" {
				return next(c)
			}
			for _, required := range roles {
				if actorRole == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
