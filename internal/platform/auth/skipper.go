package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication and session binding.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/ready": true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path()) || IsPublicPath(c.Request().URL.Path)
}

// IsPublicPath reports whether path is served without an account.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
