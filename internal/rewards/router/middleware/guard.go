package middleware

import (
	"path"
	"strings"

	"github.com/SakuraBurst/rewards/internal/rewards/session"
	"github.com/gofiber/fiber/v2"
)

type PathClass int

const (
	PathPublic PathClass = iota
	PathProtected
	PathAuthOnly
)

const (
	LoginPath = "/login"
	HomePath  = "/"
)

var authOnlyPaths = map[string]struct{}{
	"/login":           {},
	"/signup":          {},
	"/forgot-password": {},
	"/reset-password":  {},
}

// ClassifyPath sorts page paths: "/" and the /rewards tree need a session,
// the auth pages are for visitors without one. Paths compare the way the
// router matches them, so case, trailing slashes and dot segments are
// ignored.
func ClassifyPath(p string) PathClass {
	p = path.Clean("/" + strings.ToLower(p))
	if p == HomePath || p == "/rewards" || strings.HasPrefix(p, "/rewards/") {
		return PathProtected
	}
	if _, ok := authOnlyPaths[p]; ok {
		return PathAuthOnly
	}
	return PathPublic
}

// RouteGuard redirects page requests by session state. A session is a
// session cookie that verifies against jwtSecret.
func RouteGuard(jwtSecret []byte) func(*fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		class := ClassifyPath(c.Path())
		if class == PathPublic {
			return c.Next()
		}
		_, err := session.Parse(c.Cookies(session.CookieName), jwtSecret)
		signedIn := err == nil
		switch {
		case class == PathProtected && !signedIn:
			return c.Redirect(LoginPath)
		case class == PathAuthOnly && signedIn:
			return c.Redirect(HomePath)
		}
		return c.Next()
	}
}
