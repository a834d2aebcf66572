package middleware

// identity.go holds the helper that reads the authenticated user back out of
// the Echo context.  JWTAuth stores the id as uint64; older callers may have
// stored a string or a JSON number, which are accepted too.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user id, or false for guests.
func UserID(c echo.Context) (uint64, bool) {
	switch t := c.Get(CtxUserID).(type) {
	case uint64:
		return t, t != 0
	case int64:
		return uint64(t), t > 0
	case float64:
		return uint64(t), t > 0
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n != 0 {
			return n, true
		}
	}
	return 0, false
}

// userKey renders the user for rate limit keys; guests are "anon".
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
