package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/citizen-booking/internal/authscope"
)

// RequireGroups returns a middleware that admits only callers holding at
// least one group of the given kinds.  It assumes Authenticate ran before
// it; a missing caller is rejected with 401, a caller without a matching
// group with 403.
func RequireGroups(kinds ...authscope.Kind) echo.MiddlewareFunc {
	allowed := make(map[authscope.Kind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, ok := CallerFrom(c)
			if !ok {
				return unauthorized(c, "no caller")
			}
			for _, g := range caller.Groups {
				if allowed[g.Kind] {
					return next(c)
				}
			}
			return deny(c, http.StatusForbidden, "forbidden", "caller group not allowed")
		}
	}
}

// StaffKinds are the groups allowed on administrative routes.
var StaffKinds = []authscope.Kind{
	authscope.KindServiceProvider,
	authscope.KindServiceAdmin,
	authscope.KindOrganisationAdmin,
	authscope.KindAgency,
}

// AllKinds admits every authenticated caller.
var AllKinds = append([]authscope.Kind{authscope.KindAnonymous, authscope.KindCitizen}, StaffKinds...)
