package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/myanride/dispatch/pkg/common"
)

// Permission names an action a caller may perform. Authorization is expressed
// as capability sets per role rather than role-name checks scattered through
// handlers, keeping it entirely at the HTTP boundary.
type Permission string

const (
	PermRequestRide          Permission = "rides:request"
	PermCancelRide           Permission = "rides:cancel"
	PermRespondToOffer       Permission = "rides:respond"
	PermUpdateLocation       Permission = "drivers:location"
	PermManagePricing        Permission = "admin:pricing"
	PermManageTownships      Permission = "admin:townships"
	PermManageDispatchRounds Permission = "admin:dispatch-rounds"
)

// PermissionSet is the set of actions granted to a role
type PermissionSet map[Permission]struct{}

// Has reports whether the set grants the permission
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

func newPermissionSet(perms ...Permission) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// rolePermissions maps each role to its capability set
var rolePermissions = map[string]PermissionSet{
	"rider":  newPermissionSet(PermRequestRide, PermCancelRide),
	"driver": newPermissionSet(PermRespondToOffer, PermUpdateLocation),
	"admin": newPermissionSet(
		PermManagePricing, PermManageTownships, PermManageDispatchRounds,
	),
}

// RequirePermission rejects callers whose role does not grant the permission.
// Must run after AuthMiddleware.
func RequirePermission(p Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := GetUserRole(c)
		if err != nil {
			common.ErrorResponse(c, 401, "unauthorized")
			c.Abort()
			return
		}

		if !rolePermissions[role].Has(p) {
			common.ErrorResponse(c, 403, "insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}
