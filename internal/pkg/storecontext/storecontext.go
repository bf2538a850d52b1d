package storecontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stacksgate/stacksgate/app/models"
)

// Locals keys set by the auth middleware.
const (
	KeyStoreContext = "STORE_CONTEXT"
	KeyIsAdmin      = "IS_ADMIN"
)

// StoreContext carries the authenticated merchant for a request.
type StoreContext struct {
	StoreID uint
	Store   *models.Store
}

// GetStoreContext retrieves the store context from fiber context.
// Returns an empty context if none is set.
func GetStoreContext(c *fiber.Ctx) StoreContext {
	if ctx := c.Locals(KeyStoreContext); ctx != nil {
		return ctx.(StoreContext)
	}
	return StoreContext{}
}

// GetStore returns the authenticated store, or nil when unauthenticated.
func GetStore(c *fiber.Ctx) *models.Store {
	return GetStoreContext(c).Store
}

// GetStoreID returns the authenticated store's ID, or 0 when unauthenticated.
func GetStoreID(c *fiber.Ctx) uint {
	return GetStoreContext(c).StoreID
}

// IsAdmin reports whether the request passed the admin token check.
func IsAdmin(c *fiber.Ctx) bool {
	if v := c.Locals(KeyIsAdmin); v != nil {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}
