package constants

// Static route constants
const (
	InvoiceViewRoute = "/i"
	PayRoute         = "/pay"
	APIV1Prefix      = "/api/v1"
	AdminAPIPrefix   = "/api/admin"
)
