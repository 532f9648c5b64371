package api

const (
	// GET /ping to check the server is up
	pingEndpoint = "/ping"

	// cancellation routes

	// POST /cancel to cancel a subscription on the vendor payment processor
	cancelEndpoint = "/cancel"

	// vendor routes

	vendorsEndpointPrefix = "/vendors/"
	// GET /vendors/{vendorKey} to get the public information of a vendor
	vendorEndpoint = "/vendors/{vendorKey}"
)
