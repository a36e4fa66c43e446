// Package contracts holds the small interfaces shared between the
// application shell and the per-service HTTP handlers.
package contracts

import "github.com/julienschmidt/httprouter"

// Handler is implemented by the bookings and rooms handlers. The
// application shell calls RegisterRoutes once at startup to mount a
// service's endpoints on the shared router.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
