// Package contracts holds the small interfaces the application shell
// accepts from the domain packages.
package contracts

import "github.com/julienschmidt/httprouter"

// Handler is implemented by each domain's HTTP handler. The application
// collects every Handler at startup and asks each one to mount its routes
// on the shared router; handlers own their paths, the shell owns the
// middleware around them.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
