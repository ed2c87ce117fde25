// Package chi adapts the x402 payment gate to chi routers. Chi middleware
// is plain func(http.Handler) http.Handler, so this is a direct re-export
// of the stdlib gate with a chi-flavored constructor.
package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	xhttp "github.com/aeither/x402-starter-kit/http"
)

// NewPaymentMiddleware returns chi-compatible payment gate middleware.
//
//	r := chi.NewRouter()
//	r.Group(func(r chi.Router) {
//	    r.Use(chix402.NewPaymentMiddleware(config))
//	    r.Get("/premium", premiumHandler)
//	})
func NewPaymentMiddleware(config *xhttp.Config) func(http.Handler) http.Handler {
	return xhttp.NewPaymentMiddleware(config)
}

// Mount attaches a gated subrouter at pattern, a convenience for the common
// "everything under /api/premium is paid" layout.
func Mount(r chi.Router, pattern string, config *xhttp.Config, sub http.Handler) {
	r.Route(pattern, func(r chi.Router) {
		r.Use(NewPaymentMiddleware(config))
		r.Handle("/*", sub)
	})
}
