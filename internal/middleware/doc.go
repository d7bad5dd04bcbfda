// Package middleware provides HTTP middleware for the vitals server.
//
//	handler := middleware.Chain(mux,
//	    middleware.RequestID,
//	    middleware.Logger(log),
//	    middleware.Recovery(log),
//	    middleware.Timeout(cfg.Server.WriteTimeout),
//	)
//
// Logger stores a request-scoped zerolog.Logger carrying the request ID in
// the request context; handlers read it with zerolog.Ctx(r.Context()).
package middleware
