// Package handler provides the HTTP handlers of the vitals server.
//
// Each handler depends on a small interface declared next to it, so tests
// substitute fakes for the repository or the database manager:
//
//   - HealthHandler: GET /health, the database liveness probe
//   - AlertHandler: /v1/alerts, operational alerts raised by the health
//     monitor or by operators
//
// Successful responses are wrapped by WriteData or WriteCollection. Errors
// are RFC 9457 Problem Details; MapDatabaseError turns data-access errors
// into responses without exposing statements or credentials.
package handler
