// Package model defines the data structures shared by the vitals services.
//
// It holds the Alert entity with its request types, and the RFC 9457
// problem details used for HTTP error responses:
//
//	req := &model.CreateAlertRequest{Source: "database", Severity: model.SeverityCritical, Message: "..."}
//	if errs := req.Validate(); len(errs) > 0 {
//	    model.NewValidationError(errs).WriteJSON(w)
//	    return
//	}
package model
