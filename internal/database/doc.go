// Package database is the data-access core for vitals.
//
// It owns the single long-lived session to the store: connecting and
// authenticating, running queries with one automatic reconnect, scoping
// transactions and probing liveness.
//
// # Manager
//
// A Manager is built from a Config and a Driver and injected into the
// services that need it:
//
//	mgr := database.NewManager(cfg, database.SurrealDriver{}, database.WithLogger(log))
//	defer mgr.Disconnect(ctx)
//
//	rows, err := mgr.Execute(ctx, "SELECT * FROM alert WHERE patient = $patient", map[string]any{
//	    "patient": patientID,
//	})
//
// Connect is idempotent and runs under the configured retry policy. Execute
// connects lazily. When a query fails for a transport reason the session is
// dropped, re-established and the query resubmitted exactly once.
//
// # Transactions
//
// Transaction runs a function between BEGIN and COMMIT, or CANCEL when the
// function returns an error or panics:
//
//	err := mgr.Transaction(ctx, func(ctx context.Context, tx *database.Tx) error {
//	    if _, err := tx.Execute(ctx, "CREATE alert CONTENT $a", map[string]any{"a": a}); err != nil {
//	        return err
//	    }
//	    _, err := mgr.Execute(ctx, "UPDATE patient:1 SET alerts += 1", nil) // joins tx via ctx
//	    return err
//	})
//
// Transactions are all-or-nothing: nothing a cancelled transaction ran is
// kept. The SurrealDB driver stages statements and sends them in one
// BEGIN/COMMIT request, so statements inside a transaction return no rows
// until commit; see Tx.Results.
//
// # Errors
//
// Use errors.Is with ErrConnection, ErrAuthentication, ErrQuery, ErrNotFound,
// ErrTransaction, and errors.As with the typed errors for details.
package database
