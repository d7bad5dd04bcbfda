// Package repository implements the data access layer on top of
// database.Manager.
//
// Each repository takes a Store (satisfied by *database.Manager), runs
// SurrealQL through it and maps rows onto model structs. Lookups that find
// nothing return (nil, nil); multi-record writes go through database.Batch
// so they apply all-or-nothing:
//
//	alerts := repository.NewAlertRepository(mgr)
//	if err := alerts.Acknowledge(ctx, []string{"alert:a", "alert:b"}); err != nil {
//	    return err
//	}
package repository
