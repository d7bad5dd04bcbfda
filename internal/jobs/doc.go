// Package jobs implements background jobs for the vitals server.
//
// Jobs run on their own goroutine between Start and Stop and expose RunOnce
// for tests and manual triggers. HealthMonitor probes the database on an
// interval and records each outage as an alert after recovery:
//
//	monitor := jobs.NewHealthMonitor(mgr, alerts, logger, 30*time.Second)
//	monitor.Start()
//	defer monitor.Stop()
//
// Jobs log errors and keep running.
package jobs
