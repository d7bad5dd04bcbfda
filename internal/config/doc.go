// Package config loads and validates configuration for the vitals services.
//
// Configuration comes from environment variables prefixed with VITALS_. A
// .env file in the working directory is loaded first, if present. Nested
// settings are separated by a double underscore:
//
//	VITALS_ENV=production
//	VITALS_DATABASE__URL=wss://db.example.com
//	VITALS_DATABASE__NAMESPACE=vitals
//	VITALS_DATABASE__DATABASE=main
//	VITALS_DATABASE__AUTH__METHOD=database
//	VITALS_DATABASE__AUTH__USERNAME=svc
//	VITALS_DATABASE__AUTH__PASSWORD=secret
//	VITALS_RETRY__MAX_ATTEMPTS=5
//	VITALS_RETRY__BASE_DELAY=100ms
//	VITALS_HEALTH__TIMEOUT=5s
//	VITALS_LOG__LEVEL=info
//
// Anything not set keeps the value from Default. Load validates the result
// and reports every problem at once, named by its environment variable:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dbCfg, err := cfg.ManagerConfig()
package config
