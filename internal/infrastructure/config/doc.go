// Package config handles loading and validating lwm2md configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with LWM2M_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Sensitive values (MQTT password, InfluxDB token, JWT secret) should be set via
// environment variables rather than the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Name)
package config
