// Package config handles loading and validating the asset transfer service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with AMS_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (passwords, tokens, secrets) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The JWT and signing secrets must be changed from development values before production use
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
