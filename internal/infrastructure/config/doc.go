// Package config handles loading and validating hassbridge configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with environment variables (github.com/caarlos0/env)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The upstream bearer token must come from SUPERVISOR_TOKEN, never the file
//   - The token is never logged
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml", true)
//	if err != nil {
//	    return fmt.Errorf("loading config: %w", err)
//	}
//	fmt.Println(cfg.Transport)
package config
