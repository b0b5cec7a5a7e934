// Package config loads connopsd configuration from YAML or TOML files with
// CONNOPS_* environment overrides.
//
// Credentials in database.dsn and http.jwt_secret may be given as ${VAR}
// references or secretref:env:<VAR> / secretref:file:<name> references,
// resolved through package secret before validation.
package config
