// Package config loads, normalizes, and validates MediaDNA configuration.
//
// Configuration is read from TOML (default ~/.config/mediadna/config.toml,
// falling back to ./mediadna.toml), then selected environment variables
// override the file: MEDIADNA_DB_KIND, MEDIADNA_DB_LOCATION and LOG_LEVEL.
package config
