// Package config loads the estate-authd daemon configuration from YAML,
// applies ESTATE_AUTH_* environment overrides and validates the result.
//
// The daemon file covers process concerns (listen address, Redis,
// Postgres, logging, seed principals). Engine tuning lives under auth and
// is translated to [estateAuth.Config] by [Config.EngineConfig].
package config
