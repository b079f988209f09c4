// Package logging builds the process-wide slog logger.
//
// The engine and HTTP layer receive a *slog.Logger by injection; this package
// only constructs one from configuration.
package logging
