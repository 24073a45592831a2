/*
Package log provides structured logging for botpack using zerolog.

The package-level Logger is a no-op until the CLI calls Setup, keeping
library embedders silent by default. Components obtain scoped child
loggers via For and attach per-event fields:

	log.Setup("debug", false, nil)
	logger := log.For("sync")
	logger.Info().Str("target", "claude").Msg("sync complete")
*/
package log
