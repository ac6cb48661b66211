/*
Package log provides structured logging for Burrow using zerolog.

Burrow is a library first: until the host calls Init, the base logger is
a no-op and an embedded cache emits nothing. Init parses a zerolog level
name and selects JSON (default) or console output:

	if err := log.Init(log.Config{Level: "info", Console: true}); err != nil {
		return err
	}

Caches and standalone components derive child loggers so every line
carries its origin:

	logger := log.WithCache("sessions")
	logger.Warn().Str("key", key).Msg("Storage read failed, retrying")

	watcher := log.WithComponent("config-watcher")

The write-behind package layers its own severity model (including the
EXTERNAL_* severities and FATAL) and per-classifier rate limiting on top
of these child loggers; this package only decides where the stream goes
and which zerolog levels pass.
*/
package log
