// Package logging provides the structured logger shared by every hassbridge
// component.
//
// Logger embeds *slog.Logger, so call sites use the familiar
// Info/Warn/Error/Debug methods with key-value pairs:
//
//	log.Info("upstream configured", "url", baseURL)
//
// Every entry carries service=hassbridge and the build version. Format is
// JSON unless logging.format is "text".
//
// The stdio and mcp transports own stdout, so main forces output to stderr
// for those modes. Tests use NewWithWriter with io.Discard.
//
// Never log the upstream bearer token or call_service data, which may carry
// secrets.
package logging
