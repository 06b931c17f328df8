// Package logging provides structured logging for eternal.
//
// Logger wraps Zap with context-aware methods. Every call pulls request and
// trace correlation out of the context, so handlers and pipeline stages only
// log what is specific to them:
//
//	ctx = logging.WithRequestID(ctx, reqID)
//	ctx = logging.WithArchiveID(ctx, archive.IDFor(prompt))
//	logger.Info(ctx, "archive hit", zap.Int("access_count", n))
//
// Output goes to stdout (JSON or console) and optionally to an OpenTelemetry
// log provider through the otelzap bridge. Keys such as api_key and
// authorization are redacted by the encoder, and Secret fields only ever log
// their length.
package logging
