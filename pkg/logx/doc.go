// Package logx configures quotebot's structured logging.
//
// logx.Logger wraps zerolog. Console output stays short (timestamp and
// file:line caller), the file sink writes JSON through a rotating
// lumberjack writer, and an optional Telegram sink forwards warnings to a
// chat behind a rate limiter.
package logx
