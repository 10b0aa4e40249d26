// Package tgui holds small helpers for Telegram replies: HTML-safe text
// fragments, callback data in the "plugin:action:payload" form, inline
// keyboards built from transport buttons, and a TTL token store for payloads
// that do not fit in a callback.
package tgui
