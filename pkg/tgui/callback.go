package tgui

import "strings"

// MaxCallbackDataLen is Telegram's limit for callback_data, in bytes.
const MaxCallbackDataLen = 64

// Data formats inline callback data as "plugin:action:payload".
// Payload is kept as-is (no escaping). Payloads that may exceed the limit
// belong in a TokenStore.
func Data(plugin, action, payload string) string {
	plugin = strings.TrimSpace(plugin)
	action = strings.TrimSpace(action)
	if payload == "" {
		return plugin + ":" + action
	}
	return plugin + ":" + action + ":" + payload
}

// ParseData splits callback data produced by Data. The payload may itself
// contain ':'.
func ParseData(data string) (plugin, action, payload string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	if len(parts) == 3 {
		payload = parts[2]
	}
	return parts[0], parts[1], payload, true
}

// Fits reports whether data can be sent as callback_data.
func Fits(data string) bool { return len(data) <= MaxCallbackDataLen }
