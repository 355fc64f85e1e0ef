package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// PayloadInt64 parses callback payload as int64.
func PayloadInt64(c tele.Context) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(CallbackPayload(c)), 10, 64)
}

// PayloadIDKey parses payloads shaped "<id><sep><key>", e.g. "1001:wallet".
func PayloadIDKey(c tele.Context, sep string) (int64, string, error) {
	return SplitIDKey(CallbackPayload(c), sep)
}

// SplitIDKey is PayloadIDKey for a raw payload string.
func SplitIDKey(payload, sep string) (int64, string, error) {
	idPart, key, ok := strings.Cut(payload, sep)
	if !ok || key == "" {
		return 0, "", strconv.ErrSyntax
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", err
	}
	return id, key, nil
}
