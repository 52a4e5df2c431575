package hoyolab

import "strings"

// uidKeys are the cookie keys that carry the HoYoLAB account id, newest first.
var uidKeys = []string{"ltuid_v2", "ltuid", "account_id_v2", "account_id"}

// ExtractLtuid returns the HoYoLAB account id carried by a session cookie.
func ExtractLtuid(cookie string) (string, bool) {
	values := parseCookie(cookie)
	for _, key := range uidKeys {
		v, ok := values[key]
		if !ok || v == "" || !isDigits(v) {
			continue
		}
		return v, true
	}
	return "", false
}

func parseCookie(cookie string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(cookie, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
