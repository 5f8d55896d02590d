// Package detect classifies environment variable (key, value) pairs as
// credential material. All functions are pure and perform no I/O; the
// secretize pipeline and the dry-run reporting are built on top of them.
package detect

import (
	"regexp"
	"strings"
)

// Action says what the secretize pipeline should do with a (key, value) pair.
type Action string

const (
	// ActionSkip means the key does not look sensitive at all.
	ActionSkip Action = "skip"

	// ActionWarn means the key is sensitive but the value is an unfilled
	// placeholder; the user should be told, nothing should be stored.
	ActionWarn Action = "warn"

	// ActionStore means the value should be encrypted and replaced with a
	// secret reference.
	ActionStore Action = "store"
)

// Detection is the full classification of a single (key, value) pair.
type Detection struct {
	IsSecretKey     bool
	IsPlaceholder   bool
	LooksLikeSecret bool
	Action          Action
}

// sensitiveKeyPatterns are matched case-insensitively as substrings of the
// key name. The bare word "auth" is handled separately with an exact match
// so that AUTHOR, AUTHORITY etc. don't trip it.
var sensitiveKeyPatterns = []string{
	"api_key", "apikey", "api-key",
	"token",
	"secret",
	"password", "passwd", "pwd",
	"credential",
	"authorization",
	"bearer",
	"private_key", "private-key", "privatekey",
	"client_secret", "client-secret",
	"jwt",
	"oauth",
	"session_id", "session-id", "sessionid",
	"cookie",
	"access_key", "access-key", "accesskey",
	"signing_key", "signing-key",
}

// IsSecretKey reports whether the key name suggests its value is a credential.
func IsSecretKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return false
	}
	if k == "auth" {
		return true
	}
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(k, pattern) {
			return true
		}
	}
	return false
}

var (
	// Repeated x runs cover both bare placeholders (xxxxxxxx) and
	// fake-prefix ones (sk-xxxxxxxx).
	repeatedXRe = regexp.MustCompile(`[xX]{4,}`)

	bracketedRe = regexp.MustCompile(`^\s*(<.*>|\[.*\]|\{.*\})\s*$`)
)

var placeholderMarkers = []string{
	"changeme", "change-me", "change_me",
	"placeholder",
	"todo",
	"fixme",
	"replace-me", "replace_me", "replaceme",
	"dummy",
	"example",
	"your api key", "your key here", "your token",
	"***",
}

// IsPlaceholder reports whether value is a templated or unfilled stand-in
// rather than a real credential. Empty and very short strings are never
// placeholders; they are simply not secrets.
func IsPlaceholder(value string) bool {
	v := strings.TrimSpace(value)
	if len(v) <= 3 {
		return false
	}

	lower := strings.ToLower(v)

	if strings.HasPrefix(lower, "your_") || strings.HasPrefix(lower, "your ") {
		return true
	}
	if strings.HasSuffix(lower, "_here") || strings.HasSuffix(lower, "-here") {
		return true
	}
	if bracketedRe.MatchString(v) {
		return true
	}
	if repeatedXRe.MatchString(v) {
		return true
	}
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// knownTokenPrefixes are shapes issued by real providers. A value starting
// with one of these is accepted regardless of length heuristics.
var knownTokenPrefixes = []string{
	"sk-",
	"ghp_", "gho_", "ghu_", "ghs_", "ghr_",
	"github_pat_",
	"xoxb-", "xoxp-", "xoxa-",
	"eyJ", // JWT header
}

var awsAccessKeyRe = regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`)

// LooksLikeRealSecret reports whether value has the shape of an actual
// credential: a known provider token prefix, or a long mixed run of
// letters and digits. It is advisory only; a sensitive key with a value
// this function rejects is still stored.
func LooksLikeRealSecret(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}

	for _, prefix := range knownTokenPrefixes {
		if strings.HasPrefix(v, prefix) && len(v) > len(prefix)+8 {
			return true
		}
	}
	if awsAccessKeyRe.MatchString(v) {
		return true
	}

	if len(v) < 20 {
		return false
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range v {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}

	classes := 0
	for _, has := range []bool{hasUpper, hasLower, hasDigit} {
		if has {
			classes++
		}
	}
	return classes >= 2
}

// Detect classifies a single (key, value) pair.
//
// A sensitive key with a non-placeholder value is always stored, even when
// the value doesn't match a known secret shape: erring toward protection
// beats erring toward precision.
func Detect(key, value string) Detection {
	d := Detection{
		IsSecretKey:     IsSecretKey(key),
		IsPlaceholder:   IsPlaceholder(value),
		LooksLikeSecret: LooksLikeRealSecret(value),
	}

	switch {
	case !d.IsSecretKey:
		d.Action = ActionSkip
	case d.IsPlaceholder:
		d.Action = ActionWarn
	default:
		d.Action = ActionStore
	}
	return d
}

// ScanEnv classifies every entry of an environment map. Used for dry-run
// reporting before any store is opened.
func ScanEnv(env map[string]string) map[string]Detection {
	out := make(map[string]Detection, len(env))
	for key, value := range env {
		out[key] = Detect(key, value)
	}
	return out
}

// CountSecrets returns how many entries of env would be stored.
func CountSecrets(env map[string]string) int {
	count := 0
	for key, value := range env {
		if Detect(key, value).Action == ActionStore {
			count++
		}
	}
	return count
}
