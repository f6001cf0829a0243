package status

import (
	"regexp"
	"strings"
)

// maxSignatureLen caps signatures so multi-line stack traces cannot bloat
// run state or defeat window comparison.
const maxSignatureLen = 200

var (
	hexAddrPattern  = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	durationPattern = regexp.MustCompile(`\b\d+(\.\d+)?(ns|us|µs|ms|s|m|h)\b`)
	tmpPathPattern  = regexp.MustCompile(`/tmp/[^\s:]+`)
	numberPattern   = regexp.MustCompile(`\b\d{4,}\b`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

// NormalizeErrorSignature reduces an error message to a stable signature so
// the same failure produces the same signature across iterations. Volatile
// fragments (addresses, durations, temp paths, long numbers) are masked and
// whitespace is collapsed. Empty input yields an empty signature.
func NormalizeErrorSignature(msg string) string {
	sig := strings.TrimSpace(msg)
	if sig == "" {
		return ""
	}
	sig = strings.ToLower(sig)
	sig = hexAddrPattern.ReplaceAllString(sig, "0x?")
	sig = durationPattern.ReplaceAllString(sig, "?")
	sig = tmpPathPattern.ReplaceAllString(sig, "/tmp/?")
	sig = numberPattern.ReplaceAllString(sig, "?")
	sig = spacePattern.ReplaceAllString(sig, " ")
	if len(sig) > maxSignatureLen {
		sig = sig[:maxSignatureLen]
	}
	return sig
}
