package claude

import (
	"encoding/json"
	"regexp"
)

// resultEnvelope is the claude CLI --output-format json shape.
type resultEnvelope struct {
	Type         string  `json:"type"`
	Result       string  `json:"result"`
	IsError      bool    `json:"is_error"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// StripANSI removes ANSI color escape sequences from text.
func StripANSI(text string) string {
	return ansiPattern.ReplaceAllString(text, "")
}

// ParseOutput decodes the CLI's JSON result envelope into a Response.
//
// The CLI sometimes prints warnings around the JSON, so a failed direct
// decode retries on the largest brace-delimited substring. Output with no
// decodable envelope falls back to plain text: the whole output becomes
// Text (ANSI stripped) and the status parser downstream decides what to
// make of it.
func ParseOutput(output string) *Response {
	resp := &Response{RawOutput: output}

	if env, ok := decodeEnvelope(output); ok {
		resp.Text = StripANSI(env.Result)
		resp.IsError = env.IsError
		resp.CostUSD = env.TotalCostUSD
		return resp
	}

	if extracted := ExtractJSON(output); extracted != "" {
		if env, ok := decodeEnvelope(extracted); ok {
			resp.Text = StripANSI(env.Result)
			resp.IsError = env.IsError
			resp.CostUSD = env.TotalCostUSD
			return resp
		}
	}

	resp.Text = StripANSI(output)
	return resp
}

func decodeEnvelope(data string) (resultEnvelope, bool) {
	var env resultEnvelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return env, false
	}
	return env, env.Type == "result"
}

// ExtractJSON attempts to extract a JSON object from mixed content.
// It finds the first '{' and last '}' to extract the JSON substring.
// Returns empty string if no valid JSON boundaries found.
func ExtractJSON(content string) string {
	start := -1
	end := -1

	for i, c := range content {
		if c == '{' {
			start = i
			break
		}
	}

	for i := len(content) - 1; i >= 0; i-- {
		if content[i] == '}' {
			end = i
			break
		}
	}

	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return ""
}

// Truncate returns s cut to maxLen characters with an ellipsis when needed.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
