package client

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// responseMessage extracts the error text of a failed call: "error", then
// "message", then a bare JSON string, then the raw body.
func responseMessage(body []byte) string {
	text := string(body)
	if text == "" {
		return ""
	}
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return text
	}
	switch v := parsed.(type) {
	case string:
		return v
	case map[string]any:
		if s := field(v, "error"); s != "" {
			return s
		}
		if s := field(v, "message"); s != "" {
			return s
		}
	}
	return text
}

var messageRe = regexp.MustCompile(`(?i)"(?:error|message)"\s*:\s*"([^"]+)"`)

// ExtractMessage is the more forgiving variant used for login and
// registration failures. It unwraps JSON strings holding JSON, picks the
// only string value of an object, falls back to a regexp over malformed
// JSON and finally strips braces. It returns "" when nothing is usable.
func ExtractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
		switch v := parsed.(type) {
		case nil:
			return ""
		case string:
			var inner map[string]any
			if json.Unmarshal([]byte(v), &inner) == nil {
				if s := field(inner, "error"); s != "" {
					return s
				}
				if s := field(inner, "message"); s != "" {
					return s
				}
			}
			return v
		case map[string]any:
			if s := field(v, "error"); s != "" {
				return s
			}
			if s := field(v, "message"); s != "" {
				return s
			}
			var only []string
			for _, val := range v {
				if s, ok := val.(string); ok {
					only = append(only, s)
				}
			}
			if len(only) == 1 {
				return only[0]
			}
		}
	}

	if m := messageRe.FindStringSubmatch(trimmed); m != nil && m[1] != "" {
		return m[1]
	}

	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	}

	return trimmed
}

// field returns m[key] as text when it is set and truthy.
func field(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if !v {
			return ""
		}
		return "true"
	case float64:
		if v == 0 {
			return ""
		}
		return fmt.Sprint(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
