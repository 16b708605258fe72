package topics

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned for completions that do not carry a topics list.
var ErrMalformed = errors.New("malformed topics response")

// ParseTopics reads a completion of the form {"topics": ["A", "B"]}. On any
// failure it returns an empty, non-nil slice and an error wrapping ErrMalformed.
// Array elements that are not strings are dropped.
func ParseTopics(raw string) ([]string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return []string{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	field, ok := envelope["topics"]
	if !ok {
		return []string{}, fmt.Errorf("%w: missing topics field", ErrMalformed)
	}
	if bytes.Equal(bytes.TrimSpace(field), []byte("null")) {
		return []string{}, fmt.Errorf("%w: topics is null", ErrMalformed)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(field, &items); err != nil {
		return []string{}, fmt.Errorf("%w: topics should be a list", ErrMalformed)
	}

	topics := make([]string, 0, len(items))
	for _, item := range items {
		// Decoding into a string would turn null into "".
		var v any
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		if topic, ok := v.(string); ok {
			topics = append(topics, topic)
		}
	}
	return topics, nil
}
