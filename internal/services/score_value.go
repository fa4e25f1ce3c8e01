package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ScoreValue is one positional score cell. Clients send numbers, numeric
// strings, "" or null; the last two mean "not graded".
type ScoreValue struct {
	Value   float64
	Present bool
	// Raw holds a string that did not parse as a number.
	Raw string
}

func Score(v float64) ScoreValue {
	return ScoreValue{Value: v, Present: true}
}

func (s ScoreValue) Invalid() bool {
	return s.Raw != ""
}

func (s *ScoreValue) UnmarshalJSON(data []byte) error {
	*s = ScoreValue{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			s.Raw = str
			return nil
		}
		s.Value, s.Present = v, true
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("score must be a number, numeric string or null: %w", err)
	}
	s.Value, s.Present = v, true
	return nil
}

func (s ScoreValue) MarshalJSON() ([]byte, error) {
	switch {
	case s.Present:
		return json.Marshal(s.Value)
	case s.Raw != "":
		return json.Marshal(s.Raw)
	default:
		return []byte("null"), nil
	}
}
