package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Inbound frame types.
const (
	FrameGuess   = "guess"
	FrameRequeue = "requeue"
)

// ErrMalformedFrame is returned for frames that cannot be decoded.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is a decoded inbound frame.
type Frame struct {
	Type  string
	Value int
}

type rawFrame struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// ParseFrame decodes {"type":"guess","value":"42"}. The value may also be
// a bare JSON integer.
func ParseFrame(data []byte) (Frame, error) {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	switch raw.Type {
	case FrameGuess:
		v, err := parseValue(raw.Value)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Type: FrameGuess, Value: v}, nil
	case FrameRequeue:
		return Frame{Type: FrameRequeue}, nil
	case "":
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	default:
		return Frame{}, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, raw.Type)
	}
}

func parseValue(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%w: missing value", ErrMalformedFrame)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, fmt.Errorf("%w: value must be an integer", ErrMalformedFrame)
		}
		text = n.String()
	}
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%w: value %q is not an integer", ErrMalformedFrame, text)
	}
	return v, nil
}
