package capture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/docscan/internal/preview"
)

// State is the lifecycle position of a capture session
type State int

const (
	StateEmpty State = iota
	StateCapturing
	StateFinalizing
	StateCompleted
	StateCancelled
)

var stateNames = map[State]string{
	StateEmpty:      "empty",
	StateCapturing:  "capturing",
	StateFinalizing: "finalizing",
	StateCompleted:  "completed",
	StateCancelled:  "cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if strings.EqualFold(name, string(text)) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Closed reports whether the session only accepts Reset
func (s State) Closed() bool {
	return s == StateCompleted || s == StateCancelled
}

var (
	ErrEmptyCapture    = errors.New("capture has no image data")
	ErrEmptySession    = errors.New("session has no pages")
	ErrIndexOutOfRange = errors.New("page index out of range")
	ErrSessionClosed   = errors.New("session is closed")
	ErrSessionReset    = errors.New("session was reset while finalizing")
	ErrFinalizing      = errors.New("session is finalizing")
)

// Page is one captured, possibly enhanced, page of a session
type Page struct {
	Ordinal     int         `json:"ordinal" yaml:"ordinal"`
	Source      string      `json:"source,omitempty" yaml:"source,omitempty"`
	Data        []byte      `json:"-" yaml:"-"`
	ContentType string      `json:"content_type" yaml:"content_type"`
	Preview     preview.Ref `json:"preview,omitempty" yaml:"-"`
	Enhanced    bool        `json:"enhanced" yaml:"enhanced"`
	Width       int         `json:"width" yaml:"width"`
	Height      int         `json:"height" yaml:"height"`
}

// Result is what Finalize hands to the upload collaborator
type Result struct {
	Pages        []Page `json:"pages" yaml:"pages"`
	MergeIntoOne bool   `json:"merge_into_one" yaml:"merge_into_one"`
}
