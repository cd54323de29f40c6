// Package surface is the protocol between a host and the surfaces that
// render a zine. Surfaces send bare command strings and measurement reports;
// the host answers with updates that make the surface re-render.
package surface

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yuanying/zinespread/internal/scale"
)

var ErrUnknownMessage = errors.New("unknown surface message")

// Message is a nullary command sent from a surface to its host.
type Message string

const (
	PrevSpread       Message = "prevSpread"
	NextSpread       Message = "nextSpread"
	ToggleFullscreen Message = "toggleFullscreen"
	SaveFile         Message = "saveFile"
)

// Messages returns the closed command vocabulary.
func Messages() []Message {
	return []Message{PrevSpread, NextSpread, ToggleFullscreen, SaveFile}
}

// ParseMessage accepts exactly one of the command names.
func ParseMessage(s string) (Message, error) {
	for _, m := range Messages() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMessage, s)
}

// Delta is the navigation step a command asks for, 0 for non-navigation commands.
func (m Message) Delta() int {
	switch m {
	case PrevSpread:
		return -1
	case NextSpread:
		return 1
	}
	return 0
}

// Report is a surface's measurement of its viewport and unscaled content.
type Report struct {
	Viewport scale.Box `json:"viewport"`
	Content  scale.Box `json:"content"`
}

// Inbound is one decoded surface frame: either a command or a report.
type Inbound struct {
	Command Message
	Report  *Report
}

// Decode parses one text frame from a surface.
func Decode(data []byte) (Inbound, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var r Report
		if err := json.Unmarshal(data, &r); err != nil {
			return Inbound{}, fmt.Errorf("decode report: %w", err)
		}
		return Inbound{Report: &r}, nil
	}
	m, err := ParseMessage(strings.TrimSpace(string(data)))
	if err != nil {
		return Inbound{}, err
	}
	return Inbound{Command: m}, nil
}
