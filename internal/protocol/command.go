package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownCommand = errors.New("unknown command")

const DefaultButton = "left"

// CommandFields is the control payload shared by envelopes and data
// channel records. Pointers keep "absent" apart from zero.
type CommandFields struct {
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Button      string   `json:"button,omitempty"`
	DoubleClick bool     `json:"doubleClick,omitempty"`
	Key         string   `json:"key,omitempty"`
	Modifiers   []string `json:"modifiers,omitempty"`
	Text        *string  `json:"text,omitempty"`
}

// Command is a validated control command. Coordinates are in the
// viewer's pixel space and are never rescaled here.
type Command struct {
	Type        Type
	X, Y        float64
	Button      string
	DoubleClick bool
	Key         string
	Modifiers   []string
	Text        string
}

type commandRecord struct {
	Type Type `json:"type"`
	CommandFields
}

func IsCommand(t Type) bool {
	switch t {
	case TypeMouseMove, TypeMouseClick, TypeMouseDown, TypeMouseUp,
		TypeMouseScroll, TypeKeyPress, TypeKeyType:
		return true
	}
	return false
}

func MouseMove(x, y float64) Command { return Command{Type: TypeMouseMove, X: x, Y: y} }

func MouseClick(button string, double bool) Command {
	return Command{Type: TypeMouseClick, Button: buttonOrDefault(button), DoubleClick: double}
}

func MouseDown(button string, x, y float64) Command {
	return Command{Type: TypeMouseDown, Button: buttonOrDefault(button), X: x, Y: y}
}

func MouseUp(button string, x, y float64) Command {
	return Command{Type: TypeMouseUp, Button: buttonOrDefault(button), X: x, Y: y}
}

func MouseScroll(dx, dy float64) Command { return Command{Type: TypeMouseScroll, X: dx, Y: dy} }

func KeyPress(key string, modifiers ...string) Command {
	return Command{Type: TypeKeyPress, Key: key, Modifiers: modifiers}
}

func KeyType(text string) Command { return Command{Type: TypeKeyType, Text: text} }

// Fields renders only the fields that belong to the command type.
func (c Command) Fields() CommandFields {
	var f CommandFields
	x, y := c.X, c.Y
	switch c.Type {
	case TypeMouseMove, TypeMouseScroll:
		f.X, f.Y = &x, &y
	case TypeMouseDown, TypeMouseUp:
		f.X, f.Y = &x, &y
		f.Button = buttonOrDefault(c.Button)
	case TypeMouseClick:
		f.Button = buttonOrDefault(c.Button)
		f.DoubleClick = c.DoubleClick
	case TypeKeyPress:
		f.Key = c.Key
		f.Modifiers = c.Modifiers
	case TypeKeyType:
		text := c.Text
		f.Text = &text
	}
	return f
}

// Envelope wraps the command for delivery through the relay.
func (c Command) Envelope() Envelope {
	return Envelope{Type: c.Type, CommandFields: c.Fields()}
}

func EncodeCommand(c Command) ([]byte, error) {
	if _, err := commandFrom(c.Type, c.Fields()); err != nil {
		return nil, err
	}
	return json.Marshal(commandRecord{Type: c.Type, CommandFields: c.Fields()})
}

// DecodeCommand parses one control channel record.
func DecodeCommand(data []byte) (Command, error) {
	var rec commandRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	return commandFrom(rec.Type, rec.CommandFields)
}

// Command extracts the control command carried by a relay envelope.
func (e Envelope) Command() (Command, error) {
	return commandFrom(e.Type, e.CommandFields)
}

func commandFrom(t Type, f CommandFields) (Command, error) {
	if !IsCommand(t) {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, t)
	}
	c := Command{Type: t}
	switch t {
	case TypeMouseMove, TypeMouseScroll, TypeMouseDown, TypeMouseUp:
		if f.X == nil || f.Y == nil {
			return Command{}, fmt.Errorf("%s: %w: x/y", t, ErrMissingField)
		}
		c.X, c.Y = *f.X, *f.Y
		if t == TypeMouseDown || t == TypeMouseUp {
			c.Button = buttonOrDefault(f.Button)
		}
	case TypeMouseClick:
		c.Button = buttonOrDefault(f.Button)
		c.DoubleClick = f.DoubleClick
	case TypeKeyPress:
		if f.Key == "" {
			return Command{}, fmt.Errorf("%s: %w: key", t, ErrMissingField)
		}
		c.Key = f.Key
		c.Modifiers = f.Modifiers
	case TypeKeyType:
		if f.Text == nil {
			return Command{}, fmt.Errorf("%s: %w: text", t, ErrMissingField)
		}
		c.Text = *f.Text
	}
	return c, nil
}

func buttonOrDefault(b string) string {
	if b == "" {
		return DefaultButton
	}
	return b
}
