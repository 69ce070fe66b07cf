// Package input holds InputInjector implementations.
package input

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var knownButtons = map[string]bool{"left": true, "right": true, "middle": true}

// LogInjector records every command in the log instead of touching the
// OS. It is the default on machines without an input backend.
type LogInjector struct {
	logger zerolog.Logger
}

func NewLogInjector() *LogInjector {
	return &LogInjector{logger: log.With().Str("module", "input").Logger()}
}

func (l *LogInjector) button(b string) string {
	if !knownButtons[b] {
		l.logger.Warn().Str("button", b).Msg("unknown button, passed through")
	}
	return b
}

func (l *LogInjector) MoveMouse(x, y float64) error {
	l.logger.Debug().Float64("x", x).Float64("y", y).Msg("mouse move")
	return nil
}

func (l *LogInjector) Click(button string, double bool) error {
	l.logger.Info().Str("button", l.button(button)).Bool("double", double).Msg("mouse click")
	return nil
}

func (l *LogInjector) MouseDown(button string, x, y float64) error {
	l.logger.Info().Str("button", l.button(button)).Float64("x", x).Float64("y", y).Msg("mouse down")
	return nil
}

func (l *LogInjector) MouseUp(button string, x, y float64) error {
	l.logger.Info().Str("button", l.button(button)).Float64("x", x).Float64("y", y).Msg("mouse up")
	return nil
}

func (l *LogInjector) Scroll(dx, dy float64) error {
	l.logger.Debug().Float64("dx", dx).Float64("dy", dy).Msg("scroll")
	return nil
}

func (l *LogInjector) KeyTap(key string, modifiers []string) error {
	l.logger.Info().Str("key", key).Str("modifiers", strings.Join(modifiers, "+")).Msg("key press")
	return nil
}

func (l *LogInjector) TypeText(text string) error {
	l.logger.Info().Int("chars", len([]rune(text))).Msg("type text")
	return nil
}
