package main

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"footfall/server/internal/telemetry"
)

var stateStyles = map[string]tcell.Style{
	"MOVING":    tcell.StyleDefault.Foreground(tcell.ColorGreen),
	"WAITING":   tcell.StyleDefault.Foreground(tcell.ColorYellow),
	"MEETING":   tcell.StyleDefault.Foreground(tcell.ColorPurple),
	"COMPLETED": tcell.StyleDefault.Foreground(tcell.ColorGray),
}

// headingGlyph picks an arrow for the eight compass sectors of heading.
func headingGlyph(heading float64) rune {
	arrows := []rune{'→', '↘', '↓', '↙', '←', '↖', '↑', '↗'}
	sector := int(math.Round(heading/(math.Pi/4))) % len(arrows)
	if sector < 0 {
		sector += len(arrows)
	}
	return arrows[sector]
}

func glyph(agent telemetry.AgentFrame) rune {
	switch agent.State {
	case "WAITING":
		return 'w'
	case "MEETING":
		return 'm'
	case "MOVING":
		return headingGlyph(agent.Heading)
	default:
		return '.'
	}
}

// project maps world pixels onto a cols x rows cell grid.
func project(x, y, width, height float64, cols, rows int) (int, int, bool) {
	if width <= 0 || height <= 0 || cols <= 0 || rows <= 0 {
		return 0, 0, false
	}
	cx := int(x / width * float64(cols))
	cy := int(y / height * float64(rows))
	if cx < 0 || cy < 0 || cx >= cols || cy >= rows {
		return 0, 0, false
	}
	return cx, cy, true
}

func statusLine(frame telemetry.Frame, connected bool) string {
	if !connected {
		return "disconnected  q:quit"
	}
	state := "running"
	if frame.Paused {
		state = "paused"
	}
	return fmt.Sprintf("tick %d  agents %d  busyness %.2f  %s  p:pause +/-:busyness w:wave r:replan q:quit",
		frame.Tick, len(frame.Agents), frame.Busyness, state)
}

func draw(screen tcell.Screen, frame telemetry.Frame, connected bool) {
	screen.Clear()
	cols, rows := screen.Size()
	fieldRows := rows - 1
	for _, agent := range frame.Agents {
		cx, cy, ok := project(agent.X, agent.Y, frame.Width, frame.Height, cols, fieldRows)
		if !ok {
			continue
		}
		style, found := stateStyles[agent.State]
		if !found {
			style = tcell.StyleDefault
		}
		screen.SetContent(cx, cy, glyph(agent), nil, style)
	}
	for i, r := range []rune(statusLine(frame, connected)) {
		if i >= cols {
			break
		}
		screen.SetContent(i, rows-1, r, nil, tcell.StyleDefault.Reverse(true))
	}
	screen.Show()
}
