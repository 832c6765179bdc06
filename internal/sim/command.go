package sim

import "time"

// CommandType enumerates the control commands accepted by the loop.
type CommandType string

const (
	CommandSetBusyness      CommandType = "SetBusyness"
	CommandTriggerWave      CommandType = "TriggerWave"
	CommandPause            CommandType = "Pause"
	CommandResume           CommandType = "Resume"
	CommandRecalculatePaths CommandType = "RecalculatePaths"
)

// BusynessCommand scales the arrival rate.
type BusynessCommand struct {
	Value float64 `json:"value"`
}

// WaveCommand schedules an arrival wave.
type WaveCommand struct {
	Entry   string  `json:"entry"`
	Count   int     `json:"count"`
	Seconds float64 `json:"seconds"`
}

// Command is a staged control request. Exactly one payload matches Type.
type Command struct {
	Type     CommandType
	Source   string
	IssuedAt time.Time
	Busyness *BusynessCommand
	Wave     *WaveCommand
}
