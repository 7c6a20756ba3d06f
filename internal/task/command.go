// Package task dispatches Qiita jobs to the right pipeline: it
// classifies the job's command, resolves the input artifact, has the
// submission scripts built, and submits the two-job chain, reporting
// progress back to the server along the way.
package task

import (
	"errors"
	"fmt"
)

// ErrUnsupportedCommand marks job commands outside the registered set.
var ErrUnsupportedCommand = errors.New("unsupported command")

// Command is one of the plugin's registered Qiita commands. The set is
// closed: adding a command means adding a case here and a branch in
// Start, nothing is dispatched by string at run time.
type Command int

const (
	// CommandWoltka is the primary woltka-over-bowtie2 alignment.
	CommandWoltka Command = iota
	// CommandSynDNA removes SynDNA inserts and plasmid reads.
	CommandSynDNA
	// CommandCellCounts derives per-sample cell counts from an existing
	// alignment profile.
	CommandCellCounts
	// CommandRNACopyCounts derives per-sample RNA copy counts.
	CommandRNACopyCounts
)

func (c Command) String() string {
	switch c {
	case CommandWoltka:
		return "Woltka v0.1.7"
	case CommandSynDNA:
		return "SynDNA Woltka"
	case CommandCellCounts:
		return "Calculate Cell Counts"
	case CommandRNACopyCounts:
		return "Calculate RNA Copy Counts"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// Direct reports whether the command bypasses artifact resolution and
// array submission, running its handler synchronously instead.
func (c Command) Direct() bool {
	return c == CommandCellCounts || c == CommandRNACopyCounts
}

// Classify maps a job's declared command name onto the registered set.
// It is pure: no network or process call happens before an unknown name
// is rejected.
func Classify(name string) (Command, error) {
	switch name {
	case CommandWoltka.String():
		return CommandWoltka, nil
	case CommandSynDNA.String():
		return CommandSynDNA, nil
	case CommandCellCounts.String():
		return CommandCellCounts, nil
	case CommandRNACopyCounts.String():
		return CommandRNACopyCounts, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCommand, name)
	}
}
