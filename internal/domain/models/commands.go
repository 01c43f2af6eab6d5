package models

import "strings"

// CommandType enumerates supported worker command categories.
type CommandType string

const (
	CommandMortality   CommandType = "mortality"
	CommandFeed        CommandType = "feed"
	CommandVaccination CommandType = "vaccination"
	CommandHealth      CommandType = "health"
	CommandStatus      CommandType = "status"
	CommandUnknown     CommandType = "unknown"
)

// Command represents a parsed worker instruction extracted from WhatsApp text.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// ParseCommand derives a Command instance from free-form text messages.
func ParseCommand(message string) Command {
	normalized := strings.TrimSpace(strings.ToLower(message))
	cmd := Command{Raw: message, Type: CommandUnknown}

	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return cmd
	}

	head := strings.TrimPrefix(tokens[0], "/")
	switch head {
	case string(CommandMortality), "deaths":
		cmd.Type = CommandMortality
	case string(CommandFeed):
		cmd.Type = CommandFeed
	case string(CommandVaccination), "vaccine":
		cmd.Type = CommandVaccination
	case string(CommandHealth):
		cmd.Type = CommandHealth
	case string(CommandStatus):
		cmd.Type = CommandStatus
	}

	if len(tokens) > 1 {
		// Batch identifiers keep their original casing.
		original := strings.Fields(strings.TrimSpace(message))
		cmd.Args = original[1:]
	}

	return cmd
}

// BatchID returns the batch a command addresses, or "" for unknown commands
// and commands without arguments.
func (c Command) BatchID() string {
	if c.Type == CommandUnknown || len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

// SubmitsReport reports whether the command files a field report against a batch.
func (c Command) SubmitsReport() bool {
	switch c.Type {
	case CommandMortality, CommandFeed, CommandVaccination, CommandHealth:
		return c.BatchID() != ""
	}
	return false
}
