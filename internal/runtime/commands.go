package runtime

import "strings"

type command int

const (
	commandNone command = iota
	commandMenu
	commandHelp
	commandEnd
)

// commands maps reserved utterances, lowercased, to their action.
// The Korean aliases are kept for existing chat clients.
var commands = map[string]command{
	"menu":    commandMenu,
	"restart": commandMenu,
	"start":   commandMenu,
	"메뉴":      commandMenu,
	"처음":      commandMenu,
	"시작":      commandMenu,
	"help":    commandHelp,
	"도움말":     commandHelp,
	"cancel":  commandEnd,
	"exit":    commandEnd,
	"취소":      commandEnd,
	"종료":      commandEnd,
}

// lookupCommand matches input exactly, ignoring case and surrounding space.
func lookupCommand(input string) command {
	return commands[strings.ToLower(strings.TrimSpace(input))]
}

// IsCommand reports whether input is a reserved meta-command.
func IsCommand(input string) bool {
	return lookupCommand(input) != commandNone
}
