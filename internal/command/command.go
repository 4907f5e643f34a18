// Package command holds the closed vocabulary of user-level commands: their
// user-visible names, argument shape, whether they execute locally or
// remotely, whether they open a data channel, and their single-character
// wire codes.
package command

import (
	"fmt"
	"strings"
)

// Kind is one of the closed set of command kinds, plus the internal DATA
// kind used only during the handshake.
type Kind int

const (
	Invalid Kind = iota
	Exit
	CD
	RCD
	LS
	RLS
	Get
	Show
	Put
	Data
)

type spec struct {
	name        string
	wireCode    byte
	hasWireCode bool
	remote      bool
	needsData   bool
	hasArgument bool
}

var specs = map[Kind]spec{
	Exit: {name: "exit", wireCode: 'Q', hasWireCode: true, remote: true},
	CD:   {name: "cd", hasArgument: true},
	RCD:  {name: "rcd", wireCode: 'C', hasWireCode: true, remote: true, hasArgument: true},
	LS:   {name: "ls"},
	RLS:  {name: "rls", wireCode: 'L', hasWireCode: true, remote: true, needsData: true},
	Get:  {name: "get", wireCode: 'G', hasWireCode: true, remote: true, needsData: true, hasArgument: true},
	Show: {name: "show", wireCode: 'S', hasWireCode: true, remote: true, needsData: true, hasArgument: true},
	Put:  {name: "put", wireCode: 'P', hasWireCode: true, remote: true, needsData: true, hasArgument: true},
	Data: {name: "", wireCode: 'D', hasWireCode: true, remote: true},
}

var byName map[string]Kind
var byWireCode map[byte]Kind

func init() {
	byName = make(map[string]Kind, len(specs))
	byWireCode = make(map[byte]Kind, len(specs))
	for k, s := range specs {
		if s.name != "" {
			byName[s.name] = k
		}
		if s.hasWireCode {
			byWireCode[s.wireCode] = k
		}
	}
}

// Name returns the user-visible name for kind, or "" for Invalid/Data.
func Name(k Kind) string { return specs[k].name }

// WireCode returns the single-character wire code for kind and whether kind
// has one at all (CD and LS are local-only and have none).
func WireCode(k Kind) (byte, bool) {
	s, ok := specs[k]
	if !ok || !s.hasWireCode {
		return 0, false
	}
	return s.wireCode, true
}

// FromWireCode returns the Kind whose wire code is c, if any.
func FromWireCode(c byte) (Kind, bool) {
	k, ok := byWireCode[c]
	return k, ok
}

// IsRemote reports whether kind is executed on the server.
func IsRemote(k Kind) bool { return specs[k].remote }

// NeedsData reports whether kind requires an established data socket.
func NeedsData(k Kind) bool { return specs[k].needsData }

// HasArgument reports whether kind requires a non-empty argument.
func HasArgument(k Kind) bool { return specs[k].hasArgument }

// Parse splits line into a command word and an optional argument, and
// resolves the word against the vocabulary table. It fails when the word
// matches no known command, or when argument presence does not match the
// kind's requirement.
func Parse(line string) (Kind, string, error) {
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return Invalid, "", fmt.Errorf("command: empty input")
	}

	word := trimmed
	rest := ""
	if i := strings.IndexAny(trimmed, " \t"); i >= 0 {
		word = trimmed[:i]
		rest = strings.TrimLeft(trimmed[i:], " \t")
	}

	k, ok := byName[word]
	if !ok {
		return Invalid, "", fmt.Errorf("command: unrecognized command %q", word)
	}

	s := specs[k]
	switch {
	case s.hasArgument && rest == "":
		return Invalid, "", fmt.Errorf("command: %q requires an argument", word)
	case !s.hasArgument && rest != "":
		return Invalid, "", fmt.Errorf("command: %q takes no argument", word)
	}

	return k, rest, nil
}
