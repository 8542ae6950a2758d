package sequencer

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Mode selects how a task moves between goals.
type Mode int

// Task modes.
const (
	ModeLinear Mode = iota + 1
	ModeLShaped
	ModeCone
	ModeScriptedList
	ModeTeleop
)

// ErrInvalidMode is returned for an unknown mode name.
var ErrInvalidMode = errors.New("invalid task mode")

var modeNames = map[Mode]string{
	ModeLinear:       "linear",
	ModeLShaped:      "l-shaped",
	ModeCone:         "cone",
	ModeScriptedList: "list",
	ModeTeleop:       "teleop",
}

// aliases accepted on input in addition to the canonical names.
var modeAliases = map[string]Mode{
	"lshaped":  ModeLShaped,
	"scripted": ModeScriptedList,
	"xbox":     ModeTeleop,
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps a name such as "linear" or "l-shaped" onto a Mode.
func ParseMode(name string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if m, ok := lo.Invert(modeNames)[key]; ok {
		return m, nil
	}
	if m, ok := modeAliases[key]; ok {
		return m, nil
	}
	return 0, errors.Wrapf(ErrInvalidMode, "%q (want one of %s)", name, strings.Join(ModeNames(), ", "))
}

// ModeNames lists the canonical mode names in mode order.
func ModeNames() []string {
	names := make([]string, 0, len(modeNames))
	for m := ModeLinear; m <= ModeTeleop; m++ {
		names = append(names, m.String())
	}
	return names
}

func (m Mode) valid() bool {
	_, ok := modeNames[m]
	return ok
}

// usesTraversal reports whether the mode walks a fixed goal order.
func (m Mode) usesTraversal() bool {
	return m == ModeLinear || m == ModeLShaped || m == ModeCone
}
