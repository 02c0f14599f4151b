package editor

import "github.com/go-faster/errors"

// Mode is the dialog state of a Controller.
type Mode string

const (
	ModeClosed Mode = ""
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
	ModeDelete Mode = "delete"
)

// ErrInvalidMode is returned for a mode outside create, edit and delete.
var ErrInvalidMode = errors.New("invalid dialog mode")

// ParseMode parses an open mode. ModeClosed is not accepted.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeCreate, ModeEdit, ModeDelete:
		return m, nil
	default:
		return ModeClosed, errors.Wrapf(ErrInvalidMode, "%q", s)
	}
}

// NeedsSource reports whether opening in m requires an existing record.
func (m Mode) NeedsSource() bool {
	return m == ModeEdit || m == ModeDelete
}

func (m Mode) String() string {
	if m == ModeClosed {
		return "closed"
	}
	return string(m)
}
