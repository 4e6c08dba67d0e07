package action

// Command is the instruction returned to the game each tick. Values match
// the game's wire protocol.
type Command string

const (
	MoveLeft   Command = "MOVE_LEFT"
	MoveRight  Command = "MOVE_RIGHT"
	Hold       Command = "NONE"
	ServeLeft  Command = "SERVE_TO_LEFT"
	ServeRight Command = "SERVE_TO_RIGHT"
	Reset      Command = "RESET"
)

// Label is the class index a classifier is trained on.
type Label int

const (
	LabelLeft  Label = 0
	LabelRight Label = 1
	LabelHold  Label = 2
)

// NumLabels is the number of classes.
const NumLabels = 3

// LabelOf maps a paddle command to its class. Serve and reset commands have
// no label.
func LabelOf(c Command) (Label, bool) {
	switch c {
	case MoveLeft:
		return LabelLeft, true
	case MoveRight:
		return LabelRight, true
	case Hold:
		return LabelHold, true
	default:
		return 0, false
	}
}

// Command returns the paddle command for l. Unknown labels hold.
func (l Label) Command() Command {
	switch l {
	case LabelLeft:
		return MoveLeft
	case LabelRight:
		return MoveRight
	default:
		return Hold
	}
}

func (l Label) String() string {
	return string(l.Command())
}
