package protocol

import (
	"fmt"
	"strings"
)

// Frame delimiters and markers.
const (
	Header    = "KBST"
	Footer    = "TSBK"
	Delimiter = ";"

	// SeqDoneValue terminates a multi-frame answer.
	SeqDoneValue = "SEQ_DONE"
	// MaxChunk is the maximum length of the value of a Seq frame.
	MaxChunk = 100
)

// Direction indicates who originates a frame.
type Direction uint8

// Directions.
const (
	// ToSatellite is used by requests from ground.
	ToSatellite Direction = 0
	// ToGround is used by all answers.
	ToGround Direction = 1
)

// Operation is the kind of a frame.
type Operation uint8

// Operations.
const (
	Get Operation = iota
	Set
	Val
	Err
	Res
	Seq
)

var operationNames = [...]string{
	Get: "GET",
	Set: "SET",
	Val: "VAL",
	Err: "ERR",
	Res: "RES",
	Seq: "SEQ",
}

// String returns the wire tag of the operation.
func (op Operation) String() string {
	if int(op) < len(operationNames) {
		return operationNames[op]
	}
	return "GET"
}

// Direction returns the direction implied by the operation.
func (op Operation) Direction() Direction {
	if op == Get || op == Set {
		return ToSatellite
	}
	return ToGround
}

// ParseOperation parses the wire tag of an operation.
func ParseOperation(s string) (Operation, bool) {
	for op, name := range operationNames {
		if name == s {
			return Operation(op), true
		}
	}
	return Get, false
}

// ValueUnit annotates the value of a frame.
type ValueUnit uint8

// Units.
const (
	Undefined ValueUnit = iota
	Second
	Volt
	Bool
	Datetime
	Text
	Miliamp
	Celsius
)

// String returns the unit text carried on the wire. Units without a
// symbol (and unknown values) map to an empty string.
func (u ValueUnit) String() string {
	switch u {
	case Second:
		return "s"
	case Volt:
		return "V"
	case Miliamp:
		return "mA"
	case Celsius:
		return "C"
	default:
		return ""
	}
}

// ErrorCode is the value of an Err frame.
type ErrorCode string

// Error codes.
const (
	ParamUnnecessary     ErrorCode = "PARAM_UNNECESSARY"
	ParamRequired        ErrorCode = "PARAM_REQUIRED"
	ParamInvalid         ErrorCode = "PARAM_INVALID"
	InvalidOperation     ErrorCode = "INVALID_OPERATION"
	NotAllowed           ErrorCode = "NOT_ALLOWED"
	InvalidFormat        ErrorCode = "INVALID_FORMAT"
	InvalidValue         ErrorCode = "INVALID_VALUE"
	InvalidTimeoutFormat ErrorCode = "INVALID_TIMEOUT_FORMAT"
	FailToSet            ErrorCode = "FAIL_TO_SET"
	InternalFailToRead   ErrorCode = "INTERNAL_FAIL_TO_READ"
	NoData               ErrorCode = "NO_DATA"
	UnknownError         ErrorCode = "UNKNOWN_ERROR"
	InvalidCommand       ErrorCode = "INVALID COMMAND"
)

// Frame is a single protocol message.
type Frame struct {
	Operation Operation
	Group     uint8
	Command   uint8
	Value     string
	Unit      string
}

// NewFrame builds a frame.
func NewFrame(op Operation, group, command uint8, value string, unit ValueUnit) Frame {
	return Frame{Operation: op, Group: group, Command: command, Value: value, Unit: unit.String()}
}

// Direction returns the direction of the frame.
func (f Frame) Direction() Direction {
	return f.Operation.Direction()
}

// String implements fmt.Stringer.
func (f Frame) String() string {
	return Encode(f)
}

// IsTerminal tells if no more frames of the same answer follow.
func (f Frame) IsTerminal() bool {
	return f.Operation != Seq
}

// ValFrame builds a Val frame.
func ValFrame(group, command uint8, value string, unit ValueUnit) Frame {
	return NewFrame(Val, group, command, value, unit)
}

// ResFrame builds a Res frame.
func ResFrame(group, command uint8, value string) Frame {
	return NewFrame(Res, group, command, value, Undefined)
}

// SeqFrame builds a Seq frame.
func SeqFrame(group, command uint8, value string) Frame {
	return NewFrame(Seq, group, command, value, Undefined)
}

// ErrFrame builds an Err frame.
func ErrFrame(group, command uint8, value string) Frame {
	return NewFrame(Err, group, command, value, Undefined)
}

// ErrCode builds an Err frame carrying an error code.
func ErrCode(group, command uint8, code ErrorCode) Frame {
	return ErrFrame(group, command, string(code))
}

// SeqDone builds the frame terminating a sequence.
func SeqDone(group, command uint8) Frame {
	return ValFrame(group, command, SeqDoneValue, Undefined)
}

// Sequence wraps chunks into Seq frames followed by the terminator.
func Sequence(group, command uint8, chunks []string) []Frame {
	frames := make([]Frame, 0, len(chunks)+1)
	for _, chunk := range chunks {
		frames = append(frames, SeqFrame(group, command, chunk))
	}
	return append(frames, SeqDone(group, command))
}

// Chunk packs items joined by sep into chunks no longer than limit.
// An item longer than limit is truncated.
func Chunk(items []string, sep string, limit int) []string {
	var chunks []string
	var sb strings.Builder
	for _, item := range items {
		if len(item) > limit {
			item = item[:limit]
		}
		if sb.Len() > 0 && sb.Len()+len(sep)+len(item) > limit {
			chunks = append(chunks, sb.String())
			sb.Reset()
		}
		if sb.Len() > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(item)
	}
	if sb.Len() > 0 {
		chunks = append(chunks, sb.String())
	}
	return chunks
}

// Key returns the "group.command" notation of the frame.
func (f Frame) Key() string {
	return fmt.Sprintf("%d.%d", f.Group, f.Command)
}
