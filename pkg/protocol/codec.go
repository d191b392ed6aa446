package protocol

import (
	"strconv"
	"strings"
)

var fieldSanitizer = strings.NewReplacer(
	Delimiter, ",",
	"\r", " ",
	"\n", " ",
	Header, strings.ToLower(Header),
	Footer, strings.ToLower(Footer),
)

// Encode renders the frame as wire text. The unit field is omitted when
// empty. Delimiters, line terminators and sentinels in value or unit can't
// be represented: they are replaced so the text always holds exactly one
// frame.
func Encode(f Frame) string {
	var sb strings.Builder
	sb.WriteString(Header)
	sb.WriteString(Delimiter)
	sb.WriteString(strconv.Itoa(int(f.Direction())))
	sb.WriteString(Delimiter)
	sb.WriteString(f.Operation.String())
	sb.WriteString(Delimiter)
	sb.WriteString(strconv.Itoa(int(f.Group)))
	sb.WriteString(Delimiter)
	sb.WriteString(strconv.Itoa(int(f.Command)))
	sb.WriteString(Delimiter)
	sb.WriteString(fieldSanitizer.Replace(f.Value))
	if f.Unit != "" {
		sb.WriteString(Delimiter)
		sb.WriteString(fieldSanitizer.Replace(f.Unit))
	}
	sb.WriteString(Delimiter)
	sb.WriteString(Footer)
	return sb.String()
}

// Decode parses wire text into a frame. Value and unit are optional.
// An unrecognized operation in a request decodes as Get.
func Decode(text string) (Frame, error) {
	var f Frame
	if !strings.HasPrefix(text, Header+Delimiter) {
		return f, ErrInvalidHeader
	}
	tokens := strings.Split(text[len(Header)+len(Delimiter):], Delimiter)
	end := -1
	for n, token := range tokens {
		if token == Footer {
			end = n
			break
		}
	}
	if end < 0 {
		return f, &DecodeError{Reason: "missing footer"}
	}
	fields := tokens[:end]
	if len(fields) < 4 {
		return f, &DecodeError{Reason: "truncated frame"}
	}

	dir, err := strconv.Atoi(fields[0])
	if err != nil || (dir != int(ToSatellite) && dir != int(ToGround)) {
		return f, &DecodeError{Field: "direction", Reason: "invalid value " + strconv.Quote(fields[0])}
	}
	op, ok := ParseOperation(fields[1])
	if !ok && Direction(dir) != ToSatellite {
		return f, &DecodeError{Field: "operation", Reason: "unknown operation " + strconv.Quote(fields[1])}
	}
	f.Operation = op
	if f.Group, err = parseID("group", fields[2]); err != nil {
		return f, err
	}
	if f.Command, err = parseID("command", fields[3]); err != nil {
		return f, err
	}
	if len(fields) > 4 {
		f.Value = fields[4]
	}
	if len(fields) > 5 {
		f.Unit = fields[5]
	}
	return f, nil
}

func parseID(field, s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, &DecodeError{Field: field, Reason: "invalid value " + strconv.Quote(s)}
	}
	return uint8(v), nil
}
