package forum

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// External identifier prefixes.
const (
	MessagePrefix   = "msg"
	DiagnosisPrefix = "dgs"
)

var digitsPattern = regexp.MustCompile(`^[0-9]+$`)

// Encode formats an internal key as "<prefix>-<id>".
func Encode(id int64, prefix string) string {
	return prefix + "-" + strconv.FormatInt(id, 10)
}

// Decode parses an external identifier of the form "<prefix>-<digits>" and
// returns the internal key. Any other shape, or digits that overflow an
// int64, yields an error wrapping ErrFormat.
func Decode(external, prefix string) (int64, error) {
	digits, ok := strings.CutPrefix(external, prefix+"-")
	if !ok || !digitsPattern.MatchString(digits) {
		return 0, fmt.Errorf("%w: %q is not a %s identifier", ErrFormat, external, prefix)
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is out of range", ErrFormat, external)
	}
	return id, nil
}

func encodeOptional(id *int64, prefix string) *string {
	if id == nil {
		return nil
	}
	s := Encode(*id, prefix)
	return &s
}
