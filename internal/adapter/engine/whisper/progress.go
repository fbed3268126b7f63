package whisper

import (
	"regexp"
	"strconv"
)

// progressRe matches a whole-percent token like "42%". whisper prints these
// on both streams; the last one on a line wins.
var progressRe = regexp.MustCompile(`(\d{1,3})%`)

// ParseProgress extracts the trailing percentage from one line of engine
// output. Values above 100 are treated as noise.
func ParseProgress(line string) (int, bool) {
	matches := progressRe.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return 0, false
	}

	value, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil || value > 100 {
		return 0, false
	}
	return value, true
}

// progressFilter forwards strictly increasing percentages to its callback,
// suppressing the duplicate and decreasing values whisper emits.
type progressFilter struct {
	last int
	cb   func(percent int)
}

func newProgressFilter(cb func(percent int)) *progressFilter {
	return &progressFilter{cb: cb}
}

func (f *progressFilter) Scan(line string) {
	if f.cb == nil {
		return
	}
	if value, ok := ParseProgress(line); ok && value > f.last {
		f.last = value
		f.cb(value)
	}
}
