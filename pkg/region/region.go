// Package region expands short region codes such as "ue1" or "apse2".
package region

import (
	"fmt"
	"strconv"
	"strings"
)

// Default is used when no region is given.
const Default = "us-east-1"

// two letter prefixes are tried before one letter ones
var majors = []struct{ code, name string }{
	{"ug", "us-gov"},
	{"us", "us"},
	{"eu", "eu"},
	{"af", "af"},
	{"ap", "ap"},
	{"cn", "cn"},
	{"ca", "ca"},
	{"me", "me"},
	{"sa", "sa"},
	{"u", "us"},
	{"e", "eu"},
	{"a", "ap"},
	{"c", "ca"},
	{"m", "me"},
	{"s", "sa"},
}

var minors = []struct{ code, name string }{
	{"nw", "northwest"},
	{"ne", "northeast"},
	{"sw", "southwest"},
	{"se", "southeast"},
	{"n", "north"},
	{"s", "south"},
	{"e", "east"},
	{"w", "west"},
	{"c", "central"},
}

// Expand returns the full region name for region. A region that already
// contains a dash is returned unchanged, an empty one becomes Default.
//
//	ue1   -> us-east-1
//	use2  -> us-east-2
//	apse2 -> ap-southeast-2
//	ec    -> eu-central-1
func Expand(region string) (string, error) {
	if region == "" {
		return Default, nil
	}
	if strings.Contains(region, "-") {
		return region, nil
	}
	if len(region) < 2 {
		return "", fmt.Errorf("region %q is too short, needs at least two characters (eg ue)", region)
	}

	short := strings.ToLower(region)
	major, rest, ok := matchPrefix(majors, short)
	if !ok {
		return "", fmt.Errorf("unknown region major in %q (hint: try using the first letter of the region)", region)
	}
	minor, num, ok := matchPrefix(minors, rest)
	if !ok {
		return "", fmt.Errorf("unknown region minor in %q (found major: %s)", region, major)
	}
	if num == "" {
		num = "1"
	} else if _, err := strconv.Atoi(num); err != nil {
		return "", fmt.Errorf("unknown region number in %q (found major: %s, minor: %s)", region, major, minor)
	}
	return fmt.Sprintf("%s-%s-%s", major, minor, num), nil
}

func matchPrefix(table []struct{ code, name string }, s string) (name string, rest string, ok bool) {
	for _, entry := range table {
		if strings.HasPrefix(s, entry.code) {
			return entry.name, s[len(entry.code):], true
		}
	}
	return "", s, false
}
