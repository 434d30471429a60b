// Package selection renders catalog profiles as a choice list and
// recovers the chosen profile from the picked line.
//
// A line has three columns: profile name, role name and account id.
//
//	Dev Ops          Admin     111122223333
//	Shared Services  ReadOnly  222233334444
//
// Profile names are the only field that may contain spaces, so they come
// first. Role names and account ids never contain whitespace which makes
// the last two tokens of a line unambiguous however the name looks.
package selection

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/common-fate/clio"
	"github.com/common-fate/ssoswitch/pkg/catalog"
	"github.com/mattn/go-runewidth"
)

// columnGap separates columns: one space of padding either side.
const columnGap = "  "

var accountIDPattern = regexp.MustCompile(`^\d{12}$`)

// Render returns one display line per triple, in the same order.
// The name and role columns are padded to the widest value in their
// column, widths are measured in terminal cells.
func Render(triples []catalog.Triple) []string {
	var nameWidth, roleWidth int
	for _, t := range triples {
		nameWidth = max(nameWidth, runewidth.StringWidth(t.ProfileName))
		roleWidth = max(roleWidth, runewidth.StringWidth(t.RoleName))
	}

	lines := make([]string, 0, len(triples))
	seen := make(map[string]bool, len(triples))
	for _, t := range triples {
		line := runewidth.FillRight(t.ProfileName, nameWidth) + columnGap +
			runewidth.FillRight(t.RoleName, roleWidth) + columnGap +
			t.AccountID
		if seen[line] {
			clio.Warnf("profile %q with role %s in account %s is listed more than once, the first entry will be used", t.ProfileName, t.RoleName, t.AccountID)
		}
		seen[line] = true
		lines = append(lines, line)
	}
	return lines
}

// ChoiceError is returned when a line cannot be parsed back into a triple.
type ChoiceError struct {
	Choice string
	Reason string
}

func (e *ChoiceError) Error() string {
	return fmt.Sprintf("invalid choice %q: %s", e.Choice, e.Reason)
}

// ParseChoice is the inverse of Render. The last token is the account id,
// the one before it the role name and everything in front of them, joined
// by single spaces, the profile name.
func ParseChoice(choice string) (catalog.Triple, error) {
	fields := strings.Fields(choice)
	if len(fields) < 3 {
		return catalog.Triple{}, &ChoiceError{Choice: choice, Reason: "expected a profile name, role name and account id"}
	}
	n := len(fields)
	accountID := fields[n-1]
	if !accountIDPattern.MatchString(accountID) {
		return catalog.Triple{}, &ChoiceError{Choice: choice, Reason: fmt.Sprintf("%q is not a 12 digit account id", accountID)}
	}
	return catalog.Triple{
		AccountID:   accountID,
		RoleName:    fields[n-2],
		ProfileName: strings.Join(fields[:n-2], " "),
	}, nil
}
