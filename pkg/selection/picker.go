package selection

import (
	"errors"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/common-fate/ssoswitch/pkg/testable"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mattn/go-isatty"
)

// ErrCancelled is returned when the user aborts the picker.
var ErrCancelled = errors.New("selection cancelled")

// ErrNotInteractive is returned when a picker needs a terminal but
// stdin is not one.
var ErrNotInteractive = errors.New("choosing a profile requires an interactive terminal")

// Picker asks the user to pick one of the options and returns it verbatim.
type Picker interface {
	Pick(message string, options []string) (string, error)
}

// Select asks the picker for one of the rendered choices.
func Select(p Picker, choices []string) (string, error) {
	if len(choices) == 0 {
		return "", errors.New("there are no profiles to choose from")
	}
	chosen, err := p.Pick("Choose an account:", choices)
	if errors.Is(err, terminal.InterruptErr) || errors.Is(err, ErrCancelled) {
		return "", ErrCancelled
	}
	if err != nil {
		return "", err
	}
	return chosen, nil
}

// SurveyPicker is a Picker backed by a survey select prompt on stderr.
// Typing filters the list: every space separated word has to fuzzy match
// the line.
type SurveyPicker struct {
	// PageSize is the number of lines shown at once, survey's default
	// is used when zero.
	PageSize int
}

func (s SurveyPicker) Pick(message string, options []string) (string, error) {
	if !testable.IsTesting() && !isTerminal(os.Stdin) {
		return "", ErrNotInteractive
	}
	in := survey.Select{
		Message:  message,
		Options:  options,
		Filter:   filterFuzzyTokens,
		PageSize: s.PageSize,
	}
	var out string
	withStdio := survey.WithStdio(os.Stdin, os.Stderr, os.Stderr)
	err := testable.AskOne(&in, &out, withStdio)
	return out, err
}

func filterFuzzyTokens(filterValue string, optValue string, optIndex int) bool {
	for _, token := range strings.Fields(filterValue) {
		if !fuzzy.MatchFold(token, optValue) {
			return false
		}
	}
	return true
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
