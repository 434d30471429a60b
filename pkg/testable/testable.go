// Package testable lets tests answer survey prompts without a terminal.
//
//	rec := testable.WithInputs(t, "Dev Ops  Admin  111122223333")
//	// code under test calls testable.AskOne(...)
//	rec.Prompts // the prompts that were asked
package testable

import (
	"testing"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/core"
)

var isTesting = false
var nextSurveyInput = func(p survey.Prompt) (interface{}, error) { panic("no survey input configured") }

// Recorder keeps the prompts that were answered from test inputs.
type Recorder struct {
	Prompts []survey.Prompt
}

// configures AskOne to answer from test inputs
func BeginTesting() {
	isTesting = true
}

// configures AskOne to prompt the user again
func EndTesting() {
	isTesting = false
}

func IsTesting() bool {
	return isTesting
}

// WithInputs answers the next survey prompts with inputs, in order.
// An input that is an error is returned from AskOne instead of an answer,
// which is how tests simulate the user aborting a prompt.
// Testing mode ends when the test finishes.
func WithInputs(t testing.TB, inputs ...interface{}) *Recorder {
	t.Helper()
	rec := &Recorder{}
	pos := 0
	nextSurveyInput = func(p survey.Prompt) (interface{}, error) {
		if pos >= len(inputs) {
			t.Fatalf("survey prompt %d asked but only %d inputs were given", pos+1, len(inputs))
		}
		rec.Prompts = append(rec.Prompts, p)
		v := inputs[pos]
		pos++
		if err, ok := v.(error); ok {
			return nil, err
		}
		return v, nil
	}
	BeginTesting()
	t.Cleanup(EndTesting)
	return rec
}

// AskOne wraps survey.AskOne. While testing, the answer comes from the
// inputs given to WithInputs instead of the terminal.
func AskOne(in survey.Prompt, out interface{}, opts ...survey.AskOpt) error {
	if isTesting {
		v, err := nextSurveyInput(in)
		if err != nil {
			return err
		}
		return core.WriteAnswer(out, "", v)
	}
	return survey.AskOne(in, out, opts...)
}
