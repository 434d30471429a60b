package selection

import (
	"errors"
	"testing"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/common-fate/ssoswitch/pkg/testable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurveyPicker(t *testing.T) {
	options := []string{
		"Dev Ops  Admin     111122223333",
		"Prod     ReadOnly  222233334444",
	}
	rec := testable.WithInputs(t, options[1])

	got, err := Select(SurveyPicker{PageSize: 15}, options)
	require.NoError(t, err)
	assert.Equal(t, options[1], got)

	require.Len(t, rec.Prompts, 1)
	prompt, ok := rec.Prompts[0].(*survey.Select)
	require.True(t, ok)
	assert.Equal(t, options, prompt.Options)
	assert.Equal(t, 15, prompt.PageSize)
}

func TestSelectCancelled(t *testing.T) {
	testable.WithInputs(t, terminal.InterruptErr)

	_, err := Select(SurveyPicker{}, []string{"dev  Admin  111122223333"})
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestSelectPassesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	testable.WithInputs(t, boom)

	_, err := Select(SurveyPicker{}, []string{"dev  Admin  111122223333"})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrCancelled)
}

func TestSelectNoChoices(t *testing.T) {
	_, err := Select(SurveyPicker{}, nil)
	assert.Error(t, err)
}

func TestFilterFuzzyTokens(t *testing.T) {
	line := "Shared Services  ReadOnly  222233334444"
	tests := []struct {
		filter string
		want   bool
	}{
		{filter: "", want: true},
		{filter: "shared", want: true},
		{filter: "shsv ro", want: true},
		{filter: "2222 readonly", want: true},
		{filter: "admin", want: false},
		{filter: "shared admin", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			assert.Equal(t, tt.want, filterFuzzyTokens(tt.filter, line, 0))
		})
	}
}
