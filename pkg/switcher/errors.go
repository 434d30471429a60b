package switcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
	"github.com/common-fate/clio"
	"github.com/common-fate/clio/clierr"

	"github.com/common-fate/ssoswitch/pkg/awsconfig"
	"github.com/common-fate/ssoswitch/pkg/credwriter"
	"github.com/common-fate/ssoswitch/pkg/selection"
)

// Stage is a step of a switch. Stages run in the order they are declared.
type Stage string

const (
	StageStart          Stage = "start"
	StageRefreshing     Stage = "refreshing profiles"
	StageCatalog        Stage = "loading profiles"
	StageSelecting      Stage = "selecting a profile"
	StageAuthenticating Stage = "authenticating"
	StageExchanging     Stage = "exchanging token for credentials"
	StageWriting        Stage = "writing credentials"
	StageVerifying      Stage = "verifying credentials"
)

type Kind int

const (
	// KindUsage is an error the operator can fix by changing flags or settings.
	KindUsage Kind = iota
	KindNotFound
	KindParse
	KindIO
	// KindCancelled means the operator aborted. It is not a failure.
	KindCancelled
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage error"
	case KindNotFound:
		return "not found"
	case KindParse:
		return "parse error"
	case KindIO:
		return "io error"
	case KindCancelled:
		return "cancelled"
	case KindRemote:
		return "remote error"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by Session.Run and names the stage that failed.
type Error struct {
	Stage Stage
	Kind  Kind
	Err   error
	// Hint is an optional suggestion shown to the operator.
	Hint string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// PrintCLIError implements clierr.PrintCLIErrorer.
func (e *Error) PrintCLIError() {
	if e.Kind == KindCancelled {
		clio.Warnf("%s: cancelled, nothing was written", e.Stage)
		return
	}

	var opts []clierr.Printer
	var apiErr smithy.APIError
	if errors.As(e.Err, &apiErr) {
		opts = append(opts, clierr.Infof("AWS returned %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage()))
	}
	var partial *credwriter.PartialWriteError
	if errors.As(e.Err, &partial) {
		opts = append(opts, clierr.Infof("the credentials in %s were written and can be used", partial.CredentialsPath))
	}
	if e.Hint != "" {
		opts = append(opts, clierr.Info(e.Hint))
	}
	clierr.New(fmt.Sprintf("%s failed (%s): %s", e.Stage, e.Kind, e.Err), opts...).PrintCLIError()
}

// ExitCode is the process exit code for an error returned by the app.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var serr *Error
	if errors.As(err, &serr) && serr.Kind == KindCancelled {
		return 0
	}
	return 1
}

func newError(stage Stage, kind Kind, err error) *Error {
	return &Error{Stage: stage, Kind: kind, Err: err}
}

// wrap classifies err and attaches the stage it happened in.
func wrap(stage Stage, err error) *Error {
	return newError(stage, classify(stage, err), err)
}

func classify(stage Stage, err error) Kind {
	var (
		parseErr  *awsconfig.ParseError
		ioErr     *awsconfig.IOError
		choiceErr *selection.ChoiceError
		apiErr    smithy.APIError
	)
	switch {
	case errors.Is(err, selection.ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, selection.ErrNotInteractive):
		return KindUsage
	case errors.Is(err, awsconfig.ErrNotFound):
		return KindNotFound
	case errors.As(err, &parseErr), errors.As(err, &choiceErr):
		return KindParse
	case errors.As(err, &apiErr):
		return KindRemote
	case errors.As(err, &ioErr):
		return KindIO
	}
	switch stage {
	case StageAuthenticating, StageExchanging, StageVerifying:
		return KindRemote
	case StageRefreshing:
		// the only call in this stage that is not a file operation is the role listing
		return KindRemote
	}
	return KindIO
}
