// Package switcher runs a profile switch: refresh the profile catalog from
// the portal when asked, let the operator pick a profile, exchange an access
// token for role credentials and write them as the default credentials.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/common-fate/clio"
	"github.com/fatih/color"
	"github.com/hako/durafmt"

	"github.com/common-fate/ssoswitch/pkg/awsconfig"
	"github.com/common-fate/ssoswitch/pkg/catalog"
	"github.com/common-fate/ssoswitch/pkg/credwriter"
	"github.com/common-fate/ssoswitch/pkg/idc"
	"github.com/common-fate/ssoswitch/pkg/selection"
)

// Portal is the identity provider a switch talks to.
type Portal interface {
	Login(ctx context.Context, startURL, ssoRegion string) (*idc.Token, error)
	ListAccessibleRoles(ctx context.Context, startURL, ssoRegion string) ([]catalog.RemoteRoleEntry, error)
	GetRoleCredentials(ctx context.Context, accessToken, accountID, roleName, region string) (aws.Credentials, error)
}

// Verifier resolves the identity behind a set of credentials.
type Verifier interface {
	CallerIdentity(ctx context.Context, creds aws.Credentials, region string) (string, error)
}

type Opts struct {
	// Update refreshes the catalog from the portal before selecting.
	Update bool
	// StartURL and SSORegion identify the portal used for a refresh.
	StartURL  string
	SSORegion string
	// Region is written as the region of profiles added by a refresh.
	Region string
	// ProfileOutput is written as the output of profiles added by a refresh.
	ProfileOutput   string
	ConfigPath      string
	CredentialsPath string
	// List prints the catalog instead of switching.
	List   bool
	Verify bool
}

type Session struct {
	Opts     Opts
	Portal   Portal
	Picker   selection.Picker
	Verifier Verifier
	// Out receives operator facing output. Defaults to stderr.
	Out io.Writer
}

// Result describes a completed switch.
type Result struct {
	Added       []awsconfig.Profile
	Profile     awsconfig.Profile
	Credentials aws.Credentials
	// ARN is set when the credentials were verified.
	ARN string
}

func (s *Session) out() io.Writer {
	if s.Out != nil {
		return s.Out
	}
	return color.Error
}

// Run executes the switch. Every error it returns is an *Error.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	var res Result

	refresh, err := s.needsRefresh()
	if err != nil {
		return nil, err
	}
	if refresh {
		res.Added, err = s.refresh(ctx)
		if err != nil {
			return nil, err
		}
	}

	cat, err := s.loadCatalog()
	if err != nil {
		return nil, err
	}
	if s.Opts.List {
		printCatalog(s.out(), cat)
		return &res, nil
	}

	res.Profile, err = s.selectProfile(cat)
	if err != nil {
		return nil, err
	}
	p := res.Profile

	clio.Debugf("logging in to %s (%s)", p.SSOStartURL, p.SSORegion)
	token, err := s.Portal.Login(ctx, p.SSOStartURL, p.SSORegion)
	if err != nil {
		return nil, wrap(StageAuthenticating, err)
	}

	res.Credentials, err = s.Portal.GetRoleCredentials(ctx, token.AccessToken, p.SSOAccountID, p.SSORoleName, p.SSORegion)
	if err != nil {
		return nil, wrap(StageExchanging, err)
	}

	if err := credwriter.Write(res.Credentials, s.Opts.CredentialsPath, s.Opts.ConfigPath); err != nil {
		return nil, wrap(StageWriting, err)
	}
	clio.Successf("Wrote credentials for %s (%s) to %s", p.SSORoleName, p.SSOAccountID, s.Opts.CredentialsPath)
	if res.Credentials.CanExpire {
		clio.Infof("Credentials expire in %s", durafmt.Parse(time.Until(res.Credentials.Expires)).LimitFirstN(2).String())
	}

	if s.Opts.Verify && s.Verifier != nil {
		res.ARN, err = s.Verifier.CallerIdentity(ctx, res.Credentials, p.Region)
		if err != nil {
			return nil, wrap(StageVerifying, err)
		}
		clio.Infof("Credentials resolve to %s", res.ARN)
	}

	return &res, nil
}

// needsRefresh reports whether the catalog has to be refreshed: either it
// was asked for or the config file does not exist yet.
func (s *Session) needsRefresh() (bool, error) {
	if s.Opts.Update {
		return true, nil
	}
	_, err := os.Stat(s.Opts.ConfigPath)
	if errors.Is(err, os.ErrNotExist) {
		clio.Infof("%s does not exist, refreshing profiles", s.Opts.ConfigPath)
		return true, nil
	}
	if err != nil {
		return false, newError(StageStart, KindIO, &awsconfig.IOError{Op: "stat", Path: s.Opts.ConfigPath, Err: err})
	}
	return false, nil
}

func (s *Session) refresh(ctx context.Context) ([]awsconfig.Profile, error) {
	if s.Opts.StartURL == "" {
		return nil, &Error{
			Stage: StageRefreshing,
			Kind:  KindUsage,
			Err:   errors.New("an SSO start URL is required to refresh profiles"),
			Hint:  "pass --sso_start_url or set DefaultSSOStartURL in the settings file",
		}
	}

	created, err := awsconfig.EnsureExists(s.Opts.ConfigPath, s.Opts.Region)
	if err != nil {
		return nil, wrap(StageRefreshing, err)
	}
	if created {
		clio.Infof("Created %s", s.Opts.ConfigPath)
	}

	entries, err := s.Portal.ListAccessibleRoles(ctx, s.Opts.StartURL, s.Opts.SSORegion)
	if err != nil {
		return nil, wrap(StageRefreshing, err)
	}

	doc, err := awsconfig.Load(s.Opts.ConfigPath)
	if err != nil {
		return nil, wrap(StageRefreshing, err)
	}
	candidates := catalog.FromStore(doc).Refresh(entries, catalog.Defaults{
		StartURL:  s.Opts.StartURL,
		SSORegion: s.Opts.SSORegion,
		Region:    s.Opts.Region,
	})
	added, err := awsconfig.MergeSections(doc, candidates, s.Opts.ProfileOutput)
	if err != nil {
		return nil, newError(StageRefreshing, KindIO, err)
	}
	if len(added) == 0 {
		clio.Infof("No new profiles found (%d roles listed)", len(entries))
		return nil, nil
	}
	if err := awsconfig.Write(s.Opts.ConfigPath, doc); err != nil {
		return nil, wrap(StageRefreshing, err)
	}
	clio.Successf("Added %d profiles to %s", len(added), s.Opts.ConfigPath)
	return added, nil
}

func (s *Session) loadCatalog() (*catalog.Catalog, error) {
	doc, err := awsconfig.Load(s.Opts.ConfigPath)
	if err != nil {
		return nil, wrap(StageCatalog, err)
	}
	cat := catalog.FromStore(doc)
	if cat.Len() == 0 {
		return nil, &Error{
			Stage: StageCatalog,
			Kind:  KindUsage,
			Err:   fmt.Errorf("no SSO profiles found in %s", s.Opts.ConfigPath),
			Hint:  "run again with --update --sso_start_url <your portal URL> to add profiles",
		}
	}
	clio.Debugf("loaded %d profiles from %s", cat.Len(), s.Opts.ConfigPath)
	return cat, nil
}

func (s *Session) selectProfile(cat *catalog.Catalog) (awsconfig.Profile, error) {
	choice, err := selection.Select(s.Picker, selection.Render(cat.Triples()))
	if err != nil {
		return awsconfig.Profile{}, wrap(StageSelecting, err)
	}
	triple, err := selection.ParseChoice(choice)
	if err != nil {
		return awsconfig.Profile{}, wrap(StageSelecting, err)
	}
	p, ok := cat.Lookup(triple)
	if !ok {
		return awsconfig.Profile{}, newError(StageSelecting, KindNotFound, fmt.Errorf("no profile matches %q", choice))
	}

	w := s.out()
	fmt.Fprintf(w, "profile_name: %s\n", p.Name)
	fmt.Fprintf(w, "account_id: %s\n", p.SSOAccountID)
	fmt.Fprintf(w, "role_name: %s\n", p.SSORoleName)
	return p, nil
}
