package switcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/common-fate/ssoswitch/pkg/awsconfig"
	"github.com/common-fate/ssoswitch/pkg/catalog"
	"github.com/common-fate/ssoswitch/pkg/idc"
	"github.com/common-fate/ssoswitch/pkg/selection"
)

const testConfig = `[default]
region = us-east-1

[profile Dev Ops]
sso_start_url  = https://other.awsapps.com/start
sso_region     = eu-west-1
sso_account_id = 111122223333
sso_role_name  = Admin
region         = eu-west-1

[profile Prod ReadOnl]
sso_start_url  = https://example.awsapps.com/start
sso_region     = us-east-1
sso_account_id = 222233334444
sso_role_name  = ReadOnlyAccess
region         = us-east-1
`

type loginCall struct{ startURL, region string }

type fakePortal struct {
	entries    []catalog.RemoteRoleEntry
	listErr    error
	loginErr   error
	exchErr    error
	logins     []loginCall
	listings   int
	exchRegion string
}

func (f *fakePortal) Login(ctx context.Context, startURL, ssoRegion string) (*idc.Token, error) {
	f.logins = append(f.logins, loginCall{startURL, ssoRegion})
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &idc.Token{AccessToken: "token", Expiry: time.Now().Add(time.Hour)}, nil
}

func (f *fakePortal) ListAccessibleRoles(ctx context.Context, startURL, ssoRegion string) ([]catalog.RemoteRoleEntry, error) {
	f.listings++
	return f.entries, f.listErr
}

func (f *fakePortal) GetRoleCredentials(ctx context.Context, accessToken, accountID, roleName, region string) (aws.Credentials, error) {
	f.exchRegion = region
	if f.exchErr != nil {
		return aws.Credentials{}, f.exchErr
	}
	return aws.Credentials{
		AccessKeyID:     "ASIA" + accountID,
		SecretAccessKey: "secret-" + roleName,
		SessionToken:    accessToken,
		CanExpire:       true,
		Expires:         time.Now().Add(time.Hour),
	}, nil
}

// fakePicker picks the first option containing want.
type fakePicker struct {
	want    string
	err     error
	options []string
}

func (f *fakePicker) Pick(message string, options []string) (string, error) {
	f.options = options
	if f.err != nil {
		return "", f.err
	}
	for _, o := range options {
		if strings.Contains(o, f.want) {
			return o, nil
		}
	}
	return "", errors.New("no option matched")
}

type fakeVerifier struct{ region string }

func (f *fakeVerifier) CallerIdentity(ctx context.Context, creds aws.Credentials, region string) (string, error) {
	f.region = region
	return "arn:aws:sts::" + strings.TrimPrefix(creds.AccessKeyID, "ASIA") + ":assumed-role/test", nil
}

type testEnv struct {
	dir, configPath, credsPath string
	out                        *bytes.Buffer
}

func newTestEnv(t *testing.T, config *string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, ".aws", "config"),
		credsPath:  filepath.Join(dir, ".aws", "credentials"),
		out:        &bytes.Buffer{},
	}
	if config != nil {
		require.NoError(t, os.MkdirAll(filepath.Dir(env.configPath), 0700))
		require.NoError(t, os.WriteFile(env.configPath, []byte(*config), 0600))
	}
	return env
}

func (e testEnv) session(portal *fakePortal, picker *fakePicker, mutate ...func(*Opts)) *Session {
	opts := Opts{
		SSORegion:       "us-east-1",
		Region:          "ap-southeast-2",
		ProfileOutput:   "text",
		ConfigPath:      e.configPath,
		CredentialsPath: e.credsPath,
	}
	for _, m := range mutate {
		m(&opts)
	}
	return &Session{Opts: opts, Portal: portal, Picker: picker, Out: e.out}
}

func requireStageError(t *testing.T, err error, stage Stage, kind Kind) *Error {
	t.Helper()
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, stage, serr.Stage)
	assert.Equal(t, kind, serr.Kind, "kind was %s", serr.Kind)
	return serr
}

func TestRunSwitchesToSelectedProfile(t *testing.T) {
	env := newTestEnv(t, aws.String(testConfig))
	portal := &fakePortal{}
	picker := &fakePicker{want: "Dev Ops"}

	res, err := env.session(portal, picker).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Dev Ops       Admin           111122223333",
		"Prod ReadOnl  ReadOnlyAccess  222233334444",
	}, picker.options)
	assert.Equal(t, "Dev Ops", res.Profile.Name)

	// the profile's own portal is used, not the one from the options
	assert.Equal(t, []loginCall{{"https://other.awsapps.com/start", "eu-west-1"}}, portal.logins)
	assert.Equal(t, "eu-west-1", portal.exchRegion)
	assert.Equal(t, 0, portal.listings)

	creds, err := awsconfig.Load(env.credsPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, creds.SectionNames())
	id, _ := creds.Get("default", "aws_access_key_id")
	assert.Equal(t, "ASIA111122223333", id)

	config, err := awsconfig.Load(env.configPath)
	require.NoError(t, err)
	assert.True(t, config.HasSection("profile default"))

	assert.Contains(t, env.out.String(), "profile_name: Dev Ops\naccount_id: 111122223333\nrole_name: Admin\n")
}

func TestRunRefreshesWhenConfigMissing(t *testing.T) {
	env := newTestEnv(t, nil)
	portal := &fakePortal{entries: []catalog.RemoteRoleEntry{
		{AccountID: "222233334444", AccountName: "Prod", RoleName: "ReadOnly"},
	}}
	picker := &fakePicker{want: "Prod"}

	res, err := env.session(portal, picker, func(o *Opts) {
		o.StartURL = "https://example.awsapps.com/start"
	}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Added, 1)
	assert.Equal(t, "profile Prod ReadOnl", res.Added[0].SectionName)
	assert.Equal(t, 1, portal.listings)

	config, err := awsconfig.Load(env.configPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "profile Prod ReadOnl", "profile default"}, config.SectionNames())
	region, _ := config.Get("default", "region")
	assert.Equal(t, "ap-southeast-2", region)
	output, _ := config.Get("profile Prod ReadOnl", "output")
	assert.Equal(t, "text", output)

	assert.Equal(t, "Prod ReadOnl", res.Profile.Name)
	assert.Equal(t, []loginCall{{"https://example.awsapps.com/start", "us-east-1"}}, portal.logins)
}

func TestRunUpdateIsIdempotent(t *testing.T) {
	env := newTestEnv(t, aws.String(testConfig))
	portal := &fakePortal{entries: []catalog.RemoteRoleEntry{
		{AccountID: "222233334444", AccountName: "Prod", RoleName: "ReadOnlyAccess"},
		{AccountID: "333344445555", AccountName: "Sandbox", RoleName: "Admin"},
	}}
	update := func(o *Opts) {
		o.Update = true
		o.StartURL = "https://example.awsapps.com/start"
	}

	res, err := env.session(portal, &fakePicker{want: "Sandbox"}, update).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Added, 1)
	assert.Equal(t, "profile Sandbox Admin", res.Added[0].SectionName)
	first, err := os.ReadFile(env.configPath)
	require.NoError(t, err)

	res, err = env.session(portal, &fakePicker{want: "Sandbox"}, update).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Added)
	second, err := os.ReadFile(env.configPath)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(second), "sso_start_url  = https://other.awsapps.com/start")
}

func TestRunErrors(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "UnauthorizedException", Message: "Session token not found or invalid"}

	tests := []struct {
		name   string
		config *string
		portal *fakePortal
		picker *fakePicker
		opts   func(*Opts)
		stage  Stage
		kind   Kind
	}{
		{
			name:   "refresh without start url",
			config: aws.String(testConfig),
			opts:   func(o *Opts) { o.Update = true },
			stage:  StageRefreshing,
			kind:   KindUsage,
		},
		{
			name:  "missing config without start url",
			stage: StageRefreshing,
			kind:  KindUsage,
		},
		{
			name:   "listing fails",
			config: aws.String(testConfig),
			portal: &fakePortal{listErr: apiErr},
			opts: func(o *Opts) {
				o.Update = true
				o.StartURL = "https://example.awsapps.com/start"
			},
			stage: StageRefreshing,
			kind:  KindRemote,
		},
		{
			name:   "empty catalog",
			config: aws.String("[default]\nregion = us-east-1\n"),
			stage:  StageCatalog,
			kind:   KindUsage,
		},
		{
			name:   "malformed config",
			config: aws.String("[profile broken\nregion = us-east-1\n"),
			stage:  StageCatalog,
			kind:   KindParse,
		},
		{
			name:   "picker cancelled",
			config: aws.String(testConfig),
			picker: &fakePicker{err: selection.ErrCancelled},
			stage:  StageSelecting,
			kind:   KindCancelled,
		},
		{
			name:   "not a terminal",
			config: aws.String(testConfig),
			picker: &fakePicker{err: selection.ErrNotInteractive},
			stage:  StageSelecting,
			kind:   KindUsage,
		},
		{
			name:   "login fails",
			config: aws.String(testConfig),
			portal: &fakePortal{loginErr: apiErr},
			stage:  StageAuthenticating,
			kind:   KindRemote,
		},
		{
			name:   "login times out",
			config: aws.String(testConfig),
			portal: &fakePortal{loginErr: idc.ErrTimeout},
			stage:  StageAuthenticating,
			kind:   KindRemote,
		},
		{
			name:   "exchange fails",
			config: aws.String(testConfig),
			portal: &fakePortal{exchErr: apiErr},
			stage:  StageExchanging,
			kind:   KindRemote,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.config)
			portal := tt.portal
			if portal == nil {
				portal = &fakePortal{}
			}
			picker := tt.picker
			if picker == nil {
				picker = &fakePicker{want: "Prod"}
			}
			var mutate []func(*Opts)
			if tt.opts != nil {
				mutate = append(mutate, tt.opts)
			}

			_, err := env.session(portal, picker, mutate...).Run(context.Background())
			requireStageError(t, err, tt.stage, tt.kind)

			_, statErr := os.Stat(env.credsPath)
			assert.True(t, errors.Is(statErr, os.ErrNotExist), "credentials must not be written on failure")
		})
	}
}

func TestRunPartialWrite(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	env := newTestEnv(t, aws.String(testConfig))
	s := env.session(&fakePortal{}, &fakePicker{want: "Prod"})
	s.Opts.ConfigPath = filepath.Join(env.dir, "elsewhere", "config")

	// the catalog is loaded from the real config, the default profile
	// has to be added to a config that does not exist
	cat, err := awsconfig.Load(env.configPath)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Opts.ConfigPath), 0700))
	require.NoError(t, awsconfig.Write(s.Opts.ConfigPath, cat))
	require.NoError(t, os.Chmod(filepath.Dir(s.Opts.ConfigPath), 0500))
	t.Cleanup(func() { os.Chmod(filepath.Dir(s.Opts.ConfigPath), 0700) })

	_, err = s.Run(context.Background())
	requireStageError(t, err, StageWriting, KindIO)

	creds, err := awsconfig.Load(env.credsPath)
	require.NoError(t, err)
	assert.True(t, creds.HasSection("default"))
}

func TestRunList(t *testing.T) {
	env := newTestEnv(t, aws.String(testConfig))
	portal := &fakePortal{}

	_, err := env.session(portal, &fakePicker{}, func(o *Opts) { o.List = true }).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, portal.logins)
	out := env.out.String()
	assert.Contains(t, out, "PROFILE")
	assert.Contains(t, out, "Dev Ops")
	assert.Contains(t, out, "222233334444")
}

func TestRunVerify(t *testing.T) {
	env := newTestEnv(t, aws.String(testConfig))
	verifier := &fakeVerifier{}
	s := env.session(&fakePortal{}, &fakePicker{want: "Prod"}, func(o *Opts) { o.Verify = true })
	s.Verifier = verifier

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:sts::222233334444:assumed-role/test", res.ARN)
	assert.Equal(t, "us-east-1", verifier.region)
}
