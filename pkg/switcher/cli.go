package switcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/common-fate/clio"
	"github.com/urfave/cli/v2"

	"github.com/common-fate/ssoswitch/internal/build"
	settings "github.com/common-fate/ssoswitch/pkg/config"
	"github.com/common-fate/ssoswitch/pkg/idc"
	"github.com/common-fate/ssoswitch/pkg/region"
	"github.com/common-fate/ssoswitch/pkg/selection"
)

func GetCliApp() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		clio.Log(fmt.Sprintf("%s %s (commit %s, built %s by %s)", build.BinaryName, build.Version, build.Commit, build.Date, build.BuiltBy))
	}

	flags := []cli.Flag{
		&cli.BoolFlag{Name: "update", Usage: "Refresh profiles in the AWS config file from the SSO portal"},
		&cli.StringFlag{Name: "sso_start_url", Usage: "SSO portal URL used when refreshing profiles", EnvVars: []string{"SSOSWITCH_SSO_START_URL"}},
		&cli.StringFlag{Name: "aws_config", Usage: "Path to the AWS config file", Value: config.DefaultSharedConfigFilename(), EnvVars: []string{"AWS_CONFIG_FILE"}},
		&cli.StringFlag{Name: "aws_credentials", Usage: "Path to the AWS credentials file", Value: config.DefaultSharedCredentialsFilename(), EnvVars: []string{"AWS_SHARED_CREDENTIALS_FILE"}},
		&cli.StringFlag{Name: "sso_region", Usage: "Region of the SSO portal used when refreshing profiles", DefaultText: settings.DefaultSSORegion},
		&cli.StringFlag{Name: "region", Usage: "Region written to refreshed profiles", DefaultText: settings.DefaultRegion},
		&cli.BoolFlag{Name: "list", Usage: "Print the profiles in the AWS config file and exit"},
		&cli.BoolFlag{Name: "verify", Usage: "Call sts:GetCallerIdentity with the new credentials"},
		&cli.BoolFlag{Name: "verbose", Usage: "Log debug messages"},
	}

	app := &cli.App{
		Flags:       flags,
		Name:        build.BinaryName,
		Usage:       "Log in to AWS IAM Identity Center and switch the default AWS credentials to a chosen role",
		UsageText:   build.BinaryName + " [global options]",
		Version:     build.Version,
		HideVersion: false,
		Before: func(c *cli.Context) error {
			clio.SetLevelFromEnv("SSOSWITCH_LOG")
			if c.Bool("verbose") {
				clio.SetLevelFromString("debug")
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			cfg, err := settings.Load()
			if err != nil {
				return err
			}
			opts, err := resolveOpts(flagValues{
				Update:          c.Bool("update"),
				StartURL:        c.String("sso_start_url"),
				ConfigPath:      c.String("aws_config"),
				CredentialsPath: c.String("aws_credentials"),
				SSORegion:       c.String("sso_region"),
				Region:          c.String("region"),
				List:            c.Bool("list"),
				Verify:          c.Bool("verify"),
			}, *cfg)
			if err != nil {
				return err
			}

			client := idc.New()
			client.CustomSSOBrowserPath = cfg.CustomSSOBrowserPath

			s := Session{
				Opts:     opts,
				Portal:   client,
				Verifier: client,
				Picker:   selection.SurveyPicker{PageSize: cfg.PickerPageSize},
			}
			_, err = s.Run(c.Context)
			return err
		},
	}

	return app
}

type flagValues struct {
	Update          bool
	StartURL        string
	ConfigPath      string
	CredentialsPath string
	SSORegion       string
	Region          string
	List            bool
	Verify          bool
}

// resolveOpts merges flags with the settings file. Flags win.
func resolveOpts(f flagValues, cfg settings.Config) (Opts, error) {
	opts := Opts{
		Update:        f.Update,
		StartURL:      strings.TrimSpace(f.StartURL),
		ProfileOutput: cfg.ProfileOutput,
		List:          f.List,
		Verify:        f.Verify,
	}
	if opts.StartURL == "" {
		opts.StartURL = cfg.DefaultSSOStartURL
	}

	var err error
	if opts.SSORegion, err = expandRegion("sso_region", f.SSORegion, cfg.DefaultSSORegion); err != nil {
		return Opts{}, err
	}
	if opts.Region, err = expandRegion("region", f.Region, cfg.DefaultRegion); err != nil {
		return Opts{}, err
	}
	if opts.ConfigPath, err = expandHome(f.ConfigPath); err != nil {
		return Opts{}, newError(StageStart, KindUsage, err)
	}
	if opts.CredentialsPath, err = expandHome(f.CredentialsPath); err != nil {
		return Opts{}, newError(StageStart, KindUsage, err)
	}
	return opts, nil
}

func expandRegion(flag, value, fallback string) (string, error) {
	if value == "" {
		value = fallback
	}
	r, err := region.Expand(value)
	if err != nil {
		return "", &Error{Stage: StageStart, Kind: KindUsage, Err: err, Hint: fmt.Sprintf("--%s takes a region such as us-east-1 or a shorthand such as ue1", flag)}
	}
	return r, nil
}

func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
