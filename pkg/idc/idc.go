// Package idc talks to AWS IAM Identity Center: the device code login,
// listing the roles a user can access and exchanging a token for role
// credentials.
package idc

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sso"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/briandowns/spinner"
	"github.com/common-fate/clio"
	"github.com/pkg/browser"
	"github.com/pkg/errors"

	"github.com/common-fate/ssoswitch/internal/build"
	"github.com/common-fate/ssoswitch/pkg/catalog"
)

// Token is an IAM Identity Center access token. It only lives in memory.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// Valid reports whether the token can still be used for at least a minute.
func (t *Token) Valid() bool {
	return t != nil && t.AccessToken != "" && time.Now().Add(time.Minute).Before(t.Expiry)
}

type oidcAPI interface {
	RegisterClient(ctx context.Context, params *ssooidc.RegisterClientInput, optFns ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error)
	StartDeviceAuthorization(ctx context.Context, params *ssooidc.StartDeviceAuthorizationInput, optFns ...func(*ssooidc.Options)) (*ssooidc.StartDeviceAuthorizationOutput, error)
	CreateToken(ctx context.Context, params *ssooidc.CreateTokenInput, optFns ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error)
}

type portalAPI interface {
	sso.ListAccountsAPIClient
	sso.ListAccountRolesAPIClient
	GetRoleCredentials(ctx context.Context, params *sso.GetRoleCredentialsInput, optFns ...func(*sso.Options)) (*sso.GetRoleCredentialsOutput, error)
}

// Client implements the remote side of a switch. Tokens obtained by Login
// are reused for the rest of the process, keyed by start URL and region.
type Client struct {
	// CustomSSOBrowserPath overrides the system browser for the login page.
	CustomSSOBrowserPath string

	newOIDC   func(ctx context.Context, region string) (oidcAPI, error)
	newPortal func(ctx context.Context, region string) (portalAPI, error)
	openURL   func(url string) error
	sleep     func(ctx context.Context, d time.Duration) error
	tokens    map[string]*Token
}

func New() *Client {
	c := &Client{
		newOIDC: func(ctx context.Context, region string) (oidcAPI, error) {
			cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
			if err != nil {
				return nil, err
			}
			return ssooidc.NewFromConfig(cfg), nil
		},
		newPortal: func(ctx context.Context, region string) (portalAPI, error) {
			cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
			if err != nil {
				return nil, err
			}
			return sso.NewFromConfig(cfg), nil
		},
		sleep:  sleepContext,
		tokens: map[string]*Token{},
	}
	c.openURL = c.openBrowser
	return c
}

func tokenKey(startURL, region string) string {
	return startURL + "|" + region
}

// ListAccessibleRoles returns every (account, role) pair the user can access
// through the portal at startURL, logging in first if needed.
func (c *Client) ListAccessibleRoles(ctx context.Context, startURL, ssoRegion string) ([]catalog.RemoteRoleEntry, error) {
	token, err := c.Login(ctx, startURL, ssoRegion)
	if err != nil {
		return nil, err
	}

	client, err := c.newPortal(ctx, ssoRegion)
	if err != nil {
		return nil, err
	}

	si := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	si.Suffix = " listing accounts and roles..."
	si.Writer = os.Stderr
	si.Start()
	defer si.Stop()

	return listRoles(ctx, client, token.AccessToken)
}

func listRoles(ctx context.Context, client portalAPI, accessToken string) ([]catalog.RemoteRoleEntry, error) {
	var entries []catalog.RemoteRoleEntry

	accounts := sso.NewListAccountsPaginator(client, &sso.ListAccountsInput{AccessToken: &accessToken})
	for accounts.HasMorePages() {
		page, err := accounts.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "listing accounts")
		}

		for _, account := range page.AccountList {
			roles := sso.NewListAccountRolesPaginator(client, &sso.ListAccountRolesInput{
				AccessToken: &accessToken,
				AccountId:   account.AccountId,
			})
			for roles.HasMorePages() {
				rolePage, err := roles.NextPage(ctx)
				if err != nil {
					return nil, errors.Wrapf(err, "listing roles for account %s", aws.ToString(account.AccountId))
				}
				for _, role := range rolePage.RoleList {
					entries = append(entries, catalog.RemoteRoleEntry{
						AccountID:   aws.ToString(role.AccountId),
						AccountName: aws.ToString(account.AccountName),
						RoleName:    aws.ToString(role.RoleName),
					})
				}
			}
		}
	}

	clio.Debugf("found %d roles", len(entries))
	return entries, nil
}

// GetRoleCredentials exchanges an access token for temporary credentials of
// roleName in accountID. region is the region of the portal API.
func (c *Client) GetRoleCredentials(ctx context.Context, accessToken, accountID, roleName, region string) (aws.Credentials, error) {
	client, err := c.newPortal(ctx, region)
	if err != nil {
		return aws.Credentials{}, err
	}
	res, err := client.GetRoleCredentials(ctx, &sso.GetRoleCredentialsInput{
		AccessToken: &accessToken,
		AccountId:   &accountID,
		RoleName:    &roleName,
	})
	if err != nil {
		return aws.Credentials{}, err
	}
	rc := res.RoleCredentials
	if rc == nil || rc.AccessKeyId == nil || rc.SecretAccessKey == nil || rc.SessionToken == nil {
		return aws.Credentials{}, errors.New("role credentials response was missing credentials")
	}
	return aws.Credentials{
		AccessKeyID:     *rc.AccessKeyId,
		SecretAccessKey: *rc.SecretAccessKey,
		SessionToken:    *rc.SessionToken,
		CanExpire:       true,
		Expires:         time.UnixMilli(rc.Expiration),
		Source:          build.BinaryName,
	}, nil
}

// CallerIdentity returns the ARN the credentials resolve to.
func (c *Client) CallerIdentity(ctx context.Context, creds aws.Credentials, region string) (string, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)),
	)
	if err != nil {
		return "", err
	}
	client := sts.NewFromConfig(cfg)
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.Arn), nil
}

func (c *Client) openBrowser(url string) error {
	if c.CustomSSOBrowserPath == "" {
		return browser.OpenURL(url)
	}
	cmd := exec.Command(c.CustomSSOBrowserPath, url)
	if err := cmd.Start(); err != nil {
		return err
	}
	// detach from this new process because it continues to run
	return cmd.Process.Release()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
