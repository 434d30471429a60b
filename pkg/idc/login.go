package idc

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	ssooidctypes "github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"github.com/common-fate/clio"

	"github.com/common-fate/ssoswitch/internal/build"
)

var ErrTimeout error = errors.New("polling for device authorization token timed out")

// slowDownStep is added to the polling interval on each SlowDownException.
const slowDownStep = 5 * time.Second

type PollingConfig struct {
	CheckInterval time.Duration
	TimeoutAfter  time.Duration
}

func getPollingConfig(deviceAuth *ssooidc.StartDeviceAuthorizationOutput) PollingConfig {
	interval := time.Duration(deviceAuth.Interval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	return PollingConfig{
		CheckInterval: interval,
		TimeoutAfter:  time.Duration(deviceAuth.ExpiresIn) * time.Second,
	}
}

// Login completes a device code flow against the portal at startURL and
// returns the access token. A valid token from earlier in the run is reused.
func (c *Client) Login(ctx context.Context, startURL, ssoRegion string) (*Token, error) {
	key := tokenKey(startURL, ssoRegion)
	if t, ok := c.tokens[key]; ok && t.Valid() {
		clio.Debugf("reusing access token for %s", startURL)
		return t, nil
	}

	client, err := c.newOIDC(ctx, ssoRegion)
	if err != nil {
		return nil, err
	}

	register, err := client.RegisterClient(ctx, &ssooidc.RegisterClientInput{
		ClientName: aws.String(build.BinaryName + "-cli-client"),
		ClientType: aws.String("public"),
		Scopes:     []string{"sso-portal:*"},
	})
	if err != nil {
		return nil, err
	}

	deviceAuth, err := client.StartDeviceAuthorization(ctx, &ssooidc.StartDeviceAuthorizationInput{
		ClientId:     register.ClientId,
		ClientSecret: register.ClientSecret,
		StartUrl:     aws.String(startURL),
	})
	if err != nil {
		return nil, err
	}

	url := aws.ToString(deviceAuth.VerificationUriComplete)
	clio.Info("If the browser does not open automatically, please open this link: " + url)
	if err := c.openURL(url); err != nil {
		// fail silently
		clio.Debug(err.Error())
	}

	clio.Info("Awaiting AWS authentication in the browser")
	clio.Info("You will be prompted to authenticate with AWS in the browser, then you will be prompted to 'Allow'")
	clio.Infof("Code: %s", aws.ToString(deviceAuth.UserCode))

	token, err := c.pollToken(ctx, client, aws.ToString(register.ClientSecret), aws.ToString(register.ClientId), aws.ToString(deviceAuth.DeviceCode), getPollingConfig(deviceAuth))
	if err != nil {
		return nil, err
	}

	result := &Token{
		AccessToken: aws.ToString(token.AccessToken),
		Expiry:      time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
	c.tokens[key] = result
	return result, nil
}

// pollToken polls for a token until the user completes the flow in the
// browser, the device code expires or ctx is done.
func (c *Client) pollToken(ctx context.Context, client oidcAPI, clientSecret string, clientID string, deviceCode string, cfg PollingConfig) (*ssooidc.CreateTokenOutput, error) {
	var waited time.Duration
	interval := cfg.CheckInterval
	for {
		if err := c.sleep(ctx, interval); err != nil {
			return nil, err
		}
		waited += interval

		token, err := client.CreateToken(ctx, &ssooidc.CreateTokenInput{
			ClientId:     &clientID,
			ClientSecret: &clientSecret,
			DeviceCode:   &deviceCode,
			GrantType:    aws.String("urn:ietf:params:oauth:grant-type:device_code"),
		})
		if err == nil {
			return token, nil
		}

		var pendingAuth *ssooidctypes.AuthorizationPendingException
		var slowDown *ssooidctypes.SlowDownException
		switch {
		case errors.As(err, &slowDown):
			interval += slowDownStep
			clio.Debugf("slowing down token polling to every %s", interval)
		case errors.As(err, &pendingAuth):
		default:
			return nil, err
		}

		if waited >= cfg.TimeoutAfter {
			return nil, ErrTimeout
		}
	}
}
