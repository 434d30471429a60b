// Package credwriter stores temporary role credentials in the AWS shared
// credentials file.
package credwriter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/common-fate/clio"
	"github.com/common-fate/ssoswitch/pkg/awsconfig"
	"gopkg.in/ini.v1"
)

const (
	// DefaultSection is the only section of the credentials file.
	DefaultSection = "default"
	// DefaultConfigSection is the config file section the AWS CLI reads
	// settings for the default credentials from.
	DefaultConfigSection = "profile default"
)

// PartialWriteError is returned when the credentials were written but the
// config file could not be updated. The credentials file is usable.
type PartialWriteError struct {
	CredentialsPath string
	Err             error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("credentials were written to %s but updating the config file failed: %s", e.CredentialsPath, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// Write replaces the credentials file with a single [default] section
// holding creds, then makes sure the config file has a [profile default]
// section. The credentials file is scratch space: whatever it held before
// is discarded.
func Write(creds aws.Credentials, credentialsPath, configPath string) error {
	if err := writeCredentials(creds, credentialsPath); err != nil {
		return err
	}
	clio.Debugf("wrote credentials to %s", credentialsPath)

	if err := ensureDefaultProfile(configPath); err != nil {
		return &PartialWriteError{CredentialsPath: credentialsPath, Err: err}
	}
	return nil
}

func writeCredentials(creds aws.Credentials, path string) error {
	f := ini.Empty(ini.LoadOptions{IgnoreInlineComment: true})
	section, err := f.NewSection(DefaultSection)
	if err != nil {
		return err
	}
	for _, kv := range [][2]string{
		{"aws_access_key_id", creds.AccessKeyID},
		{"aws_secret_access_key", creds.SecretAccessKey},
		{"aws_session_token", creds.SessionToken},
	} {
		if _, err := section.NewKey(kv[0], kv[1]); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return &awsconfig.IOError{Op: "serializing", Path: path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(path), awsconfig.USER_READ_WRITE_EXECUTE_PERM); err != nil {
		return &awsconfig.IOError{Op: "creating directory for", Path: path, Err: err}
	}
	// O_TRUNC keeps an existing file's mode, 0600 applies to new files only
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, awsconfig.USER_READ_WRITE_PERM)
	if err != nil {
		return &awsconfig.IOError{Op: "opening", Path: path, Err: err}
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		file.Close()
		return &awsconfig.IOError{Op: "writing", Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return &awsconfig.IOError{Op: "writing", Path: path, Err: err}
	}
	return nil
}

func ensureDefaultProfile(configPath string) error {
	doc, err := awsconfig.Load(configPath)
	if err != nil {
		return err
	}
	added, err := doc.EnsureSection(DefaultConfigSection)
	if err != nil {
		return err
	}
	if !added {
		return nil
	}
	clio.Debugf("adding [%s] to %s", DefaultConfigSection, configPath)
	return awsconfig.Write(configPath, doc)
}
