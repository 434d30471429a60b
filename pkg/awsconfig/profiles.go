package awsconfig

import (
	"strings"

	"github.com/common-fate/clio"
	"gopkg.in/ini.v1"
)

const (
	KeySSOStartURL  = "sso_start_url"
	KeySSORegion    = "sso_region"
	KeySSOAccountID = "sso_account_id"
	KeySSORoleName  = "sso_role_name"
	KeyRegion       = "region"
	KeyOutput       = "output"
)

// requiredKeys must all be present and non-empty for a section to be
// treated as a profile.
var requiredKeys = []string{KeySSOStartURL, KeySSORegion, KeySSOAccountID, KeySSORoleName, KeyRegion}

// RolePrefixLength is how many characters of the role name go into the
// section name of a generated profile. Two roles sharing this prefix under
// the same profile name map to the same section.
const RolePrefixLength = 7

// Profile is an SSO account/role binding read from a config section.
type Profile struct {
	// Name is everything after "profile " in the section name.
	Name string
	// SectionName is the full section name the profile was read from.
	// It is empty for profiles that have not been written yet.
	SectionName string

	SSOStartURL  string
	SSORegion    string
	SSOAccountID string
	SSORoleName  string
	Region       string
}

// .aws/config files are structured as follows,
//
//	[profile Dev X]
//	sso_start_url = https://example.awsapps.com/start
//	sso_region = us-east-1
//	sso_account_id = 111122223333
//	sso_role_name = Admin
//	region = eu-west-1
//
// ExtractProfiles returns every "profile <name>" section that has all of
// the sso keys and a region, in document order. Incomplete sections are
// skipped.
func ExtractProfiles(doc *Document) []Profile {
	var profiles []Profile
	for _, section := range doc.file.Sections() {
		name, ok := profileName(section.Name())
		if !ok {
			continue
		}
		if missing := missingKeys(section); len(missing) > 0 {
			clio.Debugf("skipping section [%s], missing %s", section.Name(), strings.Join(missing, ", "))
			continue
		}
		profiles = append(profiles, Profile{
			Name:         name,
			SectionName:  section.Name(),
			SSOStartURL:  section.Key(KeySSOStartURL).String(),
			SSORegion:    section.Key(KeySSORegion).String(),
			SSOAccountID: section.Key(KeySSOAccountID).String(),
			SSORoleName:  section.Key(KeySSORoleName).String(),
			Region:       section.Key(KeyRegion).String(),
		})
	}
	return profiles
}

func profileName(sectionName string) (string, bool) {
	prefix, rest, found := strings.Cut(sectionName, " ")
	if !found || prefix != "profile" || strings.TrimSpace(rest) == "" {
		return "", false
	}
	return rest, true
}

func missingKeys(section *ini.Section) []string {
	var missing []string
	for _, k := range requiredKeys {
		if !section.HasKey(k) || strings.TrimSpace(section.Key(k).String()) == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

// SectionName returns the section a generated profile is written to:
// "profile <name> <first 7 characters of the role>".
func SectionName(p Profile) string {
	role := []rune(p.SSORoleName)
	if len(role) > RolePrefixLength {
		role = role[:RolePrefixLength]
	}
	return "profile " + p.Name + " " + string(role)
}

// MergeSections adds a section for each profile whose section name is not
// in the document yet. Existing sections are never modified, a profile
// that maps to an existing section is skipped. If output is not empty it
// is written as the output format of each new section.
// It returns the profiles that were added.
func MergeSections(doc *Document, profiles []Profile, output string) ([]Profile, error) {
	var added []Profile
	for _, p := range profiles {
		name := SectionName(p)
		if doc.HasSection(name) {
			clio.Warnf("skipping account %s role %s: section [%s] already exists", p.SSOAccountID, p.SSORoleName, name)
			continue
		}
		section, err := doc.file.NewSection(name)
		if err != nil {
			return added, err
		}
		kvs := [][2]string{
			{KeySSOStartURL, p.SSOStartURL},
			{KeySSORegion, p.SSORegion},
			{KeySSOAccountID, p.SSOAccountID},
			{KeySSORoleName, p.SSORoleName},
			{KeyRegion, p.Region},
		}
		if output != "" {
			kvs = append(kvs, [2]string{KeyOutput, output})
		}
		for _, kv := range kvs {
			if _, err := section.NewKey(kv[0], kv[1]); err != nil {
				return added, err
			}
		}
		p.SectionName = name
		added = append(added, p)
	}
	return added, nil
}
