// Package catalog holds the SSO profiles known from an AWS config file
// and reconciles them with the accounts and roles listed by IAM Identity
// Center.
package catalog

import (
	"strings"

	"github.com/common-fate/clio"
	"github.com/common-fate/ssoswitch/pkg/awsconfig"
)

// RemoteRoleEntry is one account/role pair the signed in user can access.
type RemoteRoleEntry struct {
	AccountID   string
	AccountName string
	RoleName    string
}

// Defaults fill the profile fields that a role listing does not carry.
type Defaults struct {
	StartURL  string
	SSORegion string
	Region    string
}

// Triple is the part of a profile shown in the selection list.
type Triple struct {
	AccountID   string
	ProfileName string
	RoleName    string
}

type Catalog struct {
	// in document order
	profiles []awsconfig.Profile
	sections map[string]struct{}
}

// New builds a catalog from already extracted profiles.
func New(profiles []awsconfig.Profile) *Catalog {
	c := &Catalog{sections: make(map[string]struct{}, len(profiles))}
	for _, p := range profiles {
		c.profiles = append(c.profiles, p)
		c.sections[sectionOf(p)] = struct{}{}
	}
	return c
}

// FromStore builds a catalog from the profile sections of a config document.
func FromStore(doc *awsconfig.Document) *Catalog {
	return New(awsconfig.ExtractProfiles(doc))
}

// sectionOf returns the section a catalog profile lives in. Profiles
// that were read from a file carry it, otherwise it is derived.
func sectionOf(p awsconfig.Profile) string {
	if p.SectionName != "" {
		return p.SectionName
	}
	return "profile " + p.Name
}

func (c *Catalog) Len() int { return len(c.profiles) }

// Profiles returns a copy of the profiles in document order.
func (c *Catalog) Profiles() []awsconfig.Profile {
	out := make([]awsconfig.Profile, len(c.profiles))
	copy(out, c.profiles)
	return out
}

// Refresh turns the remote listing into profiles and returns the ones
// that are not in the catalog yet. A candidate is known when the section
// it would be written to already exists. Entries that collide with an
// earlier entry of the same listing are dropped too.
// The catalog itself is not modified.
func (c *Catalog) Refresh(entries []RemoteRoleEntry, defaults Defaults) []awsconfig.Profile {
	var fresh []awsconfig.Profile
	seen := make(map[string]RemoteRoleEntry)
	for _, e := range entries {
		candidate := awsconfig.Profile{
			Name:         e.AccountName,
			SSOStartURL:  defaults.StartURL,
			SSORegion:    defaults.SSORegion,
			SSOAccountID: e.AccountID,
			SSORoleName:  e.RoleName,
			Region:       defaults.Region,
		}
		section := awsconfig.SectionName(candidate)
		if _, ok := c.sections[section]; ok {
			clio.Debugf("[%s] is already configured", section)
			continue
		}
		if prev, ok := seen[section]; ok {
			clio.Warnf("role %s in account %s maps to [%s] which is already used by role %s, skipping it", e.RoleName, e.AccountID, section, prev.RoleName)
			continue
		}
		seen[section] = e
		candidate.SectionName = section
		fresh = append(fresh, candidate)
	}
	return fresh
}

// Triples returns the selection view of the catalog in document order.
func (c *Catalog) Triples() []Triple {
	triples := make([]Triple, 0, len(c.profiles))
	for _, p := range c.profiles {
		triples = append(triples, Triple{
			AccountID:   p.SSOAccountID,
			ProfileName: p.Name,
			RoleName:    p.SSORoleName,
		})
	}
	return triples
}

// Lookup returns the first profile matching the triple. Profile names are
// compared with runs of whitespace collapsed, since that is what survives
// rendering and parsing a choice.
func (c *Catalog) Lookup(t Triple) (awsconfig.Profile, bool) {
	want := normalizeName(t.ProfileName)
	for _, p := range c.profiles {
		if p.SSOAccountID == t.AccountID && p.SSORoleName == t.RoleName && normalizeName(p.Name) == want {
			return p, true
		}
	}
	return awsconfig.Profile{}, false
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
