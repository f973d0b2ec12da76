package catalog

import (
	"fmt"
	"strings"
)

// License ids understood by the distribution platform.
const (
	LicenseSpecialPermissions = "Special Permissions"
	LicenseAllRightsReserved  = "All Rights Reserved"
	LicenseCCBY               = "CC BY"
	LicenseCCBYSA             = "CC BY-SA"
	LicenseCCBYNC             = "CC BY-NC"
	LicenseCCBYNCSA           = "CC BY-NC-SA"
	LicenseCCBYND             = "CC BY-ND"
	LicenseCCBYNCND           = "CC BY-NC-ND"
	LicensePublicDomain       = "Public Domain"
)

var knownLicenses = map[string]struct{}{
	LicenseSpecialPermissions: {},
	LicenseAllRightsReserved:  {},
	LicenseCCBY:               {},
	LicenseCCBYSA:             {},
	LicenseCCBYNC:             {},
	LicenseCCBYNCSA:           {},
	LicenseCCBYND:             {},
	LicenseCCBYNCND:           {},
	LicensePublicDomain:       {},
}

// License describes the terms attached to a content item.
type License struct {
	ID              string `mapstructure:"id" json:"id"`
	Description     string `mapstructure:"description" json:"description,omitempty"`
	CopyrightHolder string `mapstructure:"copyright_holder" json:"copyright_holder,omitempty"`
}

// NewLicense validates id against the registry. Special permissions require
// a description of what was granted.
func NewLicense(id, description, holder string) (License, error) {
	id = canonicalLicenseID(id)
	if _, ok := knownLicenses[id]; !ok {
		return License{}, fmt.Errorf("unknown license %q", id)
	}
	if id == LicenseSpecialPermissions && strings.TrimSpace(description) == "" {
		return License{}, fmt.Errorf("license %q requires a description", id)
	}
	return License{ID: id, Description: description, CopyrightHolder: holder}, nil
}

// canonicalLicenseID accepts the upper snake case spelling used in manifests
// (ALL_RIGHTS_RESERVED, CC_BY_SA) as well as the display ids.
func canonicalLicenseID(id string) string {
	id = strings.TrimSpace(id)
	if _, ok := knownLicenses[id]; ok {
		return id
	}
	norm := strings.ToUpper(strings.NewReplacer("_", " ", "-", " ").Replace(id))
	for known := range knownLicenses {
		if strings.ToUpper(strings.ReplaceAll(known, "-", " ")) == norm {
			return known
		}
	}
	return id
}
