package model

import (
	"encoding/json"
	"strings"
)

// DataConfiguration is one identity link on a verified profile, e.g.
// {"dataPointType": "github", "displayValue": "octocat"}.
type DataConfiguration struct {
	DataPointType string `json:"dataPointType"`
	DisplayValue  string `json:"displayValue"`
}

// VerificationPayload is a profile as returned by the verification service.
// It lives for one request: fetched, reconciled, then discarded.
//
// The optional fields are pointers so "absent" and "empty" stay distinct;
// use the accessors rather than reading them directly.
type VerificationPayload struct {
	AuthorPhoto        *string             `json:"authorPhoto,omitempty"`
	AuthorRank         *string             `json:"authorRank,omitempty"`
	DataConfigurations []DataConfiguration `json:"dataConfigurations,omitempty"`

	// Raw is the response body exactly as received. It is what the profile
	// page shows as the verified details, whatever fields were merged.
	Raw json.RawMessage `json:"-"`
}

// Photo returns the payload's photo URL and whether one was present.
func (p *VerificationPayload) Photo() (string, bool) {
	if p == nil || p.AuthorPhoto == nil {
		return "", false
	}
	return *p.AuthorPhoto, true
}

// Rank returns the payload's rank and whether a non-blank one was present.
func (p *VerificationPayload) Rank() (string, bool) {
	if p == nil || p.AuthorRank == nil {
		return "", false
	}
	rank := strings.TrimSpace(*p.AuthorRank)
	return rank, rank != ""
}

// Link looks up the display value of the first data configuration with the
// given type (case-insensitive).
func (p *VerificationPayload) Link(dataPointType string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, dc := range p.DataConfigurations {
		if strings.EqualFold(dc.DataPointType, dataPointType) && strings.TrimSpace(dc.DisplayValue) != "" {
			return strings.TrimSpace(dc.DisplayValue), true
		}
	}
	return "", false
}

// Details returns the raw payload as a string for the view.
func (p *VerificationPayload) Details() string {
	if p == nil || len(p.Raw) == 0 {
		return ""
	}
	return string(p.Raw)
}
