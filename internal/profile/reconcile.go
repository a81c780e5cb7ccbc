// Package profile holds the profile reconciliation rules: how a stored user
// record absorbs a freshly fetched verification payload, and how a record is
// turned into what the profile page displays.
//
// Both functions here are pure. Fetching the payload and persisting the
// result are the service layer's job (see service.ProfileService.Reconcile).
package profile

import (
	"strings"

	"github.com/cryptonite/profiles/internal/model"
)

const (
	// PlaceholderPhotoURL is the image the verification service returns when
	// the verified author has no photo. It is never accepted as an author
	// photo.
	PlaceholderPhotoURL = "https://truanon.com/images/no-photo.png"

	// FallbackPhotoURL is shown when a record has no usable photo at all.
	FallbackPhotoURL = "https://bootdey.com/img/Content/avatar/avatar7.png"

	// RankUnverified is the rank of anyone the service hasn't ranked, and of
	// everyone whose switch is off.
	RankUnverified = "Unverified"
)

// Outcome is the result of reconciling a record with a payload.
type Outcome struct {
	// Record is the record to persist (or the input, unchanged).
	Record model.User
	// VerifiedDetails is the raw payload for the view; empty when nothing ran.
	VerifiedDetails string
	// Merged is true when the payload was applied and Record must be saved.
	Merged bool
}

// Reconcile merges payload into record.
//
// Nothing happens when the owner's switch is off or there is no payload. A
// photo from the payload replaces AuthorPhoto only if it is valid; the rank is
// always replaced, with RankUnverified standing in for a missing one.
func Reconcile(record model.User, payload *model.VerificationPayload) Outcome {
	if !record.VerificationEnabled() || payload == nil {
		return Outcome{Record: record}
	}

	merged := record
	if photo, ok := payload.Photo(); ok && ValidPhoto(photo) {
		merged.AuthorPhoto = photo
	}
	if rank, ok := payload.Rank(); ok {
		merged.AuthorRank = rank
	} else {
		merged.AuthorRank = RankUnverified
	}

	return Outcome{
		Record:          merged,
		VerifiedDetails: payload.Details(),
		Merged:          true,
	}
}

// ValidPhoto reports whether url can be used as an author photo.
func ValidPhoto(url string) bool {
	trimmed := strings.TrimSpace(url)
	return trimmed != "" && trimmed != PlaceholderPhotoURL
}
