package profile

import "github.com/cryptonite/profiles/internal/model"

// BorderColor is a Bootstrap contextual color token used for the avatar border.
type BorderColor string

const (
	BorderDanger    BorderColor = "danger"
	BorderWarning   BorderColor = "warning"
	BorderSecondary BorderColor = "secondary"
	BorderSuccess   BorderColor = "success"
	BorderPrimary   BorderColor = "primary"
	BorderLight     BorderColor = "light"
)

var rankColors = map[string]BorderColor{
	"Dangerous": BorderDanger,
	"Cautioned": BorderWarning,
	"Credible":  BorderSecondary,
	"Reliable":  BorderSuccess,
	"Genuine":   BorderPrimary,
}

// DisplayAttributes is what the profile page shows for a record. It is
// derived on every render and never stored.
type DisplayAttributes struct {
	Photo       string      `json:"photo"`
	Rank        string      `json:"rank"`
	BorderColor BorderColor `json:"borderColor"`
}

// ColorForRank maps a rank to its border color. Unknown ranks, including
// RankUnverified and "", get BorderLight.
func ColorForRank(rank string) BorderColor {
	if c, ok := rankColors[rank]; ok {
		return c
	}
	return BorderLight
}

// Format derives the display attributes of a record. With the switch off the
// author fields are ignored entirely.
func Format(record model.User) DisplayAttributes {
	on := record.VerificationEnabled()

	photo := record.Photo
	if photo == "" {
		photo = FallbackPhotoURL
	}
	if on && ValidPhoto(record.AuthorPhoto) {
		photo = record.AuthorPhoto
	}

	rank := RankUnverified
	if on && record.AuthorRank != "" {
		rank = record.AuthorRank
	}

	return DisplayAttributes{
		Photo:       photo,
		Rank:        rank,
		BorderColor: ColorForRank(rank),
	}
}
