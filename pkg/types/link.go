package types

import (
	"regexp"
	"time"
)

// Common link types. Any lower-case identifier is accepted.
const (
	LinkTypeLike   = "like"
	LinkTypeFollow = "follow"
	LinkTypeFriend = "friend"
)

var linkTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ValidLinkType reports whether t is usable as a link type.
func ValidLinkType(t string) bool {
	return linkTypePattern.MatchString(t)
}

// AssociationLink is a join entity between two principals, created at most
// once per (LinkType, LeftID, RightID).
type AssociationLink struct {
	LinkID    string    `json:"link_id"`
	LinkType  string    `json:"link_type"`
	LeftID    string    `json:"left_id"`
	RightID   string    `json:"right_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizePair orders a symmetric pair so that (a, b) and (b, a) share one
// row. Directional pairs are returned unchanged.
func NormalizePair(left, right string, symmetric bool) (string, string) {
	if symmetric && right < left {
		return right, left
	}
	return left, right
}
