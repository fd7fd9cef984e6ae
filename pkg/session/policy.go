package session

import (
	"fmt"
	"strings"
)

// DefaultTitlePrefix prefixes every session title minted by the directory
const DefaultTitlePrefix = "Telegram User"

const forcedTitleLayout = "2006-01-02 15:04"

// AdoptPolicy decides which pre-existing backend session, if any, is adopted on first contact
type AdoptPolicy string

const (
	// AdoptOwned adopts only a session whose title was minted for the same participant
	AdoptOwned AdoptPolicy = "owned"
	// AdoptFirst adopts the first listed session regardless of who created it
	AdoptFirst AdoptPolicy = "first"
	// AdoptNever always creates
	AdoptNever AdoptPolicy = "never"
)

// ParseAdoptPolicy parses a configured policy name
func ParseAdoptPolicy(s string) (AdoptPolicy, error) {
	switch p := AdoptPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return AdoptOwned, nil
	case AdoptOwned, AdoptFirst, AdoptNever:
		return p, nil
	default:
		return "", fmt.Errorf("unknown adopt policy %q (want owned, first or never)", s)
	}
}
