// Package steamid converts between the textual forms of a Steam account id
// and resolves vanity names through the Steam Web API.
package steamid

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/leighmacdonald/steamid/v2/steamid"
)

// base is the 64-bit id of account number 0 in the public universe.
const base uint64 = 76561197960265728

var ErrNotSteamID = errors.New("not a steam id")

// SID64 is a 64-bit Steam id of an individual account.
type SID64 = steamid.SID64

// Parse converts STEAM_X:Y:Z, [U:1:N] or a 17-digit 64-bit id without any
// network access. An id is accepted only if it renders back to the same text
// and its account number fits in 32 bits, so every Identity built from it is
// self-consistent.
func Parse(raw string) (SID64, error) {
	raw = strings.TrimSpace(raw)

	var (
		sid    SID64
		render func(SID64) string
	)
	switch {
	case strings.HasPrefix(raw, "STEAM_") && len(raw) > 7 && raw[6] >= '0' && raw[6] <= '5' && raw[7] == ':':
		// The universe digit is ignored for individual accounts.
		raw = "STEAM_0" + raw[7:]
		sid = steamid.SIDToSID64(steamid.SID(raw))
		render = func(s SID64) string { return string(steamid.SID64ToSID(s)) }
	case strings.HasPrefix(raw, "[U:1:"):
		sid = steamid.SID3ToSID64(steamid.SID3(raw))
		render = func(s SID64) string { return string(steamid.SID64ToSID3(s)) }
	case len(raw) == 17:
		var err error
		if sid, err = steamid.SID64FromString(raw); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotSteamID, raw)
		}
		render = format
	default:
		return 0, fmt.Errorf("%w: %q", ErrNotSteamID, raw)
	}

	if !valid(sid) || render(sid) != raw {
		return 0, fmt.Errorf("%w: %q", ErrNotSteamID, raw)
	}
	return sid, nil
}

func valid(sid SID64) bool {
	n := uint64(sid)
	return sid.Valid() && n > base && n-base <= math.MaxUint32
}

func format(sid SID64) string {
	return strconv.FormatUint(uint64(sid), 10)
}

// Identity holds the canonical representations of one account. Fields the
// resolver could not produce are empty.
type Identity struct {
	ID64 string
	ID2  string
	ID3  string
}

// FromSID64 fills every representation from a parsed id.
func FromSID64(s SID64) Identity {
	return Identity{
		ID64: format(s),
		ID2:  string(steamid.SID64ToSID(s)),
		ID3:  string(steamid.SID64ToSID3(s)),
	}
}
