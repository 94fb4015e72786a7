package steamid

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var ErrNoLookup = errors.New("vanity lookup not configured")

// vanity names are 2-32 characters of [A-Za-z0-9_-]
var vanityRe = regexp.MustCompile(`^[A-Za-z0-9_-]{2,32}$`)

// VanityLookup resolves a custom profile name to a 64-bit id.
type VanityLookup interface {
	ResolveVanity(ctx context.Context, name string) (SID64, error)
}

// Resolver canonicalizes raw identities as printed by game servers.
type Resolver struct {
	lookup VanityLookup
}

// NewResolver returns a Resolver. lookup may be nil, in which case only
// offline conversion is available.
func NewResolver(lookup VanityLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns all representations of raw. Offline forms never touch the
// network; anything shaped like a vanity name is looked up.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Identity, error) {
	if sid, err := Parse(raw); err == nil {
		return FromSID64(sid), nil
	}
	if !vanityRe.MatchString(raw) || raw == "BOT" || raw == "Unknown" {
		return Identity{}, fmt.Errorf("%w: %q", ErrNotSteamID, raw)
	}
	if r.lookup == nil {
		return Identity{}, ErrNoLookup
	}

	sid, err := r.lookup.ResolveVanity(ctx, raw)
	if err != nil {
		return Identity{}, fmt.Errorf("resolving %q: %w", raw, err)
	}
	return FromSID64(sid), nil
}
