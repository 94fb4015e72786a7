package roster

import "regexp"

// Defaults used when a field cannot be recovered from the status output.
const (
	UnknownName     = "Unknown"
	UnknownIdentity = "Unknown"
	UnknownIP       = "0.0.0.0"
)

// Target is the best-effort identity of one player, used to record bans.
type Target struct {
	Name     string
	Identity string
	// IP may carry a ":port" suffix as printed by the server.
	IP string
	// Strategy names the extraction that produced the target, "none" for the
	// fallback.
	Strategy string
}

// Found reports whether any strategy matched.
func (t Target) Found() bool { return t.Strategy != "none" }

// Strategy recovers a target from a single status line.
type Strategy struct {
	Name    string
	Extract func(line string) (Target, bool)
}

var (
	leadingIDRe    = regexp.MustCompile(`^\s*#\s*(\d+)\s`)
	nameIdentIPRe  = regexp.MustCompile(`^\s*#\s*\d+\s+(?:\d+\s+)?"(.*?)"\s+(\S+)\s+.*\s(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(?::\d+)?)`)
	nameIdentityRe = regexp.MustCompile(`^\s*#\s*\d+\s+(?:\d+\s+)?"(.*?)"\s+(\S+)`)
)

var strategies = []Strategy{
	{Name: "name-identity-ip", Extract: extractNameIdentityIP},
	{Name: "name-identity", Extract: extractNameIdentity},
}

// Strategies returns the extraction strategies in the order Find tries them.
func Strategies() []Strategy {
	return append([]Strategy(nil), strategies...)
}

func extractNameIdentityIP(line string) (Target, bool) {
	m := nameIdentIPRe.FindStringSubmatch(line)
	if m == nil {
		return Target{}, false
	}
	return Target{Name: m[1], Identity: m[2], IP: m[3]}, true
}

func extractNameIdentity(line string) (Target, bool) {
	m := nameIdentityRe.FindStringSubmatch(line)
	if m == nil {
		return Target{}, false
	}
	return Target{Name: m[1], Identity: m[2], IP: UnknownIP}, true
}

// Unknown is the target used when nothing about the player is known.
func Unknown() Target {
	return Target{Name: UnknownName, Identity: UnknownIdentity, IP: UnknownIP, Strategy: "none"}
}

// Find locates the row for userID and recovers as much identity as the
// line offers. It always returns a usable target.
func Find(body string, userID int32) Target {
	if userID < 0 {
		return Unknown()
	}
	for _, line := range lines(body) {
		m := leadingIDRe.FindStringSubmatch(line)
		if m == nil || parseInt32(m[1], -1) != userID {
			continue
		}
		for _, s := range strategies {
			if t, ok := s.Extract(line); ok {
				t.Strategy = s.Name
				return t
			}
		}
		// only the first row with the id is considered
		break
	}
	return Unknown()
}
