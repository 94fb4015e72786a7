// Package roster turns the free-text output of a "status" command into
// player records. Parsing never fails: lines that do not look like player
// rows are skipped and unparseable numbers become sentinels.
package roster

import (
	"regexp"
	"strconv"
	"strings"
)

// Player is one row of the status table.
type Player struct {
	UserID    int32  `json:"userid"`
	Name      string `json:"name"`
	Identity  string `json:"steam_id"`
	Connected string `json:"time"`
	Ping      int32  `json:"ping"`
}

// #  2 1 "Alice" STEAM_0:1:111 05:12 34 0 active 196608 10.0.0.5:27005
// userid, optional slot, "name", identity, connected, ping. Names may be
// empty. Rows must start with '#'.
var playerRe = regexp.MustCompile(`^\s*#\s*(\d+)\s+(?:\d+\s+)?"(.*?)"\s+(\S+)\s+(\S+)\s+(\d+)`)

// Parse extracts every player row from body, in output order.
func Parse(body string) []Player {
	var players []Player
	for _, line := range lines(body) {
		m := playerRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		players = append(players, Player{
			UserID:    parseInt32(m[1], -1),
			Name:      m[2],
			Identity:  m[3],
			Connected: m[4],
			Ping:      parseInt32(m[5], 0),
		})
	}
	return players
}

func lines(body string) []string {
	return strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
}

func parseInt32(s string, fallback int32) int32 {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(n)
}
