package game

import "strings"

// Dialect builds the console commands a server flavor understands.
type Dialect interface {
	// Game returns the dialect identifier stored on servers (e.g. "sourcemod").
	Game() string

	// StatusCommand lists connected players.
	StatusCommand() string

	// KickCommand disconnects the player with the given userid.
	KickCommand(userID int32, reason string) string

	// BanCommand bans the player with the given userid; 0 minutes is permanent.
	BanCommand(userID int32, minutes int, reason string) string
}

var reasonReplacer = strings.NewReplacer(`"`, "'", ";", ",", "\r", " ", "\n", " ")

// SanitizeReason makes a free-text reason safe to embed in a quoted console
// argument: the console splits commands on ';' and arguments on '"'.
func SanitizeReason(reason string) string {
	return strings.TrimSpace(reasonReplacer.Replace(reason))
}
