package source

import (
	"fmt"

	"github.com/reedfamily/rconadmin/internal/game"
)

func init() {
	game.Register(&Adapter{})
}

// Adapter targets stock srcds without admin plugins.
type Adapter struct{}

func (a *Adapter) Game() string          { return "source" }
func (a *Adapter) StatusCommand() string { return "status" }

func (a *Adapter) KickCommand(userID int32, reason string) string {
	return fmt.Sprintf(`kickid %d "%s"`, userID, game.SanitizeReason(reason))
}

// banid does not take a reason; "kick" drops the player right away.
func (a *Adapter) BanCommand(userID int32, minutes int, reason string) string {
	return fmt.Sprintf("banid %d %d kick", minutes, userID)
}
