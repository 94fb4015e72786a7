package sourcemod

import (
	"fmt"

	"github.com/reedfamily/rconadmin/internal/game"
)

func init() {
	game.Register(&Adapter{})
}

// Adapter targets servers running the SourceMod admin plugin.
type Adapter struct{}

func (a *Adapter) Game() string          { return "sourcemod" }
func (a *Adapter) StatusCommand() string { return "status" }

func (a *Adapter) KickCommand(userID int32, reason string) string {
	return fmt.Sprintf(`sm_kick #%d "%s"`, userID, game.SanitizeReason(reason))
}

func (a *Adapter) BanCommand(userID int32, minutes int, reason string) string {
	return fmt.Sprintf(`sm_ban #%d %d "%s"`, userID, minutes, game.SanitizeReason(reason))
}
