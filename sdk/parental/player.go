package parental

import "github.com/tidwall/gjson"

// Player is one profile seen on a device, parsed from the daily summaries.
type Player struct {
	// PlayerID identifies the profile on the console.
	PlayerID string
	// Nickname is the profile display name.
	Nickname string
	// ImageURI points at the profile picture.
	ImageURI string
	// PlayingTime is today's play time for this profile, in minutes.
	PlayingTime int64
	// PlayedApps lists the application ids the profile played today.
	PlayedApps []string
}

// parsePlayers extracts the device players from one daily summary item.
func parsePlayers(summary gjson.Result) []*Player {
	var players []*Player
	summary.Get("devicePlayers").ForEach(func(_, raw gjson.Result) bool {
		player := &Player{
			PlayerID:    raw.Get("playerId").String(),
			Nickname:    raw.Get("nickname").String(),
			ImageURI:    raw.Get("imageUri").String(),
			PlayingTime: raw.Get("playingTime").Int(),
		}
		raw.Get("playedApps").ForEach(func(_, app gjson.Result) bool {
			player.PlayedApps = append(player.PlayedApps, app.Get("applicationId").String())
			return true
		})
		players = append(players, player)
		return true
	})
	return players
}
