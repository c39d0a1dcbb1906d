package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"

	"github.com/leeineian/tempo/sys"
)

func init() {
	connectPerm := discord.PermissionConnect
	minSkip, minVolume, maxVolume := 1, 0, 1000

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "music",
		Description:              "Music player",
		DefaultMemberPermissions: omit.New(&connectPerm),
		Contexts:                 []discord.InteractionContextType{discord.InteractionContextTypeGuild},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "play",
				Description: "Play a song, playlist or search result",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "query",
						Description: "A link or something to search for",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "skip",
				Description: "Skip the current track",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionInt{
						Name:        "amount",
						Description: "How many tracks to skip",
						MinValue:    &minSkip,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "stop",
				Description: "Stop playback and clear the queue",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "queue",
				Description: "Show the queue",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "playing",
				Description: "Show the current track",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "volume",
				Description: "Show or change the volume",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionInt{
						Name:        "percent",
						Description: "New volume (0-1000)",
						MinValue:    &minVolume,
						MaxValue:    &maxVolume,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "shuffle",
				Description: "Shuffle the queue",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "join",
				Description: "Join your voice channel",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "leave",
				Description: "Leave the voice channel",
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		if data.SubCommandName == nil {
			return
		}

		switch *data.SubCommandName {
		case "play":
			handleMusicPlay(event, data)
		case "skip":
			handleMusicSkip(event, data)
		case "stop":
			handleMusicStop(event)
		case "queue":
			handleMusicQueue(event)
		case "playing":
			handleMusicPlaying(event)
		case "volume":
			handleMusicVolume(event, data)
		case "shuffle":
			handleMusicShuffle(event)
		case "join":
			handleMusicJoin(event)
		case "leave":
			handleMusicLeave(event)
		}
	})

	sys.RegisterComponentHandler(pickPrefix, handleMusicPick)
}
