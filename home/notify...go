package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/tempo/sys"
)

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "notify",
		Description: "Get pinged later",
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
			discord.InteractionContextTypeBotDM,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "set",
				Description: "Schedule a notification",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "when",
						Description: "When to notify (e.g. '1mo 15s', '2d 4h', '24-12-2024_15:30', 'tomorrow')",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "note",
						Description: "What to be reminded of",
						MaxLength:   intPtr(1000),
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "list",
				Description: "List your pending notifications",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "cancel",
				Description: "Cancel a pending notification",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:         "id",
						Description:  "The notification to cancel",
						Required:     true,
						Autocomplete: true,
					},
				},
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		if data.SubCommandName == nil {
			return
		}

		switch *data.SubCommandName {
		case "set":
			handleNotifySet(event, data)
		case "list":
			handleNotifyList(event)
		case "cancel":
			handleNotifyCancel(event, data)
		}
	})

	sys.RegisterAutocompleteHandler("notify", handleNotifyAutocomplete)
}

func intPtr(i int) *int { return &i }
