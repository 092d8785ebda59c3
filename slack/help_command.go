package latticeslack

import (
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

var helpText = "Available commands:\n" +
	"/help - Show this help message\n" +
	usage + " - Price an option on a binomial lattice\n" +
	"Barrier options knock out outside [lower, upper]; upper defaults to infinity.\n" +
	"lr rounds times up to an odd number of steps."

type HelpHandler struct{}

func NewHelpHandler() *HelpHandler {
	return &HelpHandler{}
}

func (h *HelpHandler) HandleCommand(evt *socketmode.Event, client *socketmode.Client) error {
	data := evt.Data.(slack.SlashCommand)

	_, _, err := client.PostMessage(data.ChannelID,
		slack.MsgOptionText(helpText, false))
	return err
}
