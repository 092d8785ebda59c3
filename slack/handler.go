package latticeslack

import (
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"
)

type Handler struct {
	helpHandler  *HelpHandler
	priceHandler *PriceHandler
	logger       *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		helpHandler:  NewHelpHandler(),
		priceHandler: NewPriceHandler(logger),
		logger:       logger,
	}
}

func (h *Handler) Handle(evt *socketmode.Event, client *socketmode.Client) error {
	if evt.Request != nil {
		// Slack expects the ack within three seconds.
		client.Ack(*evt.Request)
	}

	data, ok := evt.Data.(slack.SlashCommand)
	if !ok {
		return nil
	}

	var err error
	switch data.Command {
	case "/help":
		err = h.helpHandler.HandleCommand(evt, client)
	case "/lattice":
		err = h.priceHandler.HandleCommand(evt, client)
	default:
		h.logger.Debug("ignoring command", zap.String("command", data.Command))
	}
	if err != nil {
		h.logger.Error("slash command failed", zap.String("command", data.Command), zap.Error(err))
	}
	return err
}
