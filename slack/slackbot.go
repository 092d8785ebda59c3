package latticeslack

import (
	"context"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"
)

type SlackBot struct {
	client       *slack.Client
	socketClient *socketmode.Client
	eventHandler *Handler
	logger       *zap.Logger
}

func NewSlackBot(appToken, botToken string, logger *zap.Logger) *SlackBot {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := slack.New(
		botToken,
		slack.OptionAppLevelToken(appToken),
	)

	socketClient := socketmode.New(
		client,
		socketmode.OptionDebug(logger.Core().Enabled(zap.DebugLevel)),
		socketmode.OptionLog(zap.NewStdLog(logger.Named("socketmode"))),
	)

	return &SlackBot{
		client:       client,
		socketClient: socketClient,
		eventHandler: NewHandler(logger),
		logger:       logger,
	}
}

// Start serves slash commands until ctx is done or the connection fails.
func (sb *SlackBot) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go sb.serve(ctx)

	return sb.socketClient.RunContext(ctx)
}

// serve dispatches socket events until ctx is done or the event channel
// closes.
func (sb *SlackBot) serve(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sb.socketClient.Events:
			if !ok {
				return
			}
			sb.dispatch(evt)
		}
	}
}

func (sb *SlackBot) dispatch(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		sb.logger.Info("connected to slack")
	case socketmode.EventTypeSlashCommand:
		_ = sb.eventHandler.Handle(&evt, sb.socketClient)
	}
}
