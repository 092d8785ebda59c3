package latticeslack

import (
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"
)

type PriceHandler struct {
	logger *zap.Logger
}

func NewPriceHandler(logger *zap.Logger) *PriceHandler {
	return &PriceHandler{logger: logger}
}

func (h *PriceHandler) HandleCommand(evt *socketmode.Event, client *socketmode.Client) error {
	data := evt.Data.(slack.SlashCommand)

	reply := h.Reply(data.Text)
	_, _, err := client.PostMessage(data.ChannelID, slack.MsgOptionText(reply, false))
	return err
}

// Reply prices the command text and formats the answer, or the error with
// usage when the text cannot be priced.
func (h *PriceHandler) Reply(text string) string {
	req, err := ParsePricingRequest(text)
	if err != nil {
		h.logger.Info("rejected pricing request", zap.String("text", text), zap.Error(err))
		return "Invalid request: " + err.Error()
	}

	result, err := req.Price()
	if err != nil {
		h.logger.Warn("pricing failed", zap.String("text", text), zap.Error(err))
		return "Pricing failed: " + err.Error()
	}

	h.logger.Info("priced request",
		zap.String("style", req.Style),
		zap.String("kind", req.Kind),
		zap.String("calibration", result.Calibration),
		zap.Int("number_of_times", req.NumberOfTimes),
		zap.Float64("price", result.Price),
	)
	return result.String()
}
