package twilio

import (
	"log/slog"

	"coldcall/app/config"
	"coldcall/app/service/call"

	"github.com/samber/do"
	"github.com/samber/oops"
	twilioapi "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type Client struct {
	cfg  *config.Config
	rest *twilioapi.RestClient
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	rest := twilioapi.NewRestClientWithParams(twilioapi.ClientParams{
		Username: cfg.Twilio.AccountSID,
		Password: cfg.Twilio.AuthToken,
	})

	return &Client{
		cfg:  cfg,
		rest: rest,
	}, nil
}

// MakeOutboundCall dials a lead and points the call at our TwiML endpoint.
// Returns the call SID.
func (c *Client) MakeOutboundCall(lead call.Lead, serverURL string) (string, error) {
	params := &openapi.CreateCallParams{}
	params.SetTo(lead.Phone)
	params.SetFrom(c.cfg.Twilio.PhoneNumber)
	params.SetUrl(serverURL + "/twiml")
	params.SetStatusCallback(serverURL + "/call-status")
	params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})

	resp, err := c.rest.Api.CreateCall(params)
	if err != nil {
		return "", oops.With("phone", lead.Phone).Wrapf(err, "failed to create call")
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}

	slog.Info("Call initiated", "lead", lead.Name, "call_sid", sid)

	return sid, nil
}

// Hangup ends an active call.
func (c *Client) Hangup(callSID string) error {
	params := &openapi.UpdateCallParams{}
	params.SetStatus("completed")

	if _, err := c.rest.Api.UpdateCall(callSID, params); err != nil {
		return oops.With("call_sid", callSID).Wrapf(err, "failed to hang up call")
	}

	slog.Info("Call ended", "call_sid", callSID)

	return nil
}
