package smssvc

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/tuyishimwe/umurinzi/core"
)

// gatewayService delivers texts through an HTTP SMS gateway (bulk-SMS REST
// providers used by Rwandan telcos all speak this shape: api key header,
// JSON body with sender id, recipient and text).
type gatewayService struct {
	client   *resty.Client
	senderID string
}

var _ core.SMSSender = (*gatewayService)(nil)

type (
	gatewayRequest struct {
		Sender    string `json:"sender"`
		Recipient string `json:"recipient"`
		Message   string `json:"message"`
	}

	gatewayResponse struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
)

func NewGatewayService(conf *core.Config) core.SMSSender {
	client := resty.New().
		SetBaseURL(conf.SMS.GatewayURL).
		SetHeader("Authorization", "Bearer "+conf.SMS.APIKey).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &gatewayService{
		client:   client,
		senderID: conf.SMS.SenderID,
	}
}

func (svc *gatewayService) Send(ctx context.Context, msg *core.SMSMessage) error {
	if !msg.HasRecipient() {
		return nil
	}

	var out gatewayResponse
	res, err := svc.client.R().
		SetContext(ctx).
		SetBody(gatewayRequest{
			Sender:    svc.senderID,
			Recipient: msg.To,
			Message:   msg.Body,
		}).
		SetResult(&out).
		Post("/v1/sms/send")
	if err != nil {
		return errors.Wrap(err, "sms gateway request")
	}
	if res.IsError() {
		return errors.Errorf("sms gateway: status %d: %s", res.StatusCode(), res.String())
	}
	if out.Status != "" && out.Status != "success" {
		return errors.Errorf("sms gateway: %s: %s", out.Status, out.Message)
	}
	return nil
}
