package otp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/transport"
)

const (
	ProviderLog      = "log"
	ProviderTwilio   = "twilio"
	ProviderFast2SMS = "fast2sms"
	ProviderMSG91    = "msg91"

	DefaultTwilioBaseURL   = "https://api.twilio.com"
	DefaultFast2SMSBaseURL = "https://www.fast2sms.com"
	DefaultMSG91BaseURL    = "https://api.msg91.com"
)

// Sender delivers a code to a phone number
type Sender interface {
	Send(ctx context.Context, phone, code string) (*models.DeliveryReceipt, error)
}

// NewSender builds the sender named by cfg.Provider against its public API
func NewSender(cfg models.OTPConfig) (Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderLog:
		return NewLogSender(), nil
	case ProviderTwilio:
		return NewTwilioSender(cfg, DefaultTwilioBaseURL)
	case ProviderFast2SMS:
		return NewFast2SMSSender(cfg, DefaultFast2SMSBaseURL)
	case ProviderMSG91:
		return NewMSG91Sender(cfg, DefaultMSG91BaseURL)
	default:
		return nil, fmt.Errorf("unknown otp provider %q", cfg.Provider)
	}
}

func message(code string, ttl time.Duration) string {
	minutes := int(ttl.Minutes())
	if minutes <= 0 {
		minutes = int(DefaultTTL.Minutes())
	}
	return fmt.Sprintf("Your StreamPrime verification code is: %s. Valid for %d minutes.", code, minutes)
}

func newRestClient(baseURL string, timeout time.Duration) (*resty.Client, error) {
	httpClient, err := transport.NewHTTPClient(timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}
	return resty.NewWithClient(httpClient).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json"), nil
}

func deliveryFailed(provider string, err error) error {
	zap.L().Error("OTP delivery failed", zap.String("provider", provider), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", models.ErrDeliveryFailed, provider, err)
}

// LogSender writes the code to the log. Development only.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(_ context.Context, phone, code string) (*models.DeliveryReceipt, error) {
	zap.L().Info("OTP issued", zap.String("phone", phone), zap.String("code", code))
	return &models.DeliveryReceipt{Provider: ProviderLog}, nil
}

// TwilioSender uses the Twilio Messages API
type TwilioSender struct {
	http       *resty.Client
	accountSid string
	from       string
	ttl        time.Duration
}

func NewTwilioSender(cfg models.OTPConfig, baseURL string) (*TwilioSender, error) {
	if cfg.TwilioAccountSid == "" || cfg.TwilioAuthToken == "" || cfg.TwilioPhoneNumber == "" {
		return nil, fmt.Errorf("twilio requires account sid, auth token and phone number")
	}
	client, err := newRestClient(baseURL, cfg.SendTimeout)
	if err != nil {
		return nil, err
	}
	client.SetBasicAuth(cfg.TwilioAccountSid, cfg.TwilioAuthToken)
	return &TwilioSender{http: client, accountSid: cfg.TwilioAccountSid, from: cfg.TwilioPhoneNumber, ttl: cfg.TTL}, nil
}

type twilioMessage struct {
	Sid     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *TwilioSender) Send(ctx context.Context, phone, code string) (*models.DeliveryReceipt, error) {
	to := phone
	if !strings.HasPrefix(to, "+") {
		to = "+91" + to
	}

	var result, failure twilioMessage
	resp, err := s.http.R().
		SetContext(ctx).
		SetPathParam("sid", s.accountSid).
		SetFormData(map[string]string{
			"To":   to,
			"From": s.from,
			"Body": message(code, s.ttl),
		}).
		SetResult(&result).
		SetError(&failure).
		Post("/2010-04-01/Accounts/{sid}/Messages.json")
	if err != nil {
		return nil, deliveryFailed(ProviderTwilio, err)
	}
	if resp.IsError() {
		return nil, deliveryFailed(ProviderTwilio, fmt.Errorf("status %d: %s", resp.StatusCode(), failure.Message))
	}
	return &models.DeliveryReceipt{Provider: ProviderTwilio, MessageId: result.Sid}, nil
}

// Fast2SMSSender uses the Fast2SMS bulkV2 API
type Fast2SMSSender struct {
	http *resty.Client
	ttl  time.Duration
}

func NewFast2SMSSender(cfg models.OTPConfig, baseURL string) (*Fast2SMSSender, error) {
	if cfg.Fast2SMSApiKey == "" {
		return nil, fmt.Errorf("fast2sms requires an api key")
	}
	client, err := newRestClient(baseURL, cfg.SendTimeout)
	if err != nil {
		return nil, err
	}
	client.SetHeader("authorization", cfg.Fast2SMSApiKey)
	return &Fast2SMSSender{http: client, ttl: cfg.TTL}, nil
}

type fast2smsResponse struct {
	Return    bool     `json:"return"`
	RequestId string   `json:"request_id"`
	Message   []string `json:"message"`
}

func (s *Fast2SMSSender) Send(ctx context.Context, phone, code string) (*models.DeliveryReceipt, error) {
	var result fast2smsResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"route":    "otp",
			"message":  message(code, s.ttl),
			"language": "english",
			"flash":    0,
			"numbers":  strings.TrimPrefix(phone, "+91"),
		}).
		SetResult(&result).
		Post("/dev/bulkV2")
	if err != nil {
		return nil, deliveryFailed(ProviderFast2SMS, err)
	}
	if resp.IsError() || !result.Return {
		return nil, deliveryFailed(ProviderFast2SMS, fmt.Errorf("status %d: %s", resp.StatusCode(), strings.Join(result.Message, "; ")))
	}
	return &models.DeliveryReceipt{Provider: ProviderFast2SMS, MessageId: result.RequestId}, nil
}

// MSG91Sender uses the MSG91 flow API with a pre-approved template
type MSG91Sender struct {
	http       *resty.Client
	templateId string
}

func NewMSG91Sender(cfg models.OTPConfig, baseURL string) (*MSG91Sender, error) {
	if cfg.MSG91AuthKey == "" || cfg.MSG91TemplateId == "" {
		return nil, fmt.Errorf("msg91 requires an auth key and template id")
	}
	client, err := newRestClient(baseURL, cfg.SendTimeout)
	if err != nil {
		return nil, err
	}
	client.SetHeader("authkey", cfg.MSG91AuthKey)
	return &MSG91Sender{http: client, templateId: cfg.MSG91TemplateId}, nil
}

type msg91Response struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (s *MSG91Sender) Send(ctx context.Context, phone, code string) (*models.DeliveryReceipt, error) {
	var result msg91Response
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"template_id": s.templateId,
			"short_url":   "0",
			"recipients": []map[string]string{
				{"mobiles": strings.TrimPrefix(phone, "+91"), "otp": code},
			},
		}).
		SetResult(&result).
		Post("/api/v5/flow/")
	if err != nil {
		return nil, deliveryFailed(ProviderMSG91, err)
	}
	if resp.IsError() || result.Type != "success" {
		return nil, deliveryFailed(ProviderMSG91, fmt.Errorf("status %d: %s", resp.StatusCode(), result.Message))
	}
	return &models.DeliveryReceipt{Provider: ProviderMSG91, MessageId: result.Message}, nil
}
