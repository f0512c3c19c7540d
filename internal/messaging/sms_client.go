package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SendResult 单条短信发送结果
type SendResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Sender 短信发送接口
type Sender interface {
	Send(ctx context.Context, message, phoneNumber string) SendResult
}

// SMSConfig 短信网关配置
type SMSConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
	Timeout    time.Duration
}

// twilioMessage Messages 接口响应
type twilioMessage struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// twilioError 错误响应
type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// 视为已受理的消息状态
var acceptedStatuses = map[string]bool{
	"queued":   true,
	"accepted": true,
	"sending":  true,
	"sent":     true,
}

// SMSClient Twilio 兼容短信客户端
type SMSClient struct {
	httpClient *resty.Client
	accountSID string
	from       string
	logger     *zap.Logger
}

// NewSMSClient 创建短信客户端
func NewSMSClient(cfg SMSConfig, logger *zap.Logger) *SMSClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	// 不重试：POST 重试可能导致重复短信
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetHeader("Accept", "application/json")

	return &SMSClient{
		httpClient: client,
		accountSID: cfg.AccountSID,
		from:       cfg.From,
		logger:     logger,
	}
}

// Send 发送一条短信，失败不返回 error，记录在结果中
func (c *SMSClient) Send(ctx context.Context, message, phoneNumber string) SendResult {
	if phoneNumber == "" {
		return SendResult{Success: false, Error: "phone number is required"}
	}

	var msg twilioMessage
	var apiErr twilioError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   phoneNumber,
			"From": c.from,
			"Body": message,
		}).
		SetResult(&msg).
		SetError(&apiErr).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", c.accountSID))

	if err != nil {
		c.logger.Error("SMS request failed",
			zap.String("phone_number", phoneNumber),
			zap.Error(err),
		)
		return SendResult{Success: false, Error: err.Error()}
	}

	if resp.IsError() {
		reason := apiErr.Message
		if reason == "" {
			reason = resp.Status()
		}
		c.logger.Warn("SMS gateway rejected message",
			zap.String("phone_number", phoneNumber),
			zap.Int("status_code", resp.StatusCode()),
			zap.Int("code", apiErr.Code),
			zap.String("msg", reason),
		)
		return SendResult{Success: false, Error: reason}
	}

	if !acceptedStatuses[msg.Status] {
		reason := msg.ErrorMessage
		if reason == "" {
			reason = fmt.Sprintf("unexpected message status: %q", msg.Status)
		}
		c.logger.Warn("SMS not accepted",
			zap.String("phone_number", phoneNumber),
			zap.String("sid", msg.SID),
			zap.String("status", msg.Status),
		)
		return SendResult{Success: false, Error: reason}
	}

	c.logger.Info("SMS sent",
		zap.String("phone_number", phoneNumber),
		zap.String("sid", msg.SID),
		zap.String("status", msg.Status),
	)
	return SendResult{Success: true}
}

// WelcomeText 新增紧急联系人时发送的欢迎短信
func WelcomeText(firstName, lastName string) string {
	return fmt.Sprintf("Hello %s %s, you have been added as an emergency contact for Alfred.", firstName, lastName)
}
