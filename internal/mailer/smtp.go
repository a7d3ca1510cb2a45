package mailer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/domain"
)

// SMTPTransport 通过 SMTP 提交通知邮件。
//
// 每次投递建立独立会话，投递之间按配置限速。退信地址不为空时
// 作为信封发件人，退信直接回到专用邮箱。
type SMTPTransport struct {
	addr        string
	username    string
	password    string
	fromAddress string
	fromName    string
	returnPath  string
	limiter     *rate.Limiter
	sendTimeout time.Duration
	log         *zap.Logger
}

// NewSMTPTransport 按邮件配置创建 SMTP 投递通道。
func NewSMTPTransport(cfg config.EmailConfig, log *zap.Logger) *SMTPTransport {
	var limiter *rate.Limiter
	if cfg.SendRatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRatePerSec), 1)
	}
	return &SMTPTransport{
		addr:        fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		username:    cfg.SMTPUsername,
		password:    cfg.SMTPPassword,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		returnPath:  cfg.ReturnPath,
		limiter:     limiter,
		sendTimeout: cfg.SendTimeout,
		log:         log,
	}
}

// Send 投递一封邮件。
func (t *SMTPTransport) Send(ctx context.Context, email *domain.QueuedEmail) error {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	client, err := gosmtp.Dial(t.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.addr, err)
	}
	defer client.Close()

	if t.sendTimeout > 0 {
		client.CommandTimeout = t.sendTimeout
		client.SubmissionTimeout = t.sendTimeout
	}

	if t.username != "" {
		if err := client.Auth(sasl.NewPlainClient("", t.username, t.password)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	envelopeFrom := t.returnPath
	if envelopeFrom == "" {
		envelopeFrom = t.fromAddress
	}
	if err := client.Mail(envelopeFrom, nil); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(email.Recipient, nil); err != nil {
		return fmt.Errorf("RCPT TO %s: %w", email.Recipient, err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := io.Copy(wc, strings.NewReader(buildMessage(email, t.fromAddress, t.fromName))); err != nil {
		wc.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	if err := client.Quit(); err != nil {
		// 投递已完成，挥手失败只记日志
		t.log.Debug("smtp quit failed", zap.Error(err))
	}

	t.log.Info("email sent",
		zap.String("email_id", email.ID),
		zap.String("recipient", email.Recipient))
	return nil
}

// Close 实现 Transport。
func (t *SMTPTransport) Close() error { return nil }
