package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/YOGESHBOTCHA965/W/internal/core/port"
	"github.com/YOGESHBOTCHA965/W/internal/infra/logger"
)

// ConsoleMailer stands in for SMTP when no mail server is configured. Outside production
// it logs the code so the reset flow can be completed locally; in production the code
// is withheld from the log.
type ConsoleMailer struct {
	logger     *zap.Logger
	revealCode bool
}

func NewConsoleMailer(log *zap.Logger, production bool) *ConsoleMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConsoleMailer{logger: log, revealCode: !production}
}

func (m *ConsoleMailer) SendResetOTP(_ context.Context, msg port.OTPMessage) error {
	if !m.revealCode {
		m.logger.Warn("smtp not configured, reset otp was not delivered",
			zap.String("email", logger.MaskEmail(msg.To)),
		)
		return nil
	}

	m.logger.Info("dev mode reset otp",
		zap.String("email", msg.To),
		zap.String("otp", msg.Code),
		zap.Int("expiry_minutes", msg.ExpiryMinutes),
	)
	return nil
}

var _ port.OTPMailer = (*ConsoleMailer)(nil)
