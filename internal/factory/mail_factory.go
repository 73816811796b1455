package factory

import (
	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/adapters/mail"
	"github.com/perry/email-evolve/internal/config"
	"github.com/perry/email-evolve/internal/core"
)

// MailFactory creates mail ingestion sources
type MailFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMailFactory creates a new mail factory
func NewMailFactory(cfg *config.Config, logger *zap.Logger) *MailFactory {
	return &MailFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateAccountSource creates the account source over the tokens directory
func (f *MailFactory) CreateAccountSource() core.AccountSource {
	mailCfg := f.cfg.GetMail()
	return mail.NewTokenAccountSource(mailCfg.TokensDir, f.logger)
}

// CreateMailSource creates the mail source over the spool directory
func (f *MailFactory) CreateMailSource() core.MailSource {
	mailCfg := f.cfg.GetMail()
	return mail.NewSpoolMailSource(mailCfg.SpoolDir, f.logger)
}
