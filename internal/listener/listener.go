// Package listener polls a mailbox for incoming BOQ requests and feeds
// them through the processing pipeline.
package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"buildmart/internal/config"
	"buildmart/internal/connectors"
	gmailconnector "buildmart/internal/connectors/gmail"
	imapconnector "buildmart/internal/connectors/imap"
	"buildmart/internal/pipeline"
	"buildmart/internal/storage"
)

type Service struct {
	db        *storage.DB
	cfg       config.Config
	processor *pipeline.ProcessingService
	log       *zap.Logger
}

func NewService(db *storage.DB, cfg config.Config, processor *pipeline.ProcessingService, log *zap.Logger) *Service {
	return &Service{db: db, cfg: cfg, processor: processor, log: log}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil {
			s.log.Error("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.MailListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.makeConnector(provider)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return err
	}

	processedEmails, processedLines, err := s.processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return err
	}

	if s.cfg.MailListenerAutoExport {
		if err := s.exportProcessed(ctx, provider); err != nil {
			return err
		}
	}

	s.log.Info("listener cycle done",
		zap.String("provider", provider),
		zap.Int("fetched", fetchResult.Fetched),
		zap.Int("stored", fetchResult.Stored),
		zap.Int("processedEmails", processedEmails),
		zap.Int("processedLines", processedLines))
	return nil
}

func (s *Service) exportProcessed(ctx context.Context, provider string) error {
	emails, err := s.db.ListEmailsByStatus(ctx, "processed", 200)
	if err != nil {
		return err
	}

	for _, email := range emails {
		if email.Provider != provider || email.BOQID == nil {
			continue
		}
		rows, err := s.db.GetReviewRows(ctx, *email.BOQID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			continue
		}
		filename := fmt.Sprintf("%d_%s.xlsx", email.ID, sanitizeMessageID(email.MessageID))
		outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
		if err := pipeline.ExportReviewRowsToXLSX(rows, outputPath); err != nil {
			return err
		}
		_ = s.db.UpdateEmailStatus(ctx, email.ID, "exported")
	}
	return nil
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
