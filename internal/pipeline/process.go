package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"buildmart/internal"
	"buildmart/internal/storage"
)

// ProcessingService drives a BOQ submission end to end: extract line
// items from the uploaded document, reconcile each one against the
// catalog, and persist the result.
type ProcessingService struct {
	db         *storage.DB
	normalizer *Normalizer
	log        *zap.Logger
}

func NewProcessingService(db *storage.DB, normalizer *Normalizer, log *zap.Logger) *ProcessingService {
	return &ProcessingService{db: db, normalizer: normalizer, log: log}
}

type ProcessResult struct {
	BOQID     int64
	Extracted int
	Matched   int
	Unmatched int
}

// FormatFromPath maps a file extension to its source format. Unknown
// extensions fall back to plain text line parsing.
func FormatFromPath(path string) internal.SourceFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return internal.SourceCSV
	case ".xlsx", ".xls":
		return internal.SourceXLSX
	case ".pdf":
		return internal.SourcePDF
	case ".html", ".htm":
		return internal.SourceHTMLTable
	default:
		return internal.SourceText
	}
}

func (s *ProcessingService) ProcessFile(ctx context.Context, buyerID, path string) (ProcessResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessBytes(ctx, buyerID, data, FormatFromPath(path), filepath.Base(path))
}

func (s *ProcessingService) ProcessBytes(ctx context.Context, buyerID string, data []byte, format internal.SourceFormat, reference string) (ProcessResult, error) {
	items, err := Extract(data, format)
	if err != nil {
		return ProcessResult{}, err
	}

	boq, err := s.db.CreateBOQ(ctx, buyerID, string(format), reference)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.storeItems(ctx, boq.ID, items)
}

// ProcessEmail runs a fetched inbox message through detection and, when it
// looks like a BOQ request, through the full pipeline. Non-BOQ mail is
// marked skipped and left alone.
func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.MailRow) (ProcessResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	items, subject, text, attachmentNames, err := ExtractItemsFromEmailRaw(raw)
	if err != nil {
		return ProcessResult{}, err
	}

	detect := DetectBOQRequest(firstNonEmpty(subject, email.Subject), text, "", attachmentNames)
	if !detect.IsBOQ {
		s.log.Debug("email skipped",
			zap.String("messageId", email.MessageID),
			zap.Float64("score", detect.Score),
			zap.String("reason", detect.Reason))
		if err := s.db.UpdateEmailStatus(ctx, email.ID, "skipped"); err != nil {
			return ProcessResult{}, err
		}
		_ = s.db.InsertRun(ctx, traceID(), 0,
			map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
			map[string]int{"extracted": 0})
		return ProcessResult{}, nil
	}

	boq, err := s.db.CreateBOQ(ctx, email.Sender, "email", firstNonEmpty(subject, email.Subject))
	if err != nil {
		return ProcessResult{}, err
	}
	if err := s.db.SetEmailBOQ(ctx, email.ID, boq.ID); err != nil {
		return ProcessResult{}, err
	}

	result, err := s.storeItems(ctx, boq.ID, items)
	if err != nil {
		return ProcessResult{}, err
	}

	if err := s.db.UpdateEmailStatus(ctx, email.ID, "processed"); err != nil {
		return ProcessResult{}, err
	}
	s.log.Info("email processed",
		zap.String("messageId", email.MessageID),
		zap.Int64("boq", boq.ID),
		zap.Int("items", result.Extracted))
	return result, nil
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(ctx, provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

// ProcessPending processes fetched inbox messages in arrival order. An
// empty provider means all providers. Returns processed email and line
// counts.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus(ctx, "fetched", limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails, processedLines := 0, 0
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			return processedEmails, processedLines, err
		}
		processedEmails++
		processedLines += res.Extracted
	}
	return processedEmails, processedLines, nil
}

func (s *ProcessingService) storeItems(ctx context.Context, boqID int64, items []internal.RawLineItem) (ProcessResult, error) {
	start := time.Now()
	if err := s.db.UpdateBOQStatus(ctx, boqID, internal.BOQProcessing); err != nil {
		return ProcessResult{}, err
	}
	if err := s.db.ClearBOQItems(ctx, boqID); err != nil {
		return ProcessResult{}, err
	}

	result := ProcessResult{BOQID: boqID, Extracted: len(items)}
	for _, raw := range items {
		item := s.normalizer.Normalize(ctx, raw)
		if _, err := s.db.InsertBOQItem(ctx, boqID, item, raw.RawLine); err != nil {
			s.markFailed(ctx, boqID, err)
			return ProcessResult{}, err
		}
		if item.ProductID != nil {
			result.Matched++
		} else {
			result.Unmatched++
		}
	}

	if err := s.db.UpdateBOQStatus(ctx, boqID, internal.BOQPending); err != nil {
		return ProcessResult{}, err
	}
	_ = s.db.AppendBOQLog(ctx, boqID, fmt.Sprintf("normalized %d line(s), %d matched", result.Extracted, result.Matched))
	_ = s.db.InsertRun(ctx, traceID(), boqID,
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		map[string]int{"extracted": result.Extracted, "matched": result.Matched, "unmatched": result.Unmatched})

	return result, nil
}

func (s *ProcessingService) markFailed(ctx context.Context, boqID int64, cause error) {
	if err := s.db.UpdateBOQStatus(ctx, boqID, internal.BOQFailed); err != nil && s.log != nil {
		s.log.Warn("mark boq failed", zap.Int64("boq", boqID), zap.Error(err))
	}
	_ = s.db.AppendBOQLog(ctx, boqID, "processing failed: "+cause.Error())
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
