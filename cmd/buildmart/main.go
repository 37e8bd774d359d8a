package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"buildmart/internal"
	"buildmart/internal/ai/gemini"
	"buildmart/internal/config"
	"buildmart/internal/connectors"
	gmailconnector "buildmart/internal/connectors/gmail"
	imapconnector "buildmart/internal/connectors/imap"
	"buildmart/internal/feed"
	"buildmart/internal/listener"
	"buildmart/internal/logger"
	"buildmart/internal/pipeline"
	"buildmart/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log, err := logger.New(cfg.LogJSON, cfg.LogDebug)
	must(err)
	defer func() { _ = log.Sync() }()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx := context.Background()
	cmd := os.Args[1]
	switch cmd {
	case "boq:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		buyer := fs.String("buyer", "", "buyer id")
		input := fs.String("input", "", "BOQ file path (csv|xlsx|pdf|html|txt)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*buyer) == "" || strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--buyer and --input are required"))
		}
		processor := newProcessor(cfg, db, log)
		res, err := processor.ProcessFile(ctx, *buyer, *input)
		must(err)
		fmt.Printf("boq %d processed: extracted=%d matched=%d unmatched=%d\n", res.BOQID, res.Extracted, res.Matched, res.Unmatched)
	case "boq:items":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		boqID := fs.Int64("boqId", 0, "boq id")
		_ = fs.Parse(os.Args[2:])
		if *boqID == 0 {
			must(fmt.Errorf("--boqId is required"))
		}
		items, err := db.ListBOQItems(ctx, *boqID)
		must(err)
		for _, item := range items {
			selected := "-"
			if item.SelectedSupplierID != nil {
				selected = fmt.Sprintf("%d", *item.SelectedSupplierID)
			}
			fmt.Printf("item=%d line=%d %q -> %q qty=%.2f %s conf=%.2f suppliers=%d selected=%s\n",
				item.ID, item.LineNo, item.RawName, item.NormalizedName, item.Quantity, item.Unit,
				item.Confidence, item.AvailableSuppliers, selected)
		}
	case "boq:select":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		itemID := fs.Int64("itemId", 0, "boq item id")
		supplierID := fs.Int64("supplierId", 0, "supplier id")
		_ = fs.Parse(os.Args[2:])
		if *itemID == 0 || *supplierID == 0 {
			must(fmt.Errorf("--itemId and --supplierId are required"))
		}
		supplier, err := db.FindSupplierByID(ctx, *supplierID)
		must(err)
		if supplier == nil {
			must(fmt.Errorf("unknown supplier: %d", *supplierID))
		}
		must(db.SelectItemSupplier(ctx, *itemID, *supplierID))
		fmt.Printf("item %d assigned to supplier %d (%s)\n", *itemID, supplier.ID, supplier.Name)
	case "rank":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		itemID := fs.Int64("itemId", 0, "boq item id")
		_ = fs.Parse(os.Args[2:])
		if *itemID == 0 {
			must(fmt.Errorf("--itemId is required"))
		}
		item, err := db.GetBOQItem(ctx, *itemID)
		must(err)
		if item == nil {
			must(fmt.Errorf("boq item not found: %d", *itemID))
		}
		ranker := pipeline.NewRanker(db, db, cfg.Rules.Ranking, log)
		candidates, err := ranker.Rank(ctx, item.NormalizedLineItem)
		must(err)
		if len(candidates) == 0 {
			fmt.Println("no vendors can fulfil this item")
			return
		}
		for i, c := range candidates {
			fmt.Printf("%d. supplier=%d %s price=%.2f rating=%.1f stock=%.0f lead=%dd score=%.2f\n",
				i+1, c.SupplierID, c.Name, c.Price, c.Rating, c.Stock, c.LeadTimeDays, c.RankScore)
		}
	case "substitute":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		productID := fs.Int64("productId", 0, "product id")
		_ = fs.Parse(os.Args[2:])
		if *productID == 0 {
			must(fmt.Errorf("--productId is required"))
		}
		advisor := pipeline.NewAdvisor(db, db, cfg.Rules.Substitution, log)
		suggestions, err := advisor.Suggest(ctx, *productID)
		must(err)
		if len(suggestions) == 0 {
			fmt.Println("no substitutions worth surfacing")
			return
		}
		for _, s := range suggestions {
			fmt.Printf("%q %.2f -> %q %.2f (%s, saves %.2f / %.1f%%)\n",
				s.OriginalItem, s.OriginalPrice, s.SuggestedItem, s.SuggestedPrice, s.Reason, s.Savings, s.SavingsPercent)
		}
	case "po:create":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		boqID := fs.Int64("boqId", 0, "boq id")
		buyer := fs.String("buyer", "", "buyer id, defaults to the boq's buyer")
		_ = fs.Parse(os.Args[2:])
		if *boqID == 0 {
			must(fmt.Errorf("--boqId is required"))
		}
		boq, err := db.GetBOQ(ctx, *boqID)
		must(err)
		if boq == nil {
			must(fmt.Errorf("boq not found: %d", *boqID))
		}
		buyerID := strings.TrimSpace(*buyer)
		if buyerID == "" {
			buyerID = boq.BuyerID
		}
		items, err := db.ListBOQItems(ctx, *boqID)
		must(err)
		selections := make([]pipeline.SelectedItem, 0, len(items))
		for _, item := range items {
			sel := pipeline.SelectedItem{Item: item.NormalizedLineItem}
			if item.SelectedSupplierID != nil {
				sel.SupplierID = *item.SelectedSupplierID
			}
			selections = append(selections, sel)
		}
		synth := pipeline.NewSynthesizer(db, db, db, db, log).WithBOQMarker(db)
		orders, err := synth.CreateOrders(ctx, buyerID, *boqID, selections)
		must(err)
		if len(orders) == 0 {
			fmt.Println("no items with a vendor selection, nothing to order")
			return
		}
		for _, order := range orders {
			fmt.Printf("created %s supplier=%d items=%d total=%.2f\n",
				order.OrderNumber, order.SupplierID, len(order.LineItems), order.TotalAmount)
		}
	case "po:status":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		orderNumber := fs.String("order", "", "order number")
		set := fs.String("set", "", "pending|confirmed|shipped|delivered|cancelled")
		note := fs.String("note", "", "history note")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*orderNumber) == "" {
			must(fmt.Errorf("--order is required"))
		}
		if strings.TrimSpace(*set) != "" {
			must(db.UpdateOrderStatus(ctx, *orderNumber, internal.OrderStatus(*set), *note))
		}
		order, err := db.GetOrderByNumber(ctx, *orderNumber)
		must(err)
		if order == nil {
			must(fmt.Errorf("order not found: %s", *orderNumber))
		}
		fmt.Printf("%s supplier=%d buyer=%s total=%.2f status=%s\n",
			order.OrderNumber, order.SupplierID, order.BuyerID, order.TotalAmount, order.Status)
		for _, li := range order.LineItems {
			fmt.Printf("  %s x%.2f @ %.2f = %.2f\n", li.Name, li.Quantity, li.UnitPrice, li.TotalPrice)
		}
		for _, change := range order.History {
			fmt.Printf("  [%s] %s %s\n", change.ChangedAt, change.Status, change.Note)
		}
	case "feed:sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		full := fs.Bool("full", false, "mirror the entire feed")
		hours := fs.Int("hours", 24, "incremental lookback window")
		_ = fs.Parse(os.Args[2:])
		stampKey := "feed.last_incremental_sync"
		if *full {
			stampKey = "feed.last_full_sync"
		}
		if stamp, err := db.GetMetadata(ctx, stampKey); err == nil && stamp != nil {
			fmt.Printf("previous sync: %s\n", *stamp)
		}
		svc := feed.NewSyncService(db, cfg, log)
		var count int
		if *full {
			count, err = svc.FullSync(ctx)
		} else {
			count, err = svc.IncrementalSync(ctx, *hours)
		}
		must(err)
		fmt.Printf("feed sync complete: %d products\n", count)
	case "catalog:approve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		productID := fs.Int64("productId", 0, "product id")
		reject := fs.Bool("reject", false, "reject instead of approve")
		_ = fs.Parse(os.Args[2:])
		if *productID == 0 {
			must(fmt.Errorf("--productId is required"))
		}
		status := internal.ProductApproved
		if *reject {
			status = internal.ProductRejected
		}
		must(db.SetProductStatus(ctx, *productID, status))
		fmt.Printf("product %d set to %s\n", *productID, status)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		boqID := fs.Int64("boqId", 0, "boq id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *boqID == 0 || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--boqId and --out are required"))
		}
		rows, err := db.GetReviewRows(ctx, *boqID)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no review rows for boqId=%d", *boqID))
		}
		must(pipeline.ExportReviewRowsToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "imap", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "gmail|imap, empty for all")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := newProcessor(cfg, db, log)
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(ctx, *provider, *messageID)
			must(err)
			fmt.Printf("processed boq=%d lines=%d\n", res.BOQID, res.Extracted)
			return
		}
		processedEmails, processedLines, err := processor.ProcessPending(ctx, *batch, *provider)
		must(err)
		fmt.Printf("processed pending emails=%d lines=%d\n", processedEmails, processedLines)
	case "mail:listen":
		svc := listener.NewService(db, cfg, newProcessor(cfg, db, log), log)
		must(svc.Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func newProcessor(cfg config.Config, db *storage.DB, log *zap.Logger) *pipeline.ProcessingService {
	normalizer := pipeline.NewNormalizer(db, db, cfg.Rules, log)
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gen, err := gemini.NewGenerator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err == nil {
			normalizer = normalizer.WithAssist(gen, cfg.AIAssistThreshold)
		} else {
			log.Warn("gemini assist disabled", zap.Error(err))
		}
	}
	return pipeline.NewProcessingService(db, normalizer, log)
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: buildmart <command>")
	fmt.Println("commands:")
	fmt.Println("  boq:process --buyer=buyer-1 --input=./boq.csv")
	fmt.Println("  boq:items --boqId=1")
	fmt.Println("  boq:select --itemId=1 --supplierId=2")
	fmt.Println("  rank --itemId=1")
	fmt.Println("  substitute --productId=100")
	fmt.Println("  po:create --boqId=1 [--buyer=buyer-1]")
	fmt.Println("  po:status --order=ORD2026080001 [--set=confirmed --note=...]")
	fmt.Println("  feed:sync [--full] [--hours=24]")
	fmt.Println("  catalog:approve --productId=100 [--reject]")
	fmt.Println("  export:xlsx --boqId=1 --out=./out/review.xlsx")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process [--provider=gmail|imap] [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
