package internal

type SourceFormat string

const (
	SourceCSV       SourceFormat = "csv"
	SourceXLSX      SourceFormat = "xlsx"
	SourcePDF       SourceFormat = "pdf"
	SourceHTMLTable SourceFormat = "html"
	SourceText      SourceFormat = "text"
)

type ProductStatus string

const (
	ProductApproved ProductStatus = "approved"
	ProductPending  ProductStatus = "pending"
	ProductRejected ProductStatus = "rejected"
)

type BOQStatus string

const (
	BOQPending    BOQStatus = "pending"
	BOQProcessing BOQStatus = "processing"
	BOQCompleted  BOQStatus = "completed"
	BOQFailed     BOQStatus = "failed"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// RawLineItem is one row as pulled out of an uploaded BOQ, before any
// catalog reconciliation.
type RawLineItem struct {
	LineNo      int
	Description string
	Quantity    float64
	Unit        string
	Source      SourceFormat
	RawLine     string
}

type SupplierInfo struct {
	Name     string
	Location string
	Company  string
}

// NormalizedLineItem is a RawLineItem reconciled against the catalog.
// Immutable once built for a submission. ProductID is nil when nothing
// matched, and then IsAvailable is always false.
type NormalizedLineItem struct {
	ID                 int64
	LineNo             int
	RawName            string
	NormalizedName     string
	Quantity           float64
	Unit               string
	Category           string
	Confidence         float64
	ProductID          *int64
	Supplier           *SupplierInfo
	AvailableSuppliers int
	IsAvailable        bool
}

// VendorCandidate is one supplier able to fulfil a line item. Computed per
// ranking request, never persisted.
type VendorCandidate struct {
	SupplierID   int64
	Name         string
	Company      string
	Location     string
	Price        float64
	LeadTimeDays int
	Rating       float64
	Stock        float64
	RankScore    float64
	ProductID    int64
	Status       ProductStatus
}

type SubstitutionSuggestion struct {
	OriginalItem   string
	OriginalPrice  float64
	SuggestedItem  string
	SuggestedPrice float64
	ProductID      int64
	SupplierID     int64
	SupplierName   string
	Savings        float64
	SavingsPercent float64
	Reason         string
}

type GroupedItem struct {
	Name      string
	Quantity  float64
	Price     float64
	Unit      string
	ProductID int64
}

// VendorGroup collects the line items of one submission that the caller
// assigned to the same vendor.
type VendorGroup struct {
	VendorID   int64
	VendorName string
	Items      []GroupedItem
	Total      float64
}

type OrderLineItem struct {
	ProductID  int64
	Name       string
	Quantity   float64
	UnitPrice  float64
	TotalPrice float64
}

type StatusChange struct {
	Status    OrderStatus
	Note      string
	ChangedAt string
}

// PurchaseOrder is one order document per vendor group. TotalAmount always
// equals the sum of line item totals; the status history is append-only.
type PurchaseOrder struct {
	ID          int64
	OrderNumber string
	SupplierID  int64
	BuyerID     string
	LineItems   []OrderLineItem
	TotalAmount float64
	Status      OrderStatus
	History     []StatusChange
	CreatedAt   string
}

// Product is the catalog record shape served by the catalog lookup.
type Product struct {
	ID          int64
	SupplierID  int64
	Name        string
	Description string
	Category    string
	Price       float64
	Unit        string
	Stock       float64
	Rating      float64
	Status      ProductStatus
	IsActive    bool
	UpdatedAt   string
}

type Supplier struct {
	ID      int64
	Name    string
	Company string
	Email   string
	Phone   string
	Address string
}

// BOQRow is a persisted bill-of-quantities submission.
type BOQRow struct {
	ID        int64
	BuyerID   string
	Source    string
	Reference string
	Status    BOQStatus
	CreatedAt string
	UpdatedAt string
}

// BOQItem is a persisted normalized line item plus the caller's vendor
// selection, if any.
type BOQItem struct {
	NormalizedLineItem
	BOQID              int64
	SelectedSupplierID *int64
}

type Notification struct {
	ID        int64
	UserID    string
	Kind      string
	Title     string
	Message   string
	Metadata  map[string]any
	CreatedAt string
}

type MailRow struct {
	ID         int64
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
	BOQID      *int64
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// ReviewExportRow is one line of the normalization review sheet.
type ReviewExportRow struct {
	LineNo             int
	Source             string
	RawLine            string
	RawName            string
	NormalizedName     string
	Quantity           float64
	Unit               string
	Category           string
	Confidence         float64
	ProductID          *int64
	ProductName        *string
	SupplierName       *string
	AvailableSuppliers int
	IsAvailable        bool
}
