package domain

// Side represents the side of a trade intent.
type Side string

const (
	Buy        Side = "BUY"
	Sell       Side = "SELL"
	SellToOpen Side = "SELL_TO_OPEN"
	BuyToOpen  Side = "BUY_TO_OPEN"
)

// IsOption reports whether the side refers to an option leg.
func (s Side) IsOption() bool {
	return s == SellToOpen || s == BuyToOpen
}

// Mode selects how a batch of intents is executed.
type Mode string

const (
	ModeDryRun Mode = "dry_run"
	ModeLive   Mode = "live"
)

// IntentStatus tracks an intent through the execution mediator.
// Transitions: PENDING -> {PREVIEWED | SUBMITTED | FAILED}. Terminal states
// are never revisited.
type IntentStatus string

const (
	StatusPending   IntentStatus = "PENDING"
	StatusPreviewed IntentStatus = "PREVIEWED"
	StatusSubmitted IntentStatus = "SUBMITTED"
	StatusFailed    IntentStatus = "FAILED"
)

// AssetType distinguishes equity and option order legs.
type AssetType string

const (
	AssetEquity AssetType = "EQUITY"
	AssetOption AssetType = "OPTION"
)
