package cashdesk

import "github.com/shopspring/decimal"

// Balance is the cash desk float as reported by the remote API.
type Balance struct {
	Balance decimal.Decimal `json:"Balance"`
	Limit   decimal.Decimal `json:"Limit"`
}

// Free is the remaining headroom below the limit.
func (b Balance) Free() decimal.Decimal {
	return b.Limit.Sub(b.Balance)
}

type Profile struct {
	UserID     int64  `json:"UserId"`
	Name       string `json:"Name"`
	CurrencyID int    `json:"CurrencyId"`
}

type depositRequest struct {
	CashdeskID int     `json:"cashdeskId"`
	Lang       string  `json:"lng"`
	Summa      float64 `json:"summa"`
	Confirm    string  `json:"confirm"`
}

type payoutRequest struct {
	CashdeskID int    `json:"cashdeskId"`
	Lang       string `json:"lng"`
	Code       string `json:"code"`
	Confirm    string `json:"confirm"`
}

// OperationResult is the body of a deposit or payout response. Success=false
// means the cash desk refused the operation and Message carries the reason.
type OperationResult struct {
	Success   bool            `json:"success"`
	Summa     decimal.Decimal `json:"summa"`
	Message   string          `json:"message"`
	MessageID int64           `json:"messageId"`
}
