// Package callback encodes the actions carried by inline buttons.
//
// Data has the form "<kind>" or "<kind>:<argument>", well inside the 64 byte
// limit Telegram puts on callback data.
package callback

import (
	"errors"
	"strconv"
	"strings"

	"cashdesk-bot/internal/models"
)

var ErrMalformed = errors.New("malformed callback data")

type Kind string

const (
	// admin actions on a deposit
	Accept  Kind = "accept"
	Reject  Kind = "reject"
	Contact Kind = "contact"
	View    Kind = "view"

	// user actions on a deposit
	Paid   Kind = "paid"
	Cancel Kind = "cancel"

	Method Kind = "method"

	BroadcastConfirm Kind = "broadcast_confirm"
	BroadcastCancel  Kind = "broadcast_cancel"

	// menu entries
	Menu Kind = "menu"
)

// Menu entries carried as the argument of a Menu action.
const (
	MenuDeposit    = "deposit"
	MenuWithdraw   = "withdraw"
	MenuBalance    = "balance"
	MenuDeposits   = "deposits"
	MenuSupport    = "support"
	MenuStats      = "stats"
	MenuPending    = "pending"
	MenuProcessing = "processing"
	MenuBroadcast  = "broadcast"
	MenuCashier    = "cashier"
	MenuSearch     = "search"
	MenuHome       = "home"
)

type Action struct {
	Kind      Kind
	DepositID int64
	Method    models.PaymentMethod
	Menu      string
}

func deposit(kind Kind, id int64) Action {
	return Action{Kind: kind, DepositID: id}
}

func AcceptDeposit(id int64) Action { return deposit(Accept, id) }
func RejectDeposit(id int64) Action { return deposit(Reject, id) }
func ContactOwner(id int64) Action  { return deposit(Contact, id) }
func ViewDeposit(id int64) Action   { return deposit(View, id) }
func ConfirmPaid(id int64) Action   { return deposit(Paid, id) }
func CancelDeposit(id int64) Action { return deposit(Cancel, id) }

func ChooseMethod(m models.PaymentMethod) Action {
	return Action{Kind: Method, Method: m}
}

func OpenMenu(entry string) Action {
	return Action{Kind: Menu, Menu: entry}
}

// Data renders the action as callback data.
func (a Action) Data() string {
	switch a.Kind {
	case Accept, Reject, Contact, View, Paid, Cancel:
		return string(a.Kind) + ":" + strconv.FormatInt(a.DepositID, 10)
	case Method:
		return string(a.Kind) + ":" + string(a.Method)
	case Menu:
		return string(a.Kind) + ":" + a.Menu
	default:
		return string(a.Kind)
	}
}

// Parse decodes callback data produced by Data.
func Parse(data string) (Action, error) {
	kind, arg, _ := strings.Cut(data, ":")
	action := Action{Kind: Kind(kind)}

	switch action.Kind {
	case Accept, Reject, Contact, View, Paid, Cancel:
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return Action{}, ErrMalformed
		}
		action.DepositID = id
	case Method:
		action.Method = models.PaymentMethod(arg)
		if !action.Method.Valid() {
			return Action{}, ErrMalformed
		}
	case Menu:
		if arg == "" {
			return Action{}, ErrMalformed
		}
		action.Menu = arg
	case BroadcastConfirm, BroadcastCancel:
		if arg != "" {
			return Action{}, ErrMalformed
		}
	default:
		return Action{}, ErrMalformed
	}
	return action, nil
}
