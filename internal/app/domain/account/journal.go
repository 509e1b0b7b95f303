package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind classifies a journal entry.
type EntryKind string

const (
	EntryCredit      EntryKind = "credit"
	EntryDebit       EntryKind = "debit"
	EntryTransferIn  EntryKind = "transfer_in"
	EntryTransferOut EntryKind = "transfer_out"
	EntrySignIn      EntryKind = "sign_in"
	EntryDeposit     EntryKind = "deposit"
	EntryWithdraw    EntryKind = "withdraw"
	EntryBuy         EntryKind = "buy"
	EntrySell        EntryKind = "sell"
	EntryGame        EntryKind = "game"
	EntryDraw        EntryKind = "draw"
)

// JournalEntry records one balance movement. Amount is signed.
type JournalEntry struct {
	ID           string          `json:"id"`
	Key          string          `json:"key"`
	Kind         EntryKind       `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	Reference    string          `json:"reference,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}
