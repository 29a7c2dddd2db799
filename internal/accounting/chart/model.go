package chart

import "time"

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Account models a chart of accounts node. Accounts are configuration:
// the engine only ever reads them.
type Account struct {
	ID        int64
	Code      string
	Label     string
	Type      AccountType
	ParentID  *int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Class returns the SYSCOHADA class digit (first digit of the code).
func (a Account) Class() byte {
	if a.Code == "" {
		return 0
	}
	return a.Code[0]
}
