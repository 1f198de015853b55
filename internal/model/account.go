package model

// TaxStatus drives tax-aware selection. It is the only account attribute
// the engine looks at when choosing where to sell from.
type TaxStatus string

const (
	TaxStatusTaxable       TaxStatus = "taxable"
	TaxStatusTaxAdvantaged TaxStatus = "tax_advantaged"
)

// Valid reports whether s is one of the known tax statuses.
func (s TaxStatus) Valid() bool {
	return s == TaxStatusTaxable || s == TaxStatusTaxAdvantaged
}

// Account represents a brokerage or retirement account owned by a user.
type Account struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	TaxStatus TaxStatus `json:"taxStatus"`
}

// IsTaxable reports whether gains realized in the account are taxed.
func (a Account) IsTaxable() bool {
	return a.TaxStatus == TaxStatusTaxable
}
