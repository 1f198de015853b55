package request

// SaveGroupRequest creates or replaces a group. The id comes from the URL.
type SaveGroupRequest struct {
	Name              string  `json:"name" validate:"required,max=100"`
	TargetPct         float64 `json:"targetPct" validate:"gte=0,lte=100"`
	UpsideThreshold   float64 `json:"upsideThreshold" validate:"gte=0"`
	DownsideThreshold float64 `json:"downsideThreshold" validate:"gte=0"`
	AbsoluteRebalance bool    `json:"absoluteRebalance"`
}

// SaveTargetRequest moves a holding into a group with a target share of it.
type SaveTargetRequest struct {
	GroupID   string  `json:"groupId" validate:"required,uuid"`
	TargetPct float64 `json:"targetPct" validate:"gte=0,lte=100"`
}

// PriceRequest is one caller-supplied price observation.
type PriceRequest struct {
	HoldingID string  `json:"holdingId" validate:"required,uuid"`
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	Price     float64 `json:"price" validate:"gt=0"`
}

// SavePricesRequest ingests a batch of prices in one transaction.
type SavePricesRequest struct {
	Prices []PriceRequest `json:"prices" validate:"required,min=1,max=5000,dive"`
}

// CreateAccountRequest opens a new account. TaxStatus defaults to taxable.
type CreateAccountRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	Type      string `json:"type" validate:"max=50"`
	TaxStatus string `json:"taxStatus" validate:"omitempty,oneof=taxable tax_advantaged"`
}

// CreateHoldingRequest registers a holding with its classification tags.
type CreateHoldingRequest struct {
	Ticker    string `json:"ticker" validate:"required,max=20"`
	Name      string `json:"name" validate:"max=255"`
	Type      string `json:"type" validate:"max=50"`
	Subtype   string `json:"subtype" validate:"max=50"`
	Geography string `json:"geography" validate:"max=50"`
	Size      string `json:"size" validate:"max=50"`
	Factor    string `json:"factor" validate:"max=50"`
	GroupID   string `json:"groupId" validate:"omitempty,uuid"`
}
