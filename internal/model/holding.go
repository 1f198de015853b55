package model

// Lens names a classification used to group performance series.
type Lens string

const (
	LensGroup     Lens = "group"
	LensType      Lens = "type"
	LensSubtype   Lens = "subtype"
	LensGeography Lens = "geography"
	LensSize      Lens = "size"
	LensFactor    Lens = "factor"
	LensAccount   Lens = "account"
	LensHolding   Lens = "holding"
)

// Lenses lists every supported lens in display order.
var Lenses = []Lens{LensGroup, LensType, LensSubtype, LensGeography, LensSize, LensFactor, LensAccount, LensHolding}

// ParseLens returns the lens named by s and whether it is known.
func ParseLens(s string) (Lens, bool) {
	for _, l := range Lenses {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

// Holding represents an asset with its classification tags and group membership.
// Target is nil when no holding target has been stored for the holding.
type Holding struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Ticker    string         `json:"ticker"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Subtype   string         `json:"subtype"`
	Geography string         `json:"geography"`
	Size      string         `json:"size"`
	Factor    string         `json:"factor"`
	GroupID   string         `json:"groupId,omitempty"`
	Target    *HoldingTarget `json:"target,omitempty"`
}

// Tag returns the classification value of the holding for a tag lens.
// Group, account and holding lenses are resolved by the caller.
func (h Holding) Tag(lens Lens) string {
	switch lens {
	case LensType:
		return h.Type
	case LensSubtype:
		return h.Subtype
	case LensGeography:
		return h.Geography
	case LensSize:
		return h.Size
	case LensFactor:
		return h.Factor
	case LensGroup:
		return h.GroupID
	case LensHolding:
		return h.ID
	}
	return ""
}

// Group is a sub-portfolio with a target share of total portfolio value
// and the drift thresholds that trigger rebalancing.
type Group struct {
	ID                string  `json:"id"`
	UserID            string  `json:"userId"`
	Name              string  `json:"name"`
	TargetPct         float64 `json:"targetPct"`
	UpsideThreshold   float64 `json:"upsideThreshold"`
	DownsideThreshold float64 `json:"downsideThreshold"`
	AbsoluteRebalance bool    `json:"absoluteRebalance"`
}

// HoldingTarget is the target percentage of a holding within its group.
type HoldingTarget struct {
	HoldingID string  `json:"holdingId"`
	GroupID   string  `json:"groupId"`
	TargetPct float64 `json:"targetPct"`
}
