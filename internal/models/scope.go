package models

// Scope is the visibility lens applied to order reads.
// An owner scope only ever sees orders of BuyerID.
type Scope struct {
	BuyerID      string
	Unrestricted bool
}

func OwnerScope(buyerID string) Scope { return Scope{BuyerID: buyerID} }

func AdminScope() Scope { return Scope{Unrestricted: true} }

// Allows reports whether an order owned by buyerID is visible.
func (s Scope) Allows(buyerID string) bool {
	return s.Unrestricted || (s.BuyerID != "" && s.BuyerID == buyerID)
}
