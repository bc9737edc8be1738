package tariff

// Tariff is a purchasable plan. RegularMode is the provider's billing-period
// code; empty means a one-time purchase with no auto-renewal.
type Tariff struct {
	ID          string
	Name        string
	Price       float64
	Days        int
	RegularMode string
}

// Recurring reports whether the plan is backed by provider-managed
// automatic re-charging.
func (t Tariff) Recurring() bool {
	return t.RegularMode != ""
}

// priceEpsilon is the absolute tolerance used when matching a charged
// amount back to a plan price.
const priceEpsilon = 1.0

// fallbackDays is the entitlement applied when no plan matches the amount.
const fallbackDays = 30

// Catalog is an ordered, immutable set of plans. Order matters: amount
// resolution returns the first plan within epsilon, in declaration order.
type Catalog struct {
	tariffs []Tariff
}

func NewCatalog(tariffs []Tariff) *Catalog {
	return &Catalog{tariffs: tariffs}
}

// DefaultCatalog returns the production plan set, prices in UAH.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Tariff{
		{ID: "1_month", Name: "1 Месяц", Price: 100, Days: 30, RegularMode: "monthly"},
		{ID: "3_months", Name: "3 Месяца", Price: 270, Days: 90, RegularMode: "quarterly"},
		{ID: "6_months", Name: "6 Месяцев", Price: 500, Days: 180, RegularMode: "halfyearly"},
		{ID: "12_months", Name: "1 Год", Price: 900, Days: 365, RegularMode: "yearly"},
	})
}

// All returns the plans in declaration order.
func (c *Catalog) All() []Tariff {
	return c.tariffs
}

// ByID looks a plan up by identifier.
func (c *Catalog) ByID(id string) (Tariff, bool) {
	for _, t := range c.tariffs {
		if t.ID == id {
			return t, true
		}
	}
	return Tariff{}, false
}

// ResolveByAmount maps a charged amount to a plan. The first plan whose
// price is within priceEpsilon of the amount wins; ties between plans
// both within epsilon go to declaration order, not to the closest price.
// Unknown amounts fall back to a 30-day entitlement with a sentinel
// label rather than failing the transaction.
func (c *Catalog) ResolveByAmount(amount float64) Tariff {
	for _, t := range c.tariffs {
		diff := t.Price - amount
		if diff < 0 {
			diff = -diff
		}
		if diff < priceEpsilon {
			return t
		}
	}
	return Tariff{ID: "unknown", Name: "Unknown", Days: fallbackDays}
}
