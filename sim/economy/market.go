package economy

import (
	"math"
	"math/rand"

	"github.com/daysim/daysim/sim"
)

// MarketID is the agent key of the single market.
const MarketID sim.AgentID = "market"

// DayReport summarizes one day of trading.
type DayReport struct {
	Day     int
	Offered float64
	Demand  float64
	Sold    float64
	Price   float64
}

type offer struct {
	farm   *Farm
	amount float64
}

// Market collects offers during PlaceOrders and clears them at Trade against a
// noisy daily demand. The price moves 5% toward whichever side was short.
type Market struct {
	Inventory

	demand float64
	price  float64
	rng    *rand.Rand
	reg    Registrar

	day     int
	offers  []offer
	reports []DayReport
}

// NewMarket creates a market with the given mean daily demand and opening price.
func NewMarket(demand, price float64, rng *rand.Rand) *Market {
	return &Market{demand: demand, price: price, rng: rng}
}

func (m *Market) ID() sim.AgentID { return MarketID }

// Start registers the market's recurring actions.
func (m *Market) Start(reg Registrar) {
	m.reg = reg
	reg.RegisterAction(MarketID, sim.Trade, m.clear)
	reg.RegisterAction(MarketID, sim.DataAndOutput, m.closeDay)
}

// TurnOff has nothing to release.
func (m *Market) TurnOff() {}

// Price is the current quoted price.
func (m *Market) Price() float64 { return m.price }

// Reports returns one report per day with trading.
func (m *Market) Reports() []DayReport { return m.reports }

func (m *Market) addOffer(f *Farm, amount float64) {
	m.offers = append(m.offers, offer{farm: f, amount: amount})
}

func (m *Market) clear(*sim.Scope) error {
	offers := m.offers
	offered := 0.0
	for _, o := range offers {
		offered += o.amount
	}
	demand := m.demand * (0.8 + 0.4*m.rng.Float64())
	ratio := 1.0
	if offered > 0 {
		ratio = math.Min(1, demand/offered)
	}
	price := m.price

	sold := 0.0
	for _, o := range offers {
		qty := o.amount * ratio
		sold += qty
		o.farm.settle(o.amount, qty, price)
	}

	report := DayReport{Day: m.day, Offered: offered, Demand: demand, Sold: sold, Price: price}
	// priority orders the bookkeeping: record at today's price, then reprice
	m.reg.RegisterEffect(MarketID, sim.EffectFunc(0, func() {
		m.reports = append(m.reports, report)
		m.offers = nil
	}))
	m.reg.RegisterEffect(MarketID, sim.EffectFunc(1, func() {
		switch {
		case demand > offered:
			m.price *= 1.05
		case demand < offered:
			m.price *= 0.95
		}
	}))
	return nil
}

func (m *Market) closeDay(*sim.Scope) error {
	m.day++
	return nil
}
