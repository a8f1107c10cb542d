package economy

import (
	"math/rand"

	"github.com/daysim/daysim/sim"
)

// Snapshot is an end-of-day view of an agent's holdings.
type Snapshot struct {
	Cash float64
	Food float64
}

// Farm harvests food on each of its fields every Production phase and offers
// its whole stock to the market at PlaceOrders.
type Farm struct {
	Inventory

	id        sim.AgentID
	fields    int
	meanYield float64
	rng       *rand.Rand
	market    *Market
	reg       Registrar

	harvested float64
	ledger    []Snapshot
}

// NewFarm creates a farm. rng must not be shared with any other agent.
func NewFarm(id sim.AgentID, fields int, meanYield float64, rng *rand.Rand, market *Market) *Farm {
	return &Farm{
		id:        id,
		fields:    fields,
		meanYield: meanYield,
		rng:       rng,
		market:    market,
	}
}

func (f *Farm) ID() sim.AgentID { return f.id }

// Start registers the farm's recurring actions.
func (f *Farm) Start(reg Registrar) {
	f.reg = reg
	reg.RegisterAction(f.id, sim.Production, f.produce)
	reg.RegisterAction(f.id, sim.PlaceOrders, f.placeOrders)
	reg.RegisterAction(f.id, sim.DataAndOutput, f.record)
}

// TurnOff has nothing to release.
func (f *Farm) TurnOff() {}

// Harvested is the food produced over every Production phase so far.
func (f *Farm) Harvested() float64 { return f.harvested }

// Ledger returns one snapshot per completed day.
func (f *Farm) Ledger() []Snapshot { return f.ledger }

func (f *Farm) produce(sc *sim.Scope) error {
	// draw before fanning out: the stream is not goroutine-safe
	factors := make([]float64, f.fields)
	for i := range factors {
		factors[i] = 0.5 + f.rng.Float64()
	}
	yields := make([]float64, f.fields)
	subs := make([]sim.Action, f.fields)
	for i := range subs {
		subs[i] = func(*sim.Scope) error {
			yields[i] = f.meanYield * factors[i]
			return nil
		}
	}
	if err := sc.Invoke(subs...); err != nil {
		return err
	}

	total := 0.0
	for _, y := range yields {
		total += y
	}
	f.harvested += total
	f.reg.RegisterEffect(f.id, sim.EffectFunc(0, func() {
		f.ReceiveOrProduce(Food, total)
	}))
	return nil
}

func (f *Farm) placeOrders(*sim.Scope) error {
	offer := f.HasHowMany(Food)
	if offer <= 0 {
		return nil
	}
	// the food sits with the market until Trade settles it
	f.reg.RegisterEffect(f.id, sim.EffectFunc(0, func() {
		f.Consume(Food, offer)
	}))
	f.reg.RegisterEffect(f.market.ID(), sim.EffectFunc(0, func() {
		f.market.addOffer(f, offer)
	}))
	return nil
}

// settle is called from the market's Trade action.
func (f *Farm) settle(offered, sold, price float64) {
	f.reg.RegisterEffect(f.id, sim.EffectFunc(0, func() {
		f.ReceiveOrProduce(Cash, sold*price)
		f.ReceiveOrProduce(Food, offered-sold)
	}))
}

func (f *Farm) record(*sim.Scope) error {
	f.ledger = append(f.ledger, Snapshot{Cash: f.HasHowMany(Cash), Food: f.HasHowMany(Food)})
	return nil
}
