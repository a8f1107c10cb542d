package economy

import (
	"fmt"

	"github.com/daysim/daysim/sim"
)

// Agent is a participant that registers its recurring work on a Registrar.
type Agent interface {
	ID() sim.AgentID
	Start(reg Registrar)
	TurnOff()
}

// Config sizes the economy.
type Config struct {
	Farms      int     `yaml:"farms"`
	Fields     int     `yaml:"fields"`      // per farm
	MeanYield  float64 `yaml:"mean_yield"`  // food per field per day
	Demand     float64 `yaml:"demand"`      // mean food bought per day
	StartPrice float64 `yaml:"start_price"` // cash per unit of food on day 0
}

// DefaultConfig is a small economy where supply roughly matches demand.
func DefaultConfig() Config {
	return Config{Farms: 4, Fields: 8, MeanYield: 1, Demand: 32, StartPrice: 1}
}

// Validate rejects sizes the economy cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Farms < 1:
		return fmt.Errorf("economy: farms must be >= 1, got %d", c.Farms)
	case c.Fields < 1:
		return fmt.Errorf("economy: fields must be >= 1, got %d", c.Fields)
	case c.MeanYield < 0:
		return fmt.Errorf("economy: mean_yield must be >= 0, got %g", c.MeanYield)
	case c.Demand < 0:
		return fmt.Errorf("economy: demand must be >= 0, got %g", c.Demand)
	case c.StartPrice <= 0:
		return fmt.Errorf("economy: start_price must be > 0, got %g", c.StartPrice)
	}
	return nil
}

// Economy is a market plus its farms.
type Economy struct {
	Market *Market
	Farms  []*Farm
}

// New builds the economy. Every agent draws from its own rng stream, so a
// run is reproducible for a given key whatever the pool size.
func New(cfg Config, rng *sim.PartitionedRNG) (*Economy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Economy{
		Market: NewMarket(cfg.Demand, cfg.StartPrice, rng.ForSubsystem(sim.SubsystemMarket)),
	}
	for i := 0; i < cfg.Farms; i++ {
		id := sim.AgentID(fmt.Sprintf("farm-%d", i))
		e.Farms = append(e.Farms, NewFarm(id, cfg.Fields, cfg.MeanYield, rng.ForSubsystem(sim.SubsystemAgent(id)), e.Market))
	}
	return e, nil
}

// Agents lists the market first, then the farms in creation order.
func (e *Economy) Agents() []Agent {
	agents := []Agent{e.Market}
	for _, f := range e.Farms {
		agents = append(agents, f)
	}
	return agents
}

// Start registers every agent's recurring work on reg.
func (e *Economy) Start(reg Registrar) {
	for _, a := range e.Agents() {
		a.Start(reg)
	}
}

// StartDistributed gives every agent its own server on d, then registers
// their work there.
func (e *Economy) StartDistributed(d *Distributed) {
	for _, a := range e.Agents() {
		d.Add(a.ID())
	}
	e.Start(d)
}

// TurnOff turns every agent off.
func (e *Economy) TurnOff() {
	for _, a := range e.Agents() {
		a.TurnOff()
	}
}

// Summary is the end-of-run state of an economy.
type Summary struct {
	Days      int     `json:"days"`
	Price     float64 `json:"price"`
	TotalCash float64 `json:"total_cash"`
	Harvested float64 `json:"harvested"`
	TotalFood float64 `json:"total_food"`
	TotalSold float64 `json:"total_sold"`
}

// Summarize reads the economy. Call it only while no phase is resolving.
func (e *Economy) Summarize() Summary {
	s := Summary{Price: e.Market.Price(), Days: len(e.Market.Reports())}
	for _, f := range e.Farms {
		s.TotalCash += f.HasHowMany(Cash)
		s.TotalFood += f.HasHowMany(Food)
		s.Harvested += f.Harvested()
	}
	for _, r := range e.Market.Reports() {
		s.TotalSold += r.Sold
	}
	return s
}
