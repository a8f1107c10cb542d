package economy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daysim/daysim/sim"
	"github.com/daysim/daysim/sim/internal/testutil"
)

func runCentral(t *testing.T, cfg Config, seed int64, workers, days int) *Economy {
	t.Helper()
	e, err := New(cfg, sim.NewPartitionedRNG(sim.NewSimulationKey(seed)))
	require.NoError(t, err)
	s := sim.NewSchedule(sim.ScheduleConfig{Workers: workers, HaltOnFault: true})
	defer s.Close()
	e.Start(Central(s))
	require.NoError(t, s.RunDays(context.Background(), days))
	require.Equal(t, days, s.Day())
	return e
}

func runDistributed(t *testing.T, cfg Config, seed int64, workers, days int) *Economy {
	t.Helper()
	e, err := New(cfg, sim.NewPartitionedRNG(sim.NewSimulationKey(seed)))
	require.NoError(t, err)
	roster := sim.NewRoster(sim.RosterConfig{HaltOnFault: true})
	defer roster.Close()
	d := NewDistributed(roster, sim.NewPool(workers), nil)
	defer d.TurnOff()
	e.StartDistributed(d)
	require.NoError(t, roster.RunDays(context.Background(), days))
	require.Equal(t, days, roster.Day())
	return e
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no farms", func(c *Config) { c.Farms = 0 }},
		{"no fields", func(c *Config) { c.Fields = 0 }},
		{"negative yield", func(c *Config) { c.MeanYield = -1 }},
		{"negative demand", func(c *Config) { c.Demand = -1 }},
		{"zero price", func(c *Config) { c.StartPrice = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := New(cfg, sim.NewPartitionedRNG(1))
			assert.Error(t, err)
		})
	}
}

func TestEconomy_Agents(t *testing.T) {
	e, err := New(Config{Farms: 3, Fields: 1, MeanYield: 1, Demand: 1, StartPrice: 1}, sim.NewPartitionedRNG(1))
	require.NoError(t, err)

	agents := e.Agents()
	require.Len(t, agents, 4)
	assert.Equal(t, MarketID, agents[0].ID())
	assert.Equal(t, sim.AgentID("farm-2"), agents[3].ID())
}

func TestEconomy_GoodsAreConserved(t *testing.T) {
	// GIVEN the default economy run for 20 days
	e := runCentral(t, DefaultConfig(), 42, 4, 20)
	sum := e.Summarize()

	// THEN one report per day was filed, numbered from 0
	require.Equal(t, 20, sum.Days)
	for i, r := range e.Market.Reports() {
		assert.Equal(t, i, r.Day)
	}

	// AND food harvested is either sold or still held by a farm
	testutil.AssertFloat64Equal(t, "food", sum.Harvested, sum.TotalSold+sum.TotalFood, 1e-9)

	// AND farms earned exactly what the market paid
	paid := 0.0
	for _, r := range e.Market.Reports() {
		paid += r.Sold * r.Price
	}
	testutil.AssertFloat64Equal(t, "cash", paid, sum.TotalCash, 1e-9)

	// AND every farm kept one ledger entry per day
	for _, f := range e.Farms {
		assert.Len(t, f.Ledger(), 20)
	}
}

func TestEconomy_HarvestIsBoundedByFieldFactors(t *testing.T) {
	cfg := Config{Farms: 1, Fields: 10, MeanYield: 2, Demand: 5, StartPrice: 1}
	e := runCentral(t, cfg, 7, 1, 1)

	// each field yields MeanYield * [0.5, 1.5)
	h := e.Farms[0].Harvested()
	assert.GreaterOrEqual(t, h, 10*2*0.5)
	assert.Less(t, h, 10*2*1.5)
}

func TestEconomy_ReproducibleAcrossPoolSizes(t *testing.T) {
	// GIVEN the same seed run on one worker and on eight
	a := runCentral(t, DefaultConfig(), 99, 1, 15).Summarize()
	b := runCentral(t, DefaultConfig(), 99, 8, 15).Summarize()

	// THEN the harvest is identical and the rest agrees up to summation order
	assert.Equal(t, a.Harvested, b.Harvested)
	testutil.AssertFloat64Equal(t, "sold", a.TotalSold, b.TotalSold, 1e-9)
	testutil.AssertFloat64Equal(t, "cash", a.TotalCash, b.TotalCash, 1e-9)
}

func TestEconomy_CentralAndDistributedAgree(t *testing.T) {
	// GIVEN the same economy under both layouts
	cfg := DefaultConfig()
	central := runCentral(t, cfg, 5, 4, 10).Summarize()
	distributed := runDistributed(t, cfg, 5, 4, 10).Summarize()

	// THEN they produce the same run
	assert.Equal(t, central.Days, distributed.Days)
	assert.Equal(t, central.Harvested, distributed.Harvested)
	testutil.AssertFloat64Equal(t, "sold", central.TotalSold, distributed.TotalSold, 1e-9)
	testutil.AssertFloat64Equal(t, "cash", central.TotalCash, distributed.TotalCash, 1e-9)
	testutil.AssertFloat64Equal(t, "price", central.Price, distributed.Price, 1e-9)
}

func TestDistributed_UnknownAgentPanics(t *testing.T) {
	roster := sim.NewRoster(sim.RosterConfig{})
	defer roster.Close()
	d := NewDistributed(roster, sim.NewPool(1), nil)

	assert.Panics(t, func() {
		d.RegisterEffect("ghost", sim.EffectFunc(0, func() {}))
	})
}
