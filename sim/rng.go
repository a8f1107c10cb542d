package sim

import (
	"hash/fnv"
	"math/rand"
)

// SimulationKey identifies a reproducible run. Two runs with the same key and
// configuration draw identical random sequences per agent, whatever order the
// pool happens to run their bodies in.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// SubsystemMarket is the RNG stream of the market agent.
const SubsystemMarket = "market"

// SubsystemAgent returns the stream name owned by one agent.
func SubsystemAgent(id AgentID) string {
	return "agent/" + string(id)
}

// PartitionedRNG hands out one deterministic *rand.Rand per named stream,
// derived as masterSeed XOR fnv1a64(name).
//
// Thread-safety: NOT thread-safe. Streams are handed out during setup, and
// each stream is then used only from bodies of the agent that owns it.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:     key,
		streams: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the stream for name, creating it on first use.
// The same name always returns the same instance. Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.streams[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.streams[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
