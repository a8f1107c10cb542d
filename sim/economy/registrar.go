package economy

import (
	"fmt"

	"github.com/daysim/daysim/sim"
)

// Registrar is the part of a coordinator an economy agent talks to. It hides
// whether work is held centrally or by per-agent servers.
type Registrar interface {
	RegisterAction(owner sim.AgentID, phase sim.Phase, action sim.Action)
	RegisterEffect(owner sim.AgentID, effect sim.Effect)
}

// Central registers everything on one Schedule.
func Central(s *sim.Schedule) Registrar {
	return central{s: s}
}

type central struct {
	s *sim.Schedule
}

func (c central) RegisterAction(_ sim.AgentID, phase sim.Phase, action sim.Action) {
	c.s.RegisterRecurringAction(phase, action)
}

func (c central) RegisterEffect(owner sim.AgentID, effect sim.Effect) {
	c.s.RegisterEffect(effect, owner)
}

// Distributed gives each agent its own AgentServer attached to a Roster.
// Add every agent before the run; the server map is read-only afterwards.
type Distributed struct {
	roster  *sim.Roster
	pool    *sim.Pool
	metrics *sim.Metrics
	servers map[sim.AgentID]*sim.AgentServer
}

// NewDistributed creates an empty set of servers reporting to roster.
func NewDistributed(roster *sim.Roster, pool *sim.Pool, metrics *sim.Metrics) *Distributed {
	return &Distributed{
		roster:  roster,
		pool:    pool,
		metrics: metrics,
		servers: make(map[sim.AgentID]*sim.AgentServer),
	}
}

// Add creates and starts the server of id. Adding an id twice is a no-op.
func (d *Distributed) Add(id sim.AgentID) *sim.AgentServer {
	if srv, ok := d.servers[id]; ok {
		return srv
	}
	srv := sim.NewAgentServer(id, d.pool, d.metrics)
	srv.Start(d.roster)
	d.servers[id] = srv
	return srv
}

// TurnOff stops every server.
func (d *Distributed) TurnOff() {
	for _, srv := range d.servers {
		srv.TurnOff()
	}
}

func (d *Distributed) server(id sim.AgentID) *sim.AgentServer {
	srv, ok := d.servers[id]
	if !ok {
		panic(fmt.Sprintf("economy: agent %q was never added", id))
	}
	return srv
}

func (d *Distributed) RegisterAction(owner sim.AgentID, phase sim.Phase, action sim.Action) {
	d.server(owner).RegisterAction(phase, action)
}

func (d *Distributed) RegisterEffect(owner sim.AgentID, effect sim.Effect) {
	d.server(owner).RegisterEffect(effect)
}
