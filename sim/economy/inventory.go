// Package economy holds the agent-owned state that action and effect bodies
// mutate, and a small farm/market economy that exercises the scheduler.
//
// Nothing in this package is goroutine-safe. An agent's state is touched only
// from that agent's own effects, which the scheduler runs sequentially, or
// read from its actions while no effect of that agent can run.
package economy

import "fmt"

// GoodType enumerates the goods an Owner can hold.
type GoodType int

const (
	Cash GoodType = iota
	Food
	People
	numGoods
)

var goodNames = [numGoods]string{Cash: "cash", Food: "food", People: "people"}

func (g GoodType) String() string {
	if g < 0 || g >= numGoods {
		return fmt.Sprintf("good(%d)", int(g))
	}
	return goodNames[g]
}

// Owner is anything that holds a stock of goods.
type Owner interface {
	ReceiveOrProduce(g GoodType, amount float64)
	Consume(g GoodType, amount float64)
	HasHowMany(g GoodType) float64
	ResetToZero(g GoodType)
}

// Inventory is a plain goods ledger. Negative stocks are allowed.
type Inventory struct {
	goods [numGoods]float64
}

var _ Owner = (*Inventory)(nil)

func (inv *Inventory) ReceiveOrProduce(g GoodType, amount float64) {
	inv.goods[g] += amount
}

func (inv *Inventory) Consume(g GoodType, amount float64) {
	inv.goods[g] -= amount
}

func (inv *Inventory) HasHowMany(g GoodType) float64 {
	return inv.goods[g]
}

func (inv *Inventory) ResetToZero(g GoodType) {
	inv.goods[g] = 0
}
