// Package action defines the shopping list mutations the assistant and API
// callers can request, and validates raw input into them.
//
// An Action is one of Add, Update, Delete or Complete. Raw is the untyped wire
// shape; Parse narrows it once at the boundary so the executor never has to
// look at optional fields again.
package action

// Kind is the discriminator of an action.
type Kind string

const (
	KindAdd      Kind = "add"
	KindUpdate   Kind = "update"
	KindDelete   Kind = "delete"
	KindComplete Kind = "complete"
)

// Action is a validated list mutation.
type Action interface {
	Kind() Kind
	ItemName() string
	sealed()
}

// Add increments an existing item (matched ignoring case) or creates it.
type Add struct {
	Name   string
	Amount int
}

// Update sets the absolute amount of an existing item.
type Update struct {
	Name   string
	Amount int
}

// Delete removes an existing item.
type Delete struct {
	Name string
}

// Complete flips the completed flag of an existing item.
type Complete struct {
	Name string
}

func (Add) Kind() Kind      { return KindAdd }
func (Update) Kind() Kind   { return KindUpdate }
func (Delete) Kind() Kind   { return KindDelete }
func (Complete) Kind() Kind { return KindComplete }

func (a Add) ItemName() string      { return a.Name }
func (a Update) ItemName() string   { return a.Name }
func (a Delete) ItemName() string   { return a.Name }
func (a Complete) ItemName() string { return a.Name }

func (Add) sealed()      {}
func (Update) sealed()   {}
func (Delete) sealed()   {}
func (Complete) sealed() {}

// Encode converts a to its wire shape.
func Encode(a Action) Raw {
	raw := Raw{Action: string(a.Kind()), Name: a.ItemName()}
	switch v := a.(type) {
	case Add:
		raw.Amount = &v.Amount
	case Update:
		raw.Amount = &v.Amount
	}
	return raw
}

// EncodeAll converts every action to its wire shape.
func EncodeAll(actions []Action) []Raw {
	out := make([]Raw, len(actions))
	for i, a := range actions {
		out[i] = Encode(a)
	}
	return out
}
