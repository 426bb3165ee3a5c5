package conduit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/egaotan/rwa-conduit/conversion"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
)

const (
	SchemaInputV2     = "input/v2"
	SchemaInputV3     = "input/v3"
	SchemaOutputV3    = "output/v3"
	SchemaMultiSwapV1 = "multiswap/v1"
	SchemaSwapInputV2 = "swapinput/v2"
)

// State is the persisted shape of a conduit. Fields a schema does not carry stay zero.
type State struct {
	Schema    string             `json:"schema"`
	Id        solana.PublicKey   `json:"id"`
	Admins    []solana.PublicKey `json:"admins"`
	Pushers   []solana.PublicKey `json:"pushers"`
	Operators []solana.PublicKey `json:"operators,omitempty"`
	Whitelist []solana.PublicKey `json:"whitelist,omitempty"`
	Psm       solana.PublicKey   `json:"psm"`
	Gem       solana.PublicKey   `json:"gem"`
	Dai       solana.PublicKey   `json:"dai"`
	To        solana.PublicKey   `json:"to"`
	QuitTo    solana.PublicKey   `json:"quitTo"`
	Recovery  solana.PublicKey   `json:"recovery"`
	Recipient solana.PublicKey   `json:"recipient"`
	Pals      []solana.PublicKey `json:"pals,omitempty"`
	Hooked    solana.PublicKey   `json:"hooked"`
}

// InputStateV2 is the legacy input schema, from before quit destinations existed.
type InputStateV2 struct {
	Schema string             `json:"schema"`
	Id     solana.PublicKey   `json:"id"`
	Wards  []solana.PublicKey `json:"wards"`
	May    []solana.PublicKey `json:"may"`
	Psm    solana.PublicKey   `json:"psm"`
	Gem    solana.PublicKey   `json:"gem"`
	Dai    solana.PublicKey   `json:"dai"`
	To     solana.PublicKey   `json:"to"`
}

// MigrateInputV2 upgrades a legacy input state. The quit destination starts unset.
func MigrateInputV2(v2 *InputStateV2) (*State, error) {
	if v2.Schema != SchemaInputV2 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSchema, v2.Schema)
	}
	return &State{
		Schema:  SchemaInputV3,
		Id:      v2.Id,
		Admins:  append([]solana.PublicKey(nil), v2.Wards...),
		Pushers: append([]solana.PublicKey(nil), v2.May...),
		Psm:     v2.Psm,
		Gem:     v2.Gem,
		Dai:     v2.Dai,
		To:      v2.To,
	}, nil
}

// DecodeState parses a stored state, migrating legacy schemas on the way.
func DecodeState(data []byte) (*State, error) {
	var head struct {
		Schema string `json:"schema"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Schema {
	case SchemaInputV2:
		v2 := &InputStateV2{}
		if err := json.Unmarshal(data, v2); err != nil {
			return nil, err
		}
		return MigrateInputV2(v2)
	case SchemaInputV3, SchemaOutputV3, SchemaMultiSwapV1, SchemaSwapInputV2:
		st := &State{}
		if err := json.Unmarshal(data, st); err != nil {
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedSchema, head.Schema)
}

func (b *base) roleState(st *State) {
	st.Id = b.id
	st.Admins = b.roles.Members(Admin)
	st.Pushers = b.roles.Members(Pusher)
	st.Operators = b.roles.Members(Operator)
	st.Whitelist = b.roles.Members(Whitelist)
}

func (c *InputConduit) State() *State {
	st := &State{Schema: SchemaInputV3}
	c.roleState(st)
	c.lock.RLock()
	defer c.lock.RUnlock()
	st.Psm = c.psm.Id()
	st.Gem = c.gem.Id()
	st.Dai = c.dai.Id()
	st.To = c.to
	st.QuitTo = c.quitTo
	if c.vat != nil {
		st.Schema = SchemaSwapInputV2
		st.Recovery = c.recovery
	}
	return st
}

func (c *OutputConduit) State() *State {
	st := &State{Schema: SchemaOutputV3}
	c.roleState(st)
	c.lock.RLock()
	defer c.lock.RUnlock()
	st.Psm = c.psm.Id()
	st.Gem = c.gem.Id()
	st.Dai = c.dai.Id()
	st.QuitTo = c.quitTo
	st.Recipient, _ = armedTo(c.recipient)
	return st
}

func (c *MultiSwapOutputConduit) State() *State {
	st := &State{Schema: SchemaMultiSwapV1}
	c.roleState(st)
	for _, psm := range c.Pals() {
		st.Pals = append(st.Pals, psm.Id())
	}
	c.lock.RLock()
	defer c.lock.RUnlock()
	st.Dai = c.dai.Id()
	st.QuitTo = c.quitTo
	st.Recipient, _ = armedTo(c.recipient)
	if hooked, ok := c.binding.(Hooked); ok {
		st.Hooked = hooked.Psm.Id()
	}
	return st
}

// RestoreInput rebuilds an input conduit from st against the live stability module it
// names. Restoring emits no events.
func RestoreInput(ctx context.Context, be program.Executor, st *State, psm program.StabilityModule, cb Callback) (*InputConduit, error) {
	if st.Schema != SchemaInputV3 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSchema, st.Schema)
	}
	if psm.Id() != st.Psm {
		return nil, fmt.Errorf("%w: state names %s, got %s", ErrInvalidValue, st.Psm, psm.Id())
	}
	if psm.Gem().Id() != st.Gem {
		return nil, fmt.Errorf("%w: %s", ErrWrongGem, psm.Gem().Id())
	}
	if psm.Dai().Id() != st.Dai {
		return nil, fmt.Errorf("%w: %s", ErrWrongDai, psm.Dai().Id())
	}
	if program.IsZero(st.Id) || program.IsZero(st.To) {
		return nil, ErrInvalidTo
	}
	conv, err := conversion.NewConverter(psm.Gem().Decimals())
	if err != nil {
		return nil, err
	}
	c := &InputConduit{
		base:   newBase(be, st.Id, program.Input, cb, Pusher),
		psm:    psm,
		gem:    psm.Gem(),
		dai:    psm.Dai(),
		conv:   conv,
		to:     st.To,
		quitTo: st.QuitTo,
	}
	be.Register(c)
	err = c.exec(ctx, "restore", func(ctx context.Context) ([]*Event, error) {
		for _, who := range st.Admins {
			if _, err := c.insertRole(Admin, who); err != nil {
				return nil, err
			}
		}
		for _, who := range st.Pushers {
			if _, err := c.insertRole(Pusher, who); err != nil {
				return nil, err
			}
		}
		if err := c.gem.Approve(ctx, c.id, psm.GemJoin(), program.MaxUint256); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
