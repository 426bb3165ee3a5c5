package conduit

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
)

type EventKind string

const (
	EventRely            EventKind = "Rely"
	EventDeny            EventKind = "Deny"
	EventMate            EventKind = "Mate"
	EventHate            EventKind = "Hate"
	EventHope            EventKind = "Hope"
	EventNope            EventKind = "Nope"
	EventKiss            EventKind = "Kiss"
	EventDiss            EventKind = "Diss"
	EventFile            EventKind = "File"
	EventPick            EventKind = "Pick"
	EventPush            EventKind = "Push"
	EventQuit            EventKind = "Quit"
	EventYank            EventKind = "Yank"
	EventClap            EventKind = "Clap"
	EventSlap            EventKind = "Slap"
	EventHook            EventKind = "Hook"
	EventApproveRecovery EventKind = "ApproveRecovery"
)

// Event is the observable record of a state change. Fields that do not apply to the
// kind are left zero.
//
//	Rely..Diss       Target is the principal
//	File             Param names the key, Target the new address
//	Pick             Target is the recipient
//	Push             Target received the proceeds, Amount is gem, Wad is unit-coin
//	Quit, Yank       Target received Amount of Token
//	Clap..Hook       Pool is the stability module
//	ApproveRecovery  Target is the recovery address, Amount the allowance
type Event struct {
	Conduit solana.PublicKey
	Kind    EventKind
	Caller  solana.PublicKey
	Target  solana.PublicKey
	Pool    solana.PublicKey
	Token   solana.PublicKey
	Param   string
	Amount  *big.Int
	Wad     *big.Int
}

// Callback receives events after the operation that produced them has committed.
type Callback interface {
	OnEvent(ev *Event)
}

// Events fans one event out to several callbacks.
type Events []Callback

func (es Events) OnEvent(ev *Event) {
	for _, cb := range es {
		cb.OnEvent(ev)
	}
}
