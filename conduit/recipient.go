package conduit

import (
	"github.com/egaotan/rwa-conduit/conversion"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
)

// Recipient is the one-shot destination of the next output push.
type Recipient interface {
	isRecipient()
}

type Unarmed struct{}

type Armed struct {
	To solana.PublicKey
}

func (Unarmed) isRecipient() {}
func (Armed) isRecipient()   {}

func armedTo(r Recipient) (solana.PublicKey, bool) {
	if a, ok := r.(Armed); ok {
		return a.To, true
	}
	return solana.PublicKey{}, false
}

// Binding is the stability module a multi-swap conduit will use for its next push.
type Binding interface {
	isBinding()
}

type Unhooked struct{}

type Hooked struct {
	Psm  program.StabilityModule
	Conv *conversion.Converter
}

func (Unhooked) isBinding() {}
func (Hooked) isBinding()   {}
