package conduit

import (
	"context"
	"fmt"
	"math/big"

	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
)

// SwapInputConduit is an input conduit that freezes with the accounting ledger. After
// shutdown its gem can only leave through the recovery address.
type SwapInputConduit struct {
	*InputConduit
}

func NewSwapInputConduit(ctx context.Context, be program.Executor, id solana.PublicKey, deployer solana.PublicKey, psm program.StabilityModule, to solana.PublicKey, vat program.Accounting, cb Callback) (*SwapInputConduit, error) {
	if vat == nil {
		return nil, fmt.Errorf("%w: accounting ledger required", ErrInvalidAddress)
	}
	c, err := newInputConduit(ctx, be, id, program.SwapInput, deployer, psm, to, vat, cb)
	if err != nil {
		return nil, err
	}
	return &SwapInputConduit{InputConduit: c}, nil
}

func (c *SwapInputConduit) Recovery() solana.PublicKey {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.recovery
}

func (c *SwapInputConduit) Live() bool {
	return c.vat.Live()
}

// ApproveRecovery grants the recovery address an unlimited gem allowance. Admins may call
// it at any time; after shutdown anyone may.
func (c *SwapInputConduit) ApproveRecovery(ctx context.Context, caller solana.PublicKey) error {
	return c.exec(ctx, "approveRecovery", func(ctx context.Context) ([]*Event, error) {
		if c.vat.Live() && !c.roles.Contains(Admin, caller) {
			return nil, fmt.Errorf("%w: %s", ErrStillLive, caller)
		}
		recovery := c.Recovery()
		if program.IsZero(recovery) {
			return nil, ErrRecoveryUnset
		}
		if err := c.gem.Approve(ctx, c.id, recovery, program.MaxUint256); err != nil {
			return nil, err
		}
		ev := c.event(EventApproveRecovery, caller)
		ev.Target = recovery
		ev.Token = c.gem.Id()
		ev.Amount = new(big.Int).Set(program.MaxUint256)
		return []*Event{ev}, nil
	})
}
