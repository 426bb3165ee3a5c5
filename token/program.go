// Package token is an in-memory, journaled multi-token ledger. Every mutation runs inside
// the backend's atomic scope, so a failed operation leaves balances untouched.
package token

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/egaotan/rwa-conduit/backend"
	"github.com/egaotan/rwa-conduit/conversion"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient-balance")
	ErrInsufficientAllowance = errors.New("token: insufficient-allowance")
	ErrInvalidAmount         = errors.New("token: invalid-amount")
	ErrInvalidAddress        = errors.New("token: invalid-address")
	ErrTokenExists           = errors.New("token: already exists")
)

type Program struct {
	lock       sync.RWMutex
	be         program.Executor
	journal    *backend.Journal
	tokens     map[solana.PublicKey]*KeyedToken
	users      map[solana.PublicKey]map[solana.PublicKey]*big.Int
	allowances map[solana.PublicKey]map[allowanceKey]*big.Int
}

func NewProgram(be program.Executor) *Program {
	p := &Program{
		be:         be,
		journal:    backend.NewJournal(),
		tokens:     make(map[solana.PublicKey]*KeyedToken),
		users:      make(map[solana.PublicKey]map[solana.PublicKey]*big.Int),
		allowances: make(map[solana.PublicKey]map[allowanceKey]*big.Int),
	}
	be.Register(p)
	return p
}

func (p *Program) Name() string {
	return "token"
}

func (p *Program) Snapshot() int {
	return p.journal.Snapshot()
}

func (p *Program) RevertToSnapshot(id int) {
	p.journal.RevertToSnapshot(id)
}

func (p *Program) Commit() {
	p.journal.Commit()
}

// CreateToken registers a new mint. Creation is not journaled.
func (p *Program) CreateToken(key solana.PublicKey, symbol string, decimals uint8) (*Token, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if _, ok := p.tokens[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenExists, key)
	}
	p.tokens[key] = &KeyedToken{
		Key: key,
		TokenLayout: TokenLayout{
			Symbol:   symbol,
			Decimals: decimals,
			Supply:   new(big.Int),
		},
	}
	p.users[key] = make(map[solana.PublicKey]*big.Int)
	p.allowances[key] = make(map[allowanceKey]*big.Int)
	return &Token{p: p, key: key}, nil
}

func (p *Program) GetToken(key solana.PublicKey) *Token {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if _, ok := p.tokens[key]; !ok {
		return nil
	}
	return &Token{p: p, key: key}
}

func (p *Program) Tokens() []*Token {
	p.lock.RLock()
	defer p.lock.RUnlock()
	tokens := make([]*Token, 0, len(p.tokens))
	for key := range p.tokens {
		tokens = append(tokens, &Token{p: p, key: key})
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].key.String() < tokens[j].key.String()
	})
	return tokens
}

// Balances lists the non-zero holders of a token.
func (p *Program) Balances(mint solana.PublicKey) []*UserBalance {
	p.lock.RLock()
	defer p.lock.RUnlock()
	balances := make([]*UserBalance, 0)
	for owner, amount := range p.users[mint] {
		if amount.Sign() == 0 {
			continue
		}
		balances = append(balances, &UserBalance{Mint: mint, Owner: owner, Amount: new(big.Int).Set(amount)})
	}
	sort.Slice(balances, func(i, j int) bool {
		return balances[i].Owner.String() < balances[j].Owner.String()
	})
	return balances
}

func (p *Program) balance(mint solana.PublicKey, owner solana.PublicKey) *big.Int {
	amount, ok := p.users[mint][owner]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(amount)
}

func (p *Program) allowance(mint solana.PublicKey, owner solana.PublicKey, spender solana.PublicKey) *big.Int {
	amount, ok := p.allowances[mint][allowanceKey{owner: owner, spender: spender}]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(amount)
}

// setBalance must be called with the lock held.
func (p *Program) setBalance(mint solana.PublicKey, owner solana.PublicKey, amount *big.Int) {
	prev, existed := p.users[mint][owner]
	p.users[mint][owner] = amount
	p.journal.Append(func() {
		p.lock.Lock()
		defer p.lock.Unlock()
		if existed {
			p.users[mint][owner] = prev
		} else {
			delete(p.users[mint], owner)
		}
	})
}

func (p *Program) setAllowance(mint solana.PublicKey, owner solana.PublicKey, spender solana.PublicKey, amount *big.Int) {
	key := allowanceKey{owner: owner, spender: spender}
	prev, existed := p.allowances[mint][key]
	p.allowances[mint][key] = amount
	p.journal.Append(func() {
		p.lock.Lock()
		defer p.lock.Unlock()
		if existed {
			p.allowances[mint][key] = prev
		} else {
			delete(p.allowances[mint], key)
		}
	})
}

func (p *Program) setSupply(mint solana.PublicKey, supply *big.Int) {
	keyed := p.tokens[mint]
	prev := keyed.Supply
	keyed.Supply = supply
	p.journal.Append(func() {
		p.lock.Lock()
		defer p.lock.Unlock()
		keyed.Supply = prev
	})
}

func (p *Program) move(mint solana.PublicKey, from solana.PublicKey, to solana.PublicKey, amount *big.Int) error {
	if program.IsZero(to) {
		return fmt.Errorf("%w: transfer to the zero address", ErrInvalidAddress)
	}
	balance := p.balance(mint, from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s %s, need %s", ErrInsufficientBalance, from, balance, p.tokens[mint].Symbol, amount)
	}
	if from == to {
		return nil
	}
	p.setBalance(mint, from, new(big.Int).Sub(balance, amount))
	credited, err := conversion.Add(p.balance(mint, to), amount)
	if err != nil {
		return err
	}
	p.setBalance(mint, to, credited)
	return nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 || amount.Cmp(program.MaxUint256) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return nil
}
