package env

import (
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Env is the token metadata known to the daemon, used for display and notices.
type Env struct {
	lock   sync.RWMutex
	log    *zap.SugaredLogger
	tokens map[solana.PublicKey]*Token
}

func NewEnv(log *zap.SugaredLogger) *Env {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	env := &Env{
		log:    log,
		tokens: make(map[solana.PublicKey]*Token),
	}
	return env
}

// LoadTokens merges a JSON object of mint to metadata from path.
func (e *Env) LoadTokens(path string) error {
	infoJson, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tokens := make(map[solana.PublicKey]*Token)
	err = json.Unmarshal(infoJson, &tokens)
	if err != nil {
		return err
	}
	for key, token := range tokens {
		e.Register(key, token)
	}
	e.log.Infof("loaded %d tokens from %s", len(tokens), path)
	return nil
}

func (e *Env) Register(key solana.PublicKey, token *Token) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.tokens[key] = token
}

func (e *Env) Token(key solana.PublicKey) *Token {
	e.lock.RLock()
	defer e.lock.RUnlock()
	if item, ok := e.tokens[key]; ok {
		return item
	}
	return nil
}

func (e *Env) Tokens() []solana.PublicKey {
	e.lock.RLock()
	keys := make([]solana.PublicKey, 0, len(e.tokens))
	for key := range e.tokens {
		keys = append(keys, key)
	}
	e.lock.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Describe renders amount of the token for humans, falling back to the raw amount and
// mint when the token is unknown.
func (e *Env) Describe(key solana.PublicKey, amount interface{ String() string }) string {
	token := e.Token(key)
	if token == nil {
		return amount.String() + " " + key.String()
	}
	return token.Format(amount)
}
