package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const (
	KindInput     = "input"
	KindSwapInput = "swapinput"
	KindOutput    = "output"
	KindMultiSwap = "multiswap"
)

const (
	DriverMysql  = "mysql"
	DriverSqlite = "sqlite"
)

var (
	LogPath    = "./logs/"
	ConfigFile = "./config/config.json"
)

var (
	ErrInvalidConfig = errors.New("config: invalid")
)

type Token struct {
	Key     solana.PublicKey `json:"key"`
	Symbol  string           `json:"symbol"`
	Name    string           `json:"name"`
	Decimal uint8            `json:"decimal"`
	Price   string           `json:"price"`
}

// Psm is a stability module over gem and dai, named by token symbol. Fees are
// fractions ("0.001"), line is whole dai and empty for no ceiling.
type Psm struct {
	Name    string           `json:"name"`
	Key     solana.PublicKey `json:"key"`
	GemJoin solana.PublicKey `json:"gem_join"`
	Gem     string           `json:"gem"`
	Dai     string           `json:"dai"`
	Tin     string           `json:"tin"`
	Tout    string           `json:"tout"`
	Line    string           `json:"line"`
	Reserve string           `json:"reserve"`
}

type Conduit struct {
	Name      string             `json:"name"`
	Kind      string             `json:"kind"`
	Key       solana.PublicKey   `json:"key"`
	Psm       string             `json:"psm"`
	Pals      []string           `json:"pals"`
	Dai       string             `json:"dai"`
	To        solana.PublicKey   `json:"to"`
	QuitTo    solana.PublicKey   `json:"quit_to"`
	Recovery  solana.PublicKey   `json:"recovery"`
	Pushers   []solana.PublicKey `json:"pushers"`
	Operators []solana.PublicKey `json:"operators"`
	Whitelist []solana.PublicKey `json:"whitelist"`
}

type Settlement struct {
	Key      solana.PublicKey `json:"key"`
	Gem      string           `json:"gem"`
	Currency string           `json:"currency"`
	Price    string           `json:"price"`
	Pot      string           `json:"pot"`
}

type Config struct {
	Tokens        []*Token         `json:"tokens"`
	Psms          []*Psm           `json:"psms"`
	Conduits      []*Conduit       `json:"conduits"`
	Settlement    *Settlement      `json:"settlement"`
	Admin         solana.PublicKey `json:"admin"`
	Keeper        solana.PublicKey `json:"keeper"`
	Vat           solana.PublicKey `json:"vat"`
	Listen        string           `json:"listen"`
	MaxConns      int              `json:"max_conns"`
	DingUrl       string           `json:"ding-url"`
	DBDriver      string           `json:"db_driver"`
	DBUrl         string           `json:"db_url"`
	DBScheme      string           `json:"db_scheme"`
	DBUser        string           `json:"db_user"`
	DBPasswd      string           `json:"db_passwd"`
	DBPath        string           `json:"db_path"`
	LogPath       string           `json:"log_path"`
	BalanceTicker uint64           `json:"balance_ticker"`
	StateTicker   uint64           `json:"state_ticker"`
	Debug         bool             `json:"debug"`
}

func Load(path string) (*Config, error) {
	infoJson, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	err = json.Unmarshal(infoJson, &cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) Token(symbol string) *Token {
	for _, token := range cfg.Tokens {
		if token.Symbol == symbol {
			return token
		}
	}
	return nil
}

func (cfg *Config) Psm(name string) *Psm {
	for _, psm := range cfg.Psms {
		if psm.Name == name {
			return psm
		}
	}
	return nil
}

// Validate checks that every reference resolves and every number parses.
func (cfg *Config) Validate() error {
	if cfg.Admin.IsZero() {
		return fmt.Errorf("%w: admin is unset", ErrInvalidConfig)
	}
	switch cfg.DBDriver {
	case "", DriverMysql, DriverSqlite:
	default:
		return fmt.Errorf("%w: db driver %q", ErrInvalidConfig, cfg.DBDriver)
	}
	symbols := make(map[string]bool)
	for _, token := range cfg.Tokens {
		if token.Symbol == "" || symbols[token.Symbol] {
			return fmt.Errorf("%w: token symbol %q", ErrInvalidConfig, token.Symbol)
		}
		symbols[token.Symbol] = true
		if token.Price != "" {
			if _, err := decimal.NewFromString(token.Price); err != nil {
				return fmt.Errorf("%w: token %s price: %v", ErrInvalidConfig, token.Symbol, err)
			}
		}
	}
	names := make(map[string]bool)
	for _, psm := range cfg.Psms {
		if psm.Name == "" || names[psm.Name] {
			return fmt.Errorf("%w: psm name %q", ErrInvalidConfig, psm.Name)
		}
		names[psm.Name] = true
		if !symbols[psm.Gem] || !symbols[psm.Dai] {
			return fmt.Errorf("%w: psm %s tokens %s/%s", ErrInvalidConfig, psm.Name, psm.Gem, psm.Dai)
		}
		for _, fee := range []string{psm.Tin, psm.Tout, psm.Line} {
			if _, err := ParseWad(fee); err != nil {
				return fmt.Errorf("%w: psm %s: %v", ErrInvalidConfig, psm.Name, err)
			}
		}
		if _, err := ParseAmount(psm.Reserve, cfg.Token(psm.Gem).Decimal); err != nil {
			return fmt.Errorf("%w: psm %s reserve: %v", ErrInvalidConfig, psm.Name, err)
		}
	}
	conduits := make(map[string]bool)
	for _, c := range cfg.Conduits {
		if c.Name == "" || conduits[c.Name] {
			return fmt.Errorf("%w: conduit name %q", ErrInvalidConfig, c.Name)
		}
		conduits[c.Name] = true
		switch c.Kind {
		case KindInput, KindSwapInput:
			if c.To.IsZero() {
				return fmt.Errorf("%w: conduit %s has no destination", ErrInvalidConfig, c.Name)
			}
			fallthrough
		case KindOutput:
			if !names[c.Psm] {
				return fmt.Errorf("%w: conduit %s psm %q", ErrInvalidConfig, c.Name, c.Psm)
			}
		case KindMultiSwap:
			if !symbols[c.Dai] {
				return fmt.Errorf("%w: conduit %s dai %q", ErrInvalidConfig, c.Name, c.Dai)
			}
			for _, pal := range c.Pals {
				if !names[pal] {
					return fmt.Errorf("%w: conduit %s pal %q", ErrInvalidConfig, c.Name, pal)
				}
			}
		default:
			return fmt.Errorf("%w: conduit %s kind %q", ErrInvalidConfig, c.Name, c.Kind)
		}
	}
	if s := cfg.Settlement; s != nil {
		if !symbols[s.Gem] || !symbols[s.Currency] {
			return fmt.Errorf("%w: settlement tokens %s/%s", ErrInvalidConfig, s.Gem, s.Currency)
		}
		price, err := ParseWad(s.Price)
		if err != nil || price == nil || price.Sign() <= 0 {
			return fmt.Errorf("%w: settlement price %q", ErrInvalidConfig, s.Price)
		}
		if _, err := ParseAmount(s.Pot, cfg.Token(s.Currency).Decimal); err != nil {
			return fmt.Errorf("%w: settlement pot: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// ParseWad reads a decimal string as an 18-decimal fixed point number. The empty
// string is nil.
func ParseWad(s string) (*big.Int, error) {
	return ParseAmount(s, 18)
}

// ParseAmount reads whole units as base units of a token with decimals. The empty
// string is nil.
func ParseAmount(s string, decimals uint8) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative value %s", s)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%s has more than %d decimals", s, decimals)
	}
	return scaled.BigInt(), nil
}
