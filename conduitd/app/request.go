package app

import (
	"fmt"
	"math/big"

	"github.com/egaotan/rwa-conduit/conduit"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
)

type CallerRequest struct {
	Caller solana.PublicKey `json:"caller"`
}

// AmountRequest carries a base-unit amount; an empty amount means the whole balance.
type AmountRequest struct {
	Caller solana.PublicKey `json:"caller"`
	Amount string           `json:"amount"`
}

type PickRequest struct {
	Caller solana.PublicKey `json:"caller"`
	Who    solana.PublicKey `json:"who"`
}

type HookRequest struct {
	Caller solana.PublicKey `json:"caller"`
	Psm    string           `json:"psm"`
}

type FileRequest struct {
	Caller solana.PublicKey `json:"caller"`
	What   string           `json:"what"`
	Value  string           `json:"value"`
}

type RoleRequest struct {
	Caller solana.PublicKey `json:"caller"`
	Role   conduit.Role     `json:"role"`
	Who    solana.PublicKey `json:"who"`
}

type TransferRequest struct {
	From   solana.PublicKey `json:"from"`
	To     solana.PublicKey `json:"to"`
	Amount string           `json:"amount"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AmountResponse struct {
	Amount string `json:"amount"`
}

type ConduitInfo struct {
	Name  string         `json:"name"`
	Kind  string         `json:"kind"`
	Id    string         `json:"id"`
	State *conduit.State `json:"state"`
}

type TokenInfo struct {
	Key     string `json:"key"`
	Symbol  string `json:"symbol"`
	Decimal uint8  `json:"decimal"`
	Supply  string `json:"supply"`
}

type SettlementInfo struct {
	Id    string `json:"id"`
	Price string `json:"price"`
	Pot   string `json:"pot"`
	Live  bool   `json:"live"`
}

func buildConduitInfo(node *Node) *ConduitInfo {
	return &ConduitInfo{
		Name:  node.Name,
		Kind:  node.Conduit.Kind(),
		Id:    node.Conduit.Id().String(),
		State: node.Conduit.State(),
	}
}

// parseAmount reads a base-unit amount. The empty string is nil.
func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 || v.Cmp(program.MaxUint256) > 0 {
		return nil, fmt.Errorf("amount %q is invalid", s)
	}
	return v, nil
}
