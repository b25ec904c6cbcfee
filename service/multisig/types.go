package multisig

import (
	"fmt"
	"strings"
	"time"
)

// TypeTag identifies the kind of proposal a transaction carries.
type TypeTag string

const (
	TypeTokenSend       TypeTag = "TOKEN_SEND"
	TypeNFTSend         TypeTag = "NFT_SEND"
	TypeMemberAdd       TypeTag = "MEMBER_ADD"
	TypeMemberRemove    TypeTag = "MEMBER_REMOVE"
	TypePermissionEdit  TypeTag = "MEMBER_PERMISSION_EDIT"
	TypeThresholdChange TypeTag = "THRESHOLD_CHANGE"
	TypeSmartTokenLock  TypeTag = "SMART_TOKEN_LOCK"
)

// typeAliases maps the indexer's lower-case names onto the contract tags.
var typeAliases = map[string]TypeTag{
	"token_send":       TypeTokenSend,
	"nft_send":         TypeNFTSend,
	"member_add":       TypeMemberAdd,
	"member_remove":    TypeMemberRemove,
	"permission_edit":  TypePermissionEdit,
	"threshold_change": TypeThresholdChange,
	"smart_token_lock": TypeSmartTokenLock,
}

// ParseTypeTag parses a type tag, accepting any casing and the indexer aliases.
// Unrecognized values are returned as-is together with an error so callers can
// still carry forward-compatible tags.
func ParseTypeTag(s string) (TypeTag, error) {
	trimmed := strings.TrimSpace(s)
	upper := TypeTag(strings.ToUpper(trimmed))
	if _, ok := registry[upper]; ok {
		return upper, nil
	}
	if tag, ok := typeAliases[strings.ToLower(trimmed)]; ok {
		return tag, nil
	}
	return TypeTag(trimmed), fmt.Errorf("unknown transaction type %q", s)
}

// Known reports whether the tag is part of the registry.
func (t TypeTag) Known() bool {
	_, ok := registry[t]
	return ok
}

// Status is the consensus state of a proposal.
type Status string

const (
	StatusInitiated Status = "Initiated"
	StatusApproved  Status = "Approved"
	StatusExecuted  Status = "Executed"
	StatusRejected  Status = "Rejected"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusInitiated, StatusApproved, StatusExecuted, StatusRejected}

// ParseStatus parses a status name. "Pending" is accepted as an alias of Initiated.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "initiated", "pending":
		return StatusInitiated, nil
	case "approved":
		return StatusApproved, nil
	case "executed":
		return StatusExecuted, nil
	case "rejected":
		return StatusRejected, nil
	}
	return "", fmt.Errorf("unknown transaction status %q", s)
}

// Terminal reports whether no further transition can happen from s.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusRejected
}

// RawTransaction is a proposal as decoded from the chain. Numeric fields are
// kept in their decoded string form and parsed during correlation.
type RawTransaction struct {
	ID           string   `json:"id"`
	Type         TypeTag  `json:"tx_type"`
	Status       string   `json:"tx_status,omitempty"` // cached by the indexer, never trusted
	Proposer     string   `json:"proposer"`
	Executor     string   `json:"executor,omitempty"`
	ApprovedBy   []string `json:"approved"`
	RejectedBy   []string `json:"rejected"`
	DateCreated  string   `json:"date_created"`
	DateExecuted string   `json:"date_executed,omitempty"`
	Executed     bool     `json:"executed,omitempty"`
}

// Transaction is a raw record correlated with its payload. It is built fresh on
// every reconciliation and never mutated afterwards.
type Transaction struct {
	ID         string     `json:"id"`
	Type       TypeTag    `json:"type"`
	Proposer   string     `json:"proposer"`
	Executor   string     `json:"executor,omitempty"`
	ApprovedBy []string   `json:"approved_by"`
	RejectedBy []string   `json:"rejected_by"`
	Executed   bool       `json:"executed"`
	CreatedAt  time.Time  `json:"created_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
	Payload    Payload    `json:"payload,omitempty"`
	// Position is the index of Payload within its type's list, -1 when no payload was attached.
	Position int `json:"position"`
}

// Member is an entry of the account's member directory.
type Member struct {
	Address     string `json:"address"`
	Name        string `json:"name,omitempty"`
	Permissions uint8  `json:"permissions,omitempty"`
}

// Token describes a fungible token known to the account.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// AccountContext is the read-only account state the pipeline evaluates against.
type AccountContext struct {
	Address   string   `json:"address"`
	Threshold int      `json:"threshold"`
	Members   []Member `json:"members"`
	Tokens    []Token  `json:"tokens,omitempty"`
}

// member returns the directory entry for addr, if any.
func (c AccountContext) member(addr string) (Member, bool) {
	key := NormalizeAddress(addr)
	for _, m := range c.Members {
		if NormalizeAddress(m.Address) == key {
			return m, true
		}
	}
	return Member{}, false
}

// token returns the token metadata for addr, if any.
func (c AccountContext) token(addr string) (Token, bool) {
	key := NormalizeAddress(addr)
	for _, t := range c.Tokens {
		if NormalizeAddress(t.Address) == key {
			return t, true
		}
	}
	return Token{}, false
}

// Inputs are the lists a reconciliation runs over. A nil Raw slice or a missing
// entry in Payloads for a known type means that source never resolved.
type Inputs struct {
	Raw      []RawTransaction      `json:"transactions"`
	Payloads map[TypeTag][]Payload `json:"payloads"`
}
