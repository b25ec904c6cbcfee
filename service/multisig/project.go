package multisig

import (
	"fmt"
	"math/big"
)

// Record is the display-ready projection of a transaction.
type Record struct {
	Transaction  Transaction `json:"transaction"`
	Status       Status      `json:"status"`
	CanExecute   bool        `json:"can_execute"`
	Approvals    int         `json:"approvals"`
	Required     int         `json:"required"`
	Title        string      `json:"title"`
	Subtitle     string      `json:"subtitle"`
	Amount       string      `json:"amount,omitempty"`
	Token        string      `json:"token,omitempty"`
	TokenAddress string      `json:"token_address,omitempty"`
	Recipient    string      `json:"recipient,omitempty"`
	// RecipientAddress is the untruncated recipient, or the member a
	// membership change targets.
	RecipientAddress string   `json:"recipient_address,omitempty"`
	Permissions      []string `json:"permissions,omitempty"`
	ProposerName     string   `json:"proposer_name,omitempty"`
	// Involved holds the normalized addresses taking part in the proposal.
	Involved []string `json:"involved"`
}

// ID returns the transaction id.
func (r Record) ID() string { return r.Transaction.ID }

// Projector turns transactions into display records. Both fields are used
// as given, zero included; NewProjector returns the defaults.
type Projector struct {
	// DefaultDecimals applies to tokens absent from the token directory.
	DefaultDecimals int
	// FractionDigits caps rendered fractional digits. Negative means zero.
	FractionDigits int
}

// NewProjector returns a projector with DefaultTokenDecimals and
// DefaultFractionDigits.
func NewProjector() Projector {
	return Projector{DefaultDecimals: DefaultTokenDecimals, FractionDigits: DefaultFractionDigits}
}

// Project projects tx with default formatting options.
func Project(tx Transaction, ctx AccountContext) (Record, []Diagnostic) {
	return NewProjector().Project(tx, ctx)
}

// Project builds the display record for tx. Unknown payloads produce a generic
// record instead of failing.
func (p Projector) Project(tx Transaction, ctx AccountContext) (Record, []Diagnostic) {
	var diags diagnostics
	consensus := tx.Evaluate(ctx.Threshold)

	rec := Record{
		Transaction: tx,
		Status:      consensus.Status,
		CanExecute:  consensus.CanExecute,
		Approvals:   countDistinct(tx.ApprovedBy),
		Required:    ctx.Threshold,
	}
	if m, ok := ctx.member(tx.Proposer); ok {
		rec.ProposerName = m.Name
	}

	var target string
	switch payload := tx.Payload.(type) {
	case TokenSend:
		amount := p.amount(payload.Token, payload.Amount, ctx, tx, &diags)
		rec.Title = titleOf(TypeTokenSend)
		rec.Amount = amount
		rec.Token, rec.TokenAddress = p.tokenLabel(payload.Token, ctx), payload.Token
		rec.Subtitle = fmt.Sprintf("Send %s %s", amount, tokenNoun(payload.Token, ctx))
		target = payload.Recipient
	case NFTSend:
		id := p.integer(payload.TokenID, "token_id", tx, &diags)
		rec.Title = titleOf(TypeNFTSend)
		rec.Subtitle = fmt.Sprintf("Send NFT #%s", id)
		rec.TokenAddress = payload.Contract
		rec.Token = FormatAddress(payload.Contract)
		target = payload.Recipient
	case MemberAdd:
		rec.Title = titleOf(TypeMemberAdd)
		rec.Subtitle = fmt.Sprintf("Add %s as member", FormatAddress(payload.Member))
		rec.Permissions = p.permissions(payload.Permissions, "permissions", tx, &diags)
		target = payload.Member
	case MemberRemove:
		rec.Title = titleOf(TypeMemberRemove)
		rec.Subtitle = fmt.Sprintf("Remove %s", FormatAddress(payload.Member))
		target = payload.Member
	case PermissionEdit:
		rec.Title = titleOf(TypePermissionEdit)
		rec.Subtitle = fmt.Sprintf("Update permissions for %s", FormatAddress(payload.Member))
		rec.Permissions = p.permissions(payload.NewPermissions, "new_permissions", tx, &diags)
		target = payload.Member
	case ThresholdChange:
		n := p.integer(payload.NewThreshold, "new_threshold", tx, &diags)
		rec.Title = titleOf(TypeThresholdChange)
		rec.Subtitle = fmt.Sprintf("Set threshold to %s", n)
		rec.Amount = n
	case SmartTokenLock:
		amount := p.amount(payload.Token, payload.Amount, ctx, tx, &diags)
		duration := p.integer(payload.Duration, "duration", tx, &diags)
		rec.Title = titleOf(TypeSmartTokenLock)
		rec.Subtitle = fmt.Sprintf("Lock %s tokens for %s seconds", amount, duration)
		rec.Amount = amount
		rec.Token, rec.TokenAddress = p.tokenLabel(payload.Token, ctx), payload.Token
	default:
		rec.Title = "Unknown Transaction"
		rec.Subtitle = "Transaction type not recognized"
	}

	if target != "" {
		rec.Recipient = FormatAddress(target)
		rec.RecipientAddress = target
	}
	rec.Involved = involved(tx, target)

	return rec, diags
}

func (p Projector) amount(token, raw string, ctx AccountContext, tx Transaction, diags *diagnostics) string {
	v, err := ParseInteger(raw)
	if err != nil {
		diags.malformed(tx.ID, tx.Type, "amount", raw, err)
		v = new(big.Int)
	}
	decimals := p.DefaultDecimals
	if t, ok := ctx.token(token); ok {
		decimals = t.Decimals
	}
	return FormatAmount(v, decimals, max(p.FractionDigits, 0))
}

func (p Projector) integer(raw, field string, tx Transaction, diags *diagnostics) string {
	v, err := ParseInteger(raw)
	if err != nil {
		diags.malformed(tx.ID, tx.Type, field, raw, err)
		return "0"
	}
	return v.String()
}

func (p Projector) permissions(raw, field string, tx Transaction, diags *diagnostics) []string {
	v, err := ParseInteger(raw)
	if err != nil || !v.IsUint64() || v.Uint64() > 0xff {
		if err == nil {
			err = fmt.Errorf("bitmask out of range")
		}
		diags.malformed(tx.ID, tx.Type, field, raw, err)
		return nil
	}
	return PermissionNames(uint8(v.Uint64()))
}

func (p Projector) tokenLabel(addr string, ctx AccountContext) string {
	if t, ok := ctx.token(addr); ok && t.Symbol != "" {
		return t.Symbol
	}
	return FormatAddress(addr)
}

func tokenNoun(addr string, ctx AccountContext) string {
	if t, ok := ctx.token(addr); ok && t.Symbol != "" {
		return t.Symbol
	}
	return "tokens"
}

func titleOf(tag TypeTag) string {
	return registry[tag].Title
}

// involved collects the normalized addresses of everyone a proposal touches.
func involved(tx Transaction, target string) []string {
	addrs := make([]string, 0, 3+len(tx.ApprovedBy)+len(tx.RejectedBy))
	addrs = append(addrs, tx.Proposer)
	addrs = append(addrs, tx.ApprovedBy...)
	addrs = append(addrs, tx.RejectedBy...)
	addrs = append(addrs, tx.Executor, target)

	out := make([]string, 0, len(addrs))
	for _, a := range uniqueAddresses(addrs) {
		out = append(out, NormalizeAddress(a))
	}
	return out
}
