package multisig

// Payload is the type-specific half of a proposal. The concrete variants are
// the structs below; Type reports which list the payload belongs to.
type Payload interface {
	Type() TypeTag
	isPayload()
}

// TokenSend moves fungible tokens out of the account.
type TokenSend struct {
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

// NFTSend moves one NFT out of the account.
type NFTSend struct {
	Contract  string `json:"nft_contract"`
	TokenID   string `json:"token_id"`
	Recipient string `json:"recipient"`
}

// MemberAdd adds a member with a permission bitmask.
type MemberAdd struct {
	Member      string `json:"member"`
	Permissions string `json:"permissions"`
}

// MemberRemove removes a member.
type MemberRemove struct {
	Member string `json:"member_address"`
}

// PermissionEdit replaces a member's permission bitmask.
type PermissionEdit struct {
	Member         string `json:"member"`
	NewPermissions string `json:"new_permissions"`
}

// ThresholdChange sets a new approval threshold.
type ThresholdChange struct {
	NewThreshold string `json:"new_threshold"`
}

// SmartTokenLock locks tokens for a duration in seconds.
type SmartTokenLock struct {
	Token    string `json:"token"`
	Amount   string `json:"amount"`
	Duration string `json:"duration"`
}

func (TokenSend) Type() TypeTag       { return TypeTokenSend }
func (NFTSend) Type() TypeTag         { return TypeNFTSend }
func (MemberAdd) Type() TypeTag       { return TypeMemberAdd }
func (MemberRemove) Type() TypeTag    { return TypeMemberRemove }
func (PermissionEdit) Type() TypeTag  { return TypePermissionEdit }
func (ThresholdChange) Type() TypeTag { return TypeThresholdChange }
func (SmartTokenLock) Type() TypeTag  { return TypeSmartTokenLock }

func (TokenSend) isPayload()       {}
func (NFTSend) isPayload()         {}
func (MemberAdd) isPayload()       {}
func (MemberRemove) isPayload()    {}
func (PermissionEdit) isPayload()  {}
func (ThresholdChange) isPayload() {}
func (SmartTokenLock) isPayload()  {}

// OpaquePayload carries a payload for a tag this build does not know about.
// Fields holds the decoded JSON object as-is.
type OpaquePayload struct {
	Tag    TypeTag        `json:"type"`
	Fields map[string]any `json:"fields,omitempty"`
}

func (p OpaquePayload) Type() TypeTag { return p.Tag }
func (OpaquePayload) isPayload()      {}

// Permission bits of a member bitmask.
const (
	PermissionProposer uint8 = 1 << iota
	PermissionVoter
	PermissionExecutor
)

// PermissionNames renders a permission bitmask as role names.
func PermissionNames(mask uint8) []string {
	names := make([]string, 0, 3)
	if mask&PermissionProposer != 0 {
		names = append(names, "proposer")
	}
	if mask&PermissionVoter != 0 {
		names = append(names, "voter")
	}
	if mask&PermissionExecutor != 0 {
		names = append(names, "executor")
	}
	return names
}
