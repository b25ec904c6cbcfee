package multisig

// TypeInfo describes one registered transaction type.
type TypeInfo struct {
	Tag TypeTag
	// Title is the heading of the display record.
	Title string
	// Label is the name used in filter choices.
	Label string
	// Source names the payload list in logs, errors and metrics.
	Source string
	// New returns an empty payload for decoding.
	New func() Payload
}

var registry = map[TypeTag]TypeInfo{
	TypeTokenSend: {
		Tag: TypeTokenSend, Title: "Token Transfer", Label: "Token Transfer", Source: "token_send",
		New: func() Payload { return &TokenSend{} },
	},
	TypeNFTSend: {
		Tag: TypeNFTSend, Title: "NFT Transfer", Label: "NFT Transfer", Source: "nft_send",
		New: func() Payload { return &NFTSend{} },
	},
	TypeMemberAdd: {
		Tag: TypeMemberAdd, Title: "Add Member", Label: "Add Member", Source: "member_add",
		New: func() Payload { return &MemberAdd{} },
	},
	TypeMemberRemove: {
		Tag: TypeMemberRemove, Title: "Remove Member", Label: "Remove Member", Source: "member_remove",
		New: func() Payload { return &MemberRemove{} },
	},
	TypePermissionEdit: {
		Tag: TypePermissionEdit, Title: "Edit Permissions", Label: "Edit Permissions", Source: "permission_edit",
		New: func() Payload { return &PermissionEdit{} },
	},
	TypeThresholdChange: {
		Tag: TypeThresholdChange, Title: "Change Threshold", Label: "Change Threshold", Source: "threshold_change",
		New: func() Payload { return &ThresholdChange{} },
	},
	TypeSmartTokenLock: {
		Tag: TypeSmartTokenLock, Title: "Smart Token Lock", Label: "Smart Lock", Source: "smart_token_lock",
		New: func() Payload { return &SmartTokenLock{} },
	},
}

// TypeTags lists the registered tags in a stable order.
var TypeTags = []TypeTag{
	TypeTokenSend,
	TypeNFTSend,
	TypeMemberAdd,
	TypeMemberRemove,
	TypePermissionEdit,
	TypeThresholdChange,
	TypeSmartTokenLock,
}

// Lookup returns the registry entry for tag.
func Lookup(tag TypeTag) (TypeInfo, bool) {
	info, ok := registry[tag]
	return info, ok
}

// derefPayload turns the pointer produced by TypeInfo.New back into the value
// variant used everywhere else.
func derefPayload(p Payload) Payload {
	switch v := p.(type) {
	case *TokenSend:
		return *v
	case *NFTSend:
		return *v
	case *MemberAdd:
		return *v
	case *MemberRemove:
		return *v
	case *PermissionEdit:
		return *v
	case *ThresholdChange:
		return *v
	case *SmartTokenLock:
		return *v
	case *OpaquePayload:
		return *v
	}
	return p
}
