package apperr

// Validation
var (
	ErrValidation        = New(KindValidation, "VALIDATION_FAILED", "invalid input")
	ErrAmountRequired    = New(KindValidation, "AMOUNT_REQUIRED", "amount is required for add and update actions")
	ErrAmountTooLarge    = New(KindValidation, "AMOUNT_TOO_LARGE", "amount is too large")
	ErrInvalidInviteCode = New(KindValidation, "INVALID_INVITE_CODE", "invite code must be 6 letters or digits")
)

// Not found
var (
	ErrUserNotFound   = New(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrGroupNotFound  = New(KindNotFound, "GROUP_NOT_FOUND", "group not found")
	ErrItemNotFound   = New(KindNotFound, "ITEM_NOT_FOUND", "item not found")
	ErrMemberNotFound = New(KindNotFound, "MEMBER_NOT_FOUND", "member not found")
)

// Authorization
var (
	ErrUnauthenticated    = New(KindUnauthenticated, "UNAUTHENTICATED", "authentication required")
	ErrNotMember          = New(KindForbidden, "NOT_A_MEMBER", "you are not a member of this group")
	ErrNotAdmin           = New(KindForbidden, "NOT_ADMIN", "only group admins can do this")
	ErrAnonymousForbidden = New(KindForbidden, "ANONYMOUS_FORBIDDEN", "anonymous users can not do this")
)

// Conflicts
var (
	ErrAlreadyMember      = New(KindConflict, "ALREADY_MEMBER", "you are already a member of this group")
	ErrInviteCodeConflict = New(KindConflict, "INVITE_CODE_CONFLICT", "invite code is already in use")
	ErrItemConflict       = New(KindConflict, "ITEM_CONFLICT", "an item with this name already exists")
)

// Invariants
var (
	ErrPersonalGroup = New(KindInvariant, "PERSONAL_GROUP", "this is not allowed for a personal group")
	ErrLastAdmin     = New(KindInvariant, "LAST_ADMIN", "a group must keep at least one admin")
)

// Upstream and internal
var (
	ErrAssistant           = New(KindUpstream, "ASSISTANT_FAILED", "the assistant request failed")
	ErrInviteCodeExhausted = New(KindInternal, "INVITE_CODE_EXHAUSTED", "failed to generate a unique invite code")
	ErrInternal            = New(KindInternal, "INTERNAL", "internal error")
)
