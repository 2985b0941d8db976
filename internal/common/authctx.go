package common

import "context"

type ctxKey string

const (
	principalKey     ctxKey = "auth/principal"
	principalSlotKey ctxKey = "auth/principal-slot"
)

// Principal identifies the authenticated account behind a request.
type Principal struct {
	AccountID int64
	Email     string
	Role      string
}

// WithPrincipal stores the authenticated principal on the provided context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if slot, ok := ctx.Value(principalSlotKey).(*Principal); ok && slot != nil {
		*slot = p
	}
	return context.WithValue(ctx, principalKey, p)
}

// WithPrincipalSlot returns a context carrying an empty slot that WithPrincipal fills in.
// Outer middleware uses it to observe who a request was authenticated as after the
// inner handlers ran.
func WithPrincipalSlot(ctx context.Context) (context.Context, *Principal) {
	slot := &Principal{}
	return context.WithValue(ctx, principalSlotKey, slot), slot
}

// PrincipalFrom extracts the authenticated principal from the context if present.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	v := ctx.Value(principalKey)
	if v == nil {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	if !ok || p.AccountID <= 0 {
		return Principal{}, false
	}
	return p, true
}

// AccountID returns the authenticated account identifier from the context if present.
func AccountID(ctx context.Context) (int64, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return 0, false
	}
	return p.AccountID, true
}
