package engine

import "context"

// TakeMessage reads the engine error string s and releases it, returning
// fallback when the engine produced no string or it cannot be read. The
// release happens exactly once even when reading fails, and the returned
// message is never empty, so a raised error always carries text.
func TakeMessage(ctx context.Context, n Native, s Str, fallback string) string {
	if s == 0 {
		return fallback
	}
	defer n.FreeString(ctx, s)
	msg, err := n.ReadString(s)
	if err != nil || msg == "" {
		return fallback
	}
	return msg
}

// TakeString reads the engine string s and releases it. s must be non-zero.
// The release happens exactly once even when reading fails.
func TakeString(ctx context.Context, n Native, s Str) (string, error) {
	defer n.FreeString(ctx, s)
	return n.ReadString(s)
}
