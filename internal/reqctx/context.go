package reqctx

import (
	"context"
	"fmt"
)

type ctxKey string

const (
	keyRID    ctxKey = "rid"
	keyUserID ctxKey = "user_id"
)

// WithRID stores the request id used to correlate log lines.
func WithRID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, keyRID, rid)
}

// RID returns the request id if present.
func RID(ctx context.Context) string {
	v, _ := ctx.Value(keyRID).(string)
	return v
}

func WithUserID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, keyUserID, id)
}

// UserID returns the authenticated user id, 0 when anonymous.
func UserID(ctx context.Context) uint64 {
	v, _ := ctx.Value(keyUserID).(uint64)
	return v
}

// Prefix renders the correlation fields for a log line, e.g. "[rid=abc uid=3] ".
func Prefix(ctx context.Context) string {
	rid, uid := RID(ctx), UserID(ctx)
	switch {
	case rid != "" && uid != 0:
		return fmt.Sprintf("[rid=%s uid=%d] ", rid, uid)
	case rid != "":
		return fmt.Sprintf("[rid=%s] ", rid)
	case uid != 0:
		return fmt.Sprintf("[uid=%d] ", uid)
	}
	return ""
}
