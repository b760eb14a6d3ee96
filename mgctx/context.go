package mgctx

import "context"

type ctxIndex int

const (
	ctxIndexVerbose ctxIndex = iota
	ctxIndexDriver
)

func IsVerbose(ctx context.Context) bool {
	val := ctx.Value(ctxIndexVerbose)
	if val == nil {
		return false
	}
	return val.(bool)
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// Driver returns the bus driver name stored in ctx, used to tag log records.
func Driver(ctx context.Context) string {
	val := ctx.Value(ctxIndexDriver)
	if val == nil {
		return ""
	}
	return val.(string)
}

func SetDriver(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxIndexDriver, name)
}
