package goGuard

import "context"

type approvedCallContextKey struct{}

// WithApprovedCall marks ctx as carrying an approved, delay-matured proposal
// execution. The engine sets it on the context passed to the Executor, so
// an Authorize call made from inside the executor passes the approval
// requirement.
func WithApprovedCall(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, approvedCallContextKey{}, true)
}

// IsApprovedCall reports whether ctx was marked by WithApprovedCall.
func IsApprovedCall(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	ok, _ := ctx.Value(approvedCallContextKey{}).(bool)
	return ok
}
