package notify

import "context"

// Purpose tells the channel which flow a code belongs to.
type Purpose string

const (
	PurposeVerify Purpose = "verify"
	PurposeReset  Purpose = "reset"
)

// Notifier delivers code to address. Implementations must be safe for
// concurrent use.
type Notifier interface {
	DeliverCode(ctx context.Context, address, code string, purpose Purpose) error
}

// Func adapts a plain function to [Notifier].
type Func func(ctx context.Context, address, code string, purpose Purpose) error

// DeliverCode calls f.
func (f Func) DeliverCode(ctx context.Context, address, code string, purpose Purpose) error {
	return f(ctx, address, code, purpose)
}

func subject(purpose Purpose) string {
	switch purpose {
	case PurposeReset:
		return "Your password reset code"
	default:
		return "Verify your email address"
	}
}
