package aggregate

import "context"

type ctxKey int

const (
	correlationIDKey ctxKey = iota
	transactionIDKey
)

// CtxWithCorrelationID returns a context carrying the correlation id
// stored with the events of every aggregate saved with it
func CtxWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CtxWithTransactionID returns a context carrying the transaction id
// stored with the events of every aggregate saved with it
func CtxWithTransactionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, transactionIDKey, id)
}

func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)

	return id
}

func transactionID(ctx context.Context) string {
	id, _ := ctx.Value(transactionIDKey).(string)

	return id
}
