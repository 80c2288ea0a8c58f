// Package txn runs multi-document writes inside a MongoDB transaction when
// the deployment supports one, and falls back to plain sequential writes
// when it does not (standalone servers, some DocumentDB versions).
//
// Callers that need endpoint-state guarantees without a transaction pair
// Run with Steps, which undoes applied steps when a later one fails.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Runner executes fn atomically where the backend allows it.
type Runner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// Run executes fn inside a transaction on db's client. If the server
// rejects transactions, fn is executed once without one. A ctx that already
// carries a session joins that session's transaction.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			log.Warn("sessions unsupported; running without transaction", zap.Error(err))
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		log.Warn("transactions unsupported; running without transaction", zap.Error(err))
		return fn(ctx)
	}
	return err
}

// Mongo is a Runner backed by a database handle.
type Mongo struct {
	DB  *mongo.Database
	Log *zap.Logger
}

// NewRunner returns a Runner for db.
func NewRunner(db *mongo.Database, log *zap.Logger) Mongo {
	return Mongo{DB: db, Log: log}
}

// Run implements Runner.
func (m Mongo) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return Run(ctx, m.DB, m.Log, fn)
}

// Direct runs fn without any transaction. It is the Runner for the
// in-memory backend and for tests; atomicity then rests on Steps.
type Direct struct{}

// Run implements Runner.
func (Direct) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var notSupportedCodes = map[int32]bool{
	20:  true, // IllegalOperation: transaction numbers need a replica set
	51:  true,
	263: true, // OperationNotSupportedInTransaction
}

var notSupportedWords = []string{
	"transaction",
	"replica set",
	"session",
	"not supported",
	"illegal operation",
}

// IsNotSupported reports whether err means the deployment cannot run a
// transaction. Message matching needs two keywords so that ordinary
// failures mentioning "transaction" are not mistaken for lack of support.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && notSupportedCodes[ce.Code] {
		return true
	}
	msg := strings.ToLower(err.Error())
	hits := 0
	for _, w := range notSupportedWords {
		if strings.Contains(msg, w) {
			hits++
		}
	}
	return hits >= 2
}

// InTransaction reports whether ctx carries a MongoDB session.
func InTransaction(ctx context.Context) bool {
	return mongo.SessionFromContext(ctx) != nil
}
