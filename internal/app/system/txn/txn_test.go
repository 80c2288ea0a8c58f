package txn

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsNotSupported(t *testing.T) {
	standalone := mongo.CommandError{Code: 20, Message: "Transaction numbers are only allowed on a replica set member or mongos"}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"standalone server", standalone, true},
		{"wrapped by a step", fmt.Errorf("accept invitation: %w", standalone), true},
		{"illegal operation code", mongo.CommandError{Code: 51}, true},
		{"operation not allowed in transaction", mongo.CommandError{Code: 263}, true},
		{"duplicate key is a real failure", mongo.CommandError{Code: 11000, Message: "E11000 duplicate key"}, false},
		{"unrelated error", errors.New("workspace not found"), false},
		{"single keyword", errors.New("transaction aborted"), false},
		{"message from an old server", errors.New("Sessions are not supported by the MongoDB cluster"), true},
		{"shouting", errors.New("TRANSACTION requires a REPLICA SET"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotSupported(tt.err); got != tt.want {
				t.Errorf("IsNotSupported(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDirect_RunsOnce(t *testing.T) {
	calls := 0
	err := Direct{}.Run(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestInTransaction_PlainContext(t *testing.T) {
	if InTransaction(context.Background()) {
		t.Error("background context reported as in a transaction")
	}
}
