package session

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestSagaUnwindReverseOrder(t *testing.T) {
	sg := newSaga(zap.NewNop())
	var order []string
	sg.committed("first", func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	sg.committed("second", func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})
	sg.committed("third", func(ctx context.Context) error {
		order = append(order, "third")
		return nil
	})

	sg.unwind(context.Background())

	if len(order) != 3 || order[0] != "third" || order[1] != "second" || order[2] != "first" {
		t.Fatalf("expected reverse order, got %v", order)
	}
}

func TestSagaUnwindContinuesPastFailure(t *testing.T) {
	sg := newSaga(zap.NewNop())
	var ran []string
	sg.committed("first", func(ctx context.Context) error {
		ran = append(ran, "first")
		return nil
	})
	sg.committed("second", func(ctx context.Context) error {
		ran = append(ran, "second")
		return errors.New("undo failed")
	})

	sg.unwind(context.Background())

	if len(ran) != 2 {
		t.Fatalf("expected both compensations to run, got %v", ran)
	}
}

func TestSagaEmptyUnwind(t *testing.T) {
	sg := newSaga(zap.NewNop())
	sg.unwind(context.Background())
}
