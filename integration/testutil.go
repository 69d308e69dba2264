package integration

import (
	"sync"

	"github.com/pkg/errors"
)

// TestContext carries values between the ordered steps of one integration flow.
type TestContext struct {
	testName string
	mu       sync.RWMutex
	values   map[string]any
}

func NewTestContext(testName string) *TestContext {
	return &TestContext{
		testName: testName,
		values:   make(map[string]any),
	}
}

// SetValue sets a value in the test context.
func SetValue(ctx *TestContext, key string, value any) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.values[key] = value
}

// GetValue retrieves a value of type T from the test context.
func GetValue[T any](ctx *TestContext, key string) (T, error) {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	var zero T
	value, ok := ctx.values[key]
	if !ok {
		return zero, errors.Errorf("%s: value not found for key %s", ctx.testName, key)
	}
	typed, ok := value.(T)
	if !ok {
		return zero, errors.Errorf("%s: value for key %s is a %T", ctx.testName, key, value)
	}
	return typed, nil
}
