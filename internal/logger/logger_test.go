package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf).Named("draw").With(String("box_id", "b1"))

	l.Error(context.Background(), "ledger append failed", Int("attempt", 3), Error(errors.New("boom")))

	out := buf.String()
	assert.Contains(t, out, "ledger append failed")
	assert.Contains(t, out, "logger=draw")
	assert.Contains(t, out, "box_id=b1")
	assert.Contains(t, out, "attempt=3")
	assert.Contains(t, out, "error=boom")
}

func TestGetBeforeInitDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Get().Info(context.Background(), "hello")
	})
}

func TestSetLevelString(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "warn", "warning", "error", ""} {
		assert.NoError(t, SetLevelString(lvl), lvl)
	}
	assert.Error(t, SetLevelString("verbose"))
	_ = SetLevelString("info")
}
