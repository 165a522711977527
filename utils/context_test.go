package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeouts(t *testing.T) {
	tests := []struct {
		name  string
		apply func(context.Context) (context.Context, context.CancelFunc)
		want  time.Duration
	}{
		{"default", WithTimeout, DefaultTimeout},
		{"short", WithShortTimeout, ShortTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.apply(context.Background())
			defer cancel()

			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(tt.want), deadline, time.Second)
		})
	}

	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := WithShortTimeout(parent)
	defer cancel()
	cancelParent()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
