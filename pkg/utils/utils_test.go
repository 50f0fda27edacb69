package utils_test

import (
	"context"
	"testing"
	"time"

	"strategy-lab/pkg/logger"
	"strategy-lab/pkg/utils"

	"github.com/stretchr/testify/assert"
)

func TestShouldContinue(t *testing.T) {
	log := logger.NewNop()
	ctx, cancel := context.WithCancel(context.Background())
	assert.True(t, utils.ShouldContinue(ctx, log))
	cancel()
	assert.False(t, utils.ShouldContinue(ctx, log))
}

func TestGoSafeRecovers(t *testing.T) {
	done := make(chan struct{})
	utils.GoSafe(logger.NewNop(), func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
}

func TestFormatPercentage(t *testing.T) {
	tests := []struct {
		in       float64
		expected string
	}{
		{4.5, "+4.50%"},
		{-100, "-100.00%"},
		{0, "+0.00%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, utils.FormatPercentage(tt.in))
	}
	assert.Equal(t, 3, *utils.ToPointer(3))
}
