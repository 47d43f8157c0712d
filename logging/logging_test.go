package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/warp/contract-engine/config"
	"github.com/warp/contract-engine/logging"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log, err := logging.New(config.LogConfig{Level: tt.level})
			require.NoError(t, err)
			assert.Equal(t, tt.want, log.Level())
		})
	}
}

func TestNop(t *testing.T) {
	log := logging.Nop()
	log.Infow("discarded", "key", "value")
	assert.NotNil(t, log)
}
