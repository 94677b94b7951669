package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSetupLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		want      zerolog.Level
	}{
		{"default is warn", 0, zerolog.WarnLevel},
		{"-v is info", 1, zerolog.InfoLevel},
		{"-vv is debug", 2, zerolog.DebugLevel},
		{"-vvv is trace", 3, zerolog.TraceLevel},
		{"beyond -vvv stays trace", 5, zerolog.TraceLevel},
		{"-q is errors only", -1, zerolog.ErrorLevel},
		{"-qq is silent", -2, zerolog.Disabled},
		{"beyond -qq stays silent", -4, zerolog.Disabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetupLogger(tt.verbosity)
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}
