package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	require.NotNil(t, l)
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"station": "CP1"})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestNopLoggerSatisfiesInterface(t *testing.T) {
	var l Logger = NopLogger{}
	l.Debugf("ignored")
	l.Infof("ignored")
}
