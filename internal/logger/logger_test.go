package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_IsUsableBeforeInit(t *testing.T) {
	l := New()
	if l.Log == nil {
		t.Fatal("Log must not be nil")
	}
	l.Log.Info("dropped")
}

func TestInit(t *testing.T) {
	cases := []struct {
		level   string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"Info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"loud", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			l := New()
			err := l.Init(tc.level)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Init(%q) did not return error", tc.level)
				}
				return
			}
			if err != nil {
				t.Fatalf("Init(%q) error = %v", tc.level, err)
			}
			if !l.Log.Core().Enabled(tc.want) || (tc.want > zapcore.DebugLevel && l.Log.Core().Enabled(tc.want-1)) {
				t.Errorf("Init(%q) enabled levels do not start at %s", tc.level, tc.want)
			}
		})
	}
}
