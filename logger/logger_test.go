package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		level     logrus.Level
	}{
		{0, logrus.FatalLevel},
		{2, logrus.WarnLevel},
		{3, logrus.InfoLevel},
		{5, logrus.TraceLevel},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Verbosity = tt.verbosity
		log, err := NewWithOutput(cfg, &bytes.Buffer{})
		require.NoError(t, err)
		require.Equal(t, tt.level, log.GetLevel())
	}

	for _, bad := range []int{-1, 6} {
		cfg := DefaultConfig()
		cfg.Verbosity = bad
		_, err := New(cfg)
		require.Error(t, err)
	}
}

func TestJSONInstance(t *testing.T) {
	require := require.New(t)

	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = "json"
	log, err := NewWithOutput(cfg, &out)
	require.NoError(err)

	MakeInstance(log, "chain").Log.WithField("height", 7).Info("New tip")

	var line map[string]interface{}
	require.NoError(json.Unmarshal(out.Bytes(), &line))
	require.Equal("chain", line["module"])
	require.Equal("New tip", line["msg"])
	require.EqualValues(7, line["height"])
}

func TestUnknownFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Format = "xml"
	_, err := New(cfg)
	require.Error(t, err)
}

func TestDiscard(t *testing.T) {
	require.NotPanics(t, func() {
		Discard().Named("miner").Log.Error("dropped")
	})
}
