package main

import (
	"bytes"
	"context"
	"testing"

	shikijin "github.com/shikijin/shikijin-go"
	"github.com/shikijin/shikijin-go/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoggerBackends(t *testing.T) {
	require.Equal(t, []string{"auto", "fmt", "json"}, backendNames(loggerBackends))

	var buf bytes.Buffer
	l, err := loggerBackends["auto"](config.Logger{Name: "n", Level: "info"}, &buf)
	require.NoError(t, err)
	_, isJSON := l.(*shikijin.JSONLogger)
	require.True(t, isJSON, "non-terminal writers get JSON")

	l, err = loggerBackends["fmt"](config.Logger{Level: "warn"}, &buf)
	require.NoError(t, err)
	l.Infof("dropped")
	l.Warnf("kept")
	require.Equal(t, "[WARN]  kept\n", buf.String())

	_, err = loggerBackends["json"](config.Logger{Level: "chatty"}, &buf)
	require.Error(t, err)
}

func TestStoreBackends(t *testing.T) {
	require.Equal(t, []string{"memory", "redis"}, backendNames(storeBackends))

	st, closeFn, err := storeBackends["memory"](context.Background(), config.Store{Name: "mem"}, shikijin.DiscardLogger)
	require.NoError(t, err)
	require.NoError(t, closeFn())
	require.Equal(t, "mem", st.(shikijin.Component).Name())

	_, _, err = storeBackends["redis"](context.Background(), config.Store{Redis: config.Redis{Addr: "127.0.0.1:1"}}, shikijin.DiscardLogger)
	require.Error(t, err)
}

func TestCapabilities(t *testing.T) {
	caps := capabilities([]string{"gpu", "cpu"})
	require.Len(t, caps, 2)
	require.Equal(t, shikijin.CapabilityIDFor("gpu"), caps[0].ID)
}
