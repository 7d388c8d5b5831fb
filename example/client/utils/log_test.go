package utils

import (
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHook(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.Hooks.Add(NewContextHook())
	hook := test.NewLocal(logger)

	logger.WithField("remote", "127.0.0.1:2404").Info("连接服务器成功")
	require.NotNil(t, hook.LastEntry())
	line, ok := hook.LastEntry().Data["line"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(line, "utils/log_test.go:"), line)
}

func TestContextHookLevels(t *testing.T) {
	h := NewContextHook(logrus.ErrorLevel)
	assert.Equal(t, []logrus.Level{logrus.ErrorLevel}, h.Levels())
	assert.Equal(t, logrus.AllLevels, NewContextHook().Levels())
}
