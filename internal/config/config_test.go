package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.True(t, cfg.FileIO)
	require.Equal(t, defaultPort, cfg.Port)
	require.Equal(t, []string{"127.0.0.1"}, cfg.Allow)
	require.False(t, cfg.AuthReq)
}

func TestParseVariousSeparators(t *testing.T) {
	cfg := Default()
	src := strings.NewReader(strings.Join([]string{
		"# a comment",
		"",
		"workdir /tmp/rserve",
		"auth required",
		"plaintext: enable",
		"pwdfile=/etc/rserve.pwd",
		"maxinbuf 1024",
		"port=16311",
		"allow 10.0.0.1",
		"allow 10.0.0.2 10.0.0.3",
	}, "\n"))
	require.NoError(t, cfg.parse(src))
	require.Equal(t, "/tmp/rserve", cfg.Workdir)
	require.True(t, cfg.AuthReq)
	require.True(t, cfg.Plaintext)
	require.Equal(t, "/etc/rserve.pwd", cfg.PwdFile)
	require.Equal(t, 1024*1024, cfg.MaxInBuf)
	require.Equal(t, 16311, cfg.Port)
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, cfg.Allow)
}

func TestParseUnrecognizedKey(t *testing.T) {
	cfg := Default()
	err := cfg.parse(strings.NewReader("bogus value"))
	require.Error(t, err)
}

func TestSplitKeyValue(t *testing.T) {
	cases := []struct {
		line      string
		key, val  string
		ok        bool
	}{
		{"workdir /tmp", "workdir", "/tmp", true},
		{"workdir=/tmp", "workdir", "/tmp", true},
		{"workdir:/tmp", "workdir", "/tmp", true},
		{"workdir    /tmp", "workdir", "/tmp", true},
		{"noseparator", "", "", false},
	}
	for _, c := range cases {
		key, val, ok := splitKeyValue(c.line)
		require.Equal(t, c.ok, ok, c.line)
		if ok {
			require.Equal(t, c.key, key, c.line)
			require.Equal(t, c.val, val, c.line)
		}
	}
}
