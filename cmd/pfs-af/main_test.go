package main

import (
	"testing"

	"github.com/mit-dci/pfs/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHostPort(t *testing.T) {
	host, port, err := parseHostPort("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultRpchost, host)
	assert.Equal(t, config.DefaultRpcport, port)

	host, port, err = parseHostPort("9000")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultRpchost, host)
	assert.Equal(t, uint16(9000), port)

	host, port, err = parseHostPort("example.org")
	require.NoError(t, err)
	assert.Equal(t, "example.org", host)
	assert.Equal(t, config.DefaultRpcport, port)

	host, port, err = parseHostPort("10.0.0.1:7")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", host)
	assert.Equal(t, uint16(7), port)

	host, port, err = parseHostPort(":7")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultRpchost, host)
	assert.Equal(t, uint16(7), port)

	_, _, err = parseHostPort("h:99999")
	assert.Error(t, err)
}

func TestShellparseExit(t *testing.T) {
	lc := new(pfsAfClient)
	assert.Error(t, lc.Shellparse([]string{"exit"}))
	assert.Error(t, lc.Shellparse([]string{"quit"}))
	assert.NoError(t, lc.Shellparse([]string{"exit", "-h"}))
	assert.NoError(t, lc.Shellparse([]string{"nonsense"}))
	assert.NoError(t, lc.Shellparse([]string{"help"}))
	assert.NoError(t, lc.Shellparse([]string{"help", "route"}))
	// missing arguments print usage without a round trip
	assert.NoError(t, lc.Shellparse([]string{"route", "x"}))
}
