package cli

import (
	"bytes"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henrykironde/conveyor/internal/envinfo"
)

func TestEnvText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewEnvCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), runtime.GOOS)
	assert.Contains(t, buf.String(), runtime.Version())
}

func TestEnvJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewEnvCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string         `json:"status"`
		Data   envinfo.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, runtime.GOOS, resp.Data.OS)
}
