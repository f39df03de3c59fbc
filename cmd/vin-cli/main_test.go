package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vindiesel/vin-engine/internal/config"
	"github.com/vindiesel/vin-engine/internal/observability"
	"github.com/vindiesel/vin-engine/pkg/vin"
)

const hondaVIN = "1HGBH41JXMN109186"

type stubGateway struct {
	info vin.RemoteInfo
	err  error
}

func (g stubGateway) DecodeRemote(ctx context.Context, v string) (vin.RemoteInfo, error) {
	return g.info, g.err
}

// run executes the CLI with args and returns stdout and the error.
func run(t *testing.T, gw vin.Gateway, stdin string, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"REDIS_URL", "DATABASE_URL", "GATEWAY_ENABLED", "API_KEY"} {
		t.Setenv(k, "")
	}

	a := &app{newGateway: func(*config.Config, *observability.Logger) vin.Gateway { return gw }}
	cmd := newRootCmdFor(a)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--no-color"}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func exitCode(err error) int {
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	if err != nil {
		return -1
	}
	return 0
}

func TestNormalizeCmd(t *testing.T) {
	out, err := run(t, nil, "", "--json", "normalize", "1hg bh41-jxmn1o9186")
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, hondaVIN, resp["vin"])
	assert.Equal(t, true, resp["complete"])
}

func TestValidateCmd(t *testing.T) {
	out, err := run(t, nil, "", "validate", hondaVIN)
	require.NoError(t, err)
	assert.Contains(t, out, "is a valid VIN")
	assert.Contains(t, out, "check digit verified")

	out, err = run(t, nil, "", "validate", "1HGBH41JXMN1O9186")
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "Contains invalid letters: O")
}

func TestDecodeCmd_Local(t *testing.T) {
	out, err := run(t, nil, "", "--json", "--offline", "decode", hondaVIN)
	require.NoError(t, err)

	var res struct {
		Vehicle vin.VehicleInfo `json:"vehicle"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, vin.SourceLocalHeuristic, res.Vehicle.Source)
	assert.Equal(t, "2021", res.Vehicle.Year)
	assert.Equal(t, "Peterbilt", res.Vehicle.Make)
	assert.Equal(t, vin.ScanManual, res.Vehicle.ScannedBy)
}

func TestDecodeCmd_Remote(t *testing.T) {
	gw := stubGateway{info: vin.RemoteInfo{Year: "1991", Make: "HONDA", Model: "Accord"}}
	out, err := run(t, gw, "", "--json", "decode", "--remote", hondaVIN)
	require.NoError(t, err)

	var res struct {
		Vehicle vin.VehicleInfo `json:"vehicle"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, vin.SourceRemoteAuthoritative, res.Vehicle.Source)
	assert.Equal(t, "Accord", res.Vehicle.Model)
}

func TestDecodeCmd_RemoteDegraded(t *testing.T) {
	gw := stubGateway{err: vin.NewGatewayError(vin.FailureUnreachable, hondaVIN, errors.New("dial tcp"))}
	out, err := run(t, gw, "", "decode", "--remote", hondaVIN)
	require.NoError(t, err)
	assert.Contains(t, out, "remote decode unavailable (unreachable)")
	assert.Contains(t, out, string(vin.SourceLocalHeuristic))
}

func TestDecodeCmd_Invalid(t *testing.T) {
	_, err := run(t, nil, "", "--offline", "decode", "SHORT")
	assert.Equal(t, 1, exitCode(err))
}

func TestExtractCmd(t *testing.T) {
	out, err := run(t, nil, "VEHICLE ID\nvin: 1hgbh41jxmn109186\n", "extract")
	require.NoError(t, err)
	assert.Contains(t, out, hondaVIN)

	path := filepath.Join(t.TempDir(), "ocr.txt")
	require.NoError(t, os.WriteFile(path, []byte("nothing useful"), 0o600))
	out, err = run(t, nil, "", "extract", path)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, vin.NotFoundMessage)
}

func TestBatchCmd(t *testing.T) {
	input := "# yard intake\n" + hondaVIN + "\n\nBADVIN\n1M8GDM9AXKP042788\n"
	gw := stubGateway{info: vin.RemoteInfo{Make: "HONDA"}}

	out, err := run(t, gw, input, "--json", "batch", "-", "--concurrency", "2")
	assert.Equal(t, 1, exitCode(err))

	var rows []struct {
		Input  string   `json:"input"`
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.True(t, rows[0].Valid)
	assert.Equal(t, "BADVIN", rows[1].Input)
	assert.False(t, rows[1].Valid)
	assert.True(t, rows[2].Valid)
}

func TestBatchCmd_Table(t *testing.T) {
	out, err := run(t, nil, hondaVIN+"\n", "--offline", "batch", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "| VIN")
	assert.Contains(t, out, "1 decoded, 0 invalid")
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, nil, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "vin-cli dev\n", out)
}

func TestParseVINList(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, parseVINList("A\n\n# c\n  B  \n"))
	assert.Empty(t, parseVINList("\n#only comments\n"))
}
