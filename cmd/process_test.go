package cmd

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContentType = "multipart/related; boundary=b1; type=\"application/xop+xml\""

const testMessage = "--b1\r\n" +
	"Content-Type: application/xop+xml; charset=UTF-8\r\n" +
	"\r\n" +
	"<Envelope xmlns:xop=\"http://www.w3.org/2004/08/xop/include\"><Data><xop:Include href=\"cid:att\"/></Data></Envelope>\r\n" +
	"--b1\r\n" +
	"Content-Type: application/octet-stream\r\n" +
	"Content-ID: <att>\r\n" +
	"\r\n" +
	"\x00\x01\x02\r\n" +
	"--b1--\r\n"

func TestRunProcess_ExtractToStdout(t *testing.T) {
	var stdout, stderr bytes.Buffer
	opts := processOptions{
		Action:      "extract_soap",
		ContentType: testContentType,
		Input:       "-",
	}

	err := runProcess(context.Background(), opts, strings.NewReader(testMessage), &stdout, &stderr)
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	assert.Equal(t, "extract_soap", out["xop_action"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0, 1, 2}), out["xop_base64Encoded"])
	assert.True(t, strings.HasPrefix(out["xop_extracted_xml"], "<Envelope"))
}

func TestRunProcess_TransformToFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "message.mime")
	outPath := filepath.Join(dir, "embedded.xml")
	require.NoError(t, os.WriteFile(in, []byte(testMessage), 0o600))

	opts := processOptions{
		Action:      "TRANSFORM_TO_EMBEDDED",
		ContentType: testContentType,
		Input:       in,
		Output:      outPath,
	}
	var stdout, stderr bytes.Buffer
	require.NoError(t, runProcess(context.Background(), opts, nil, &stdout, &stderr))
	assert.Empty(t, stdout.String())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "<Envelope xmlns:xop=\"http://www.w3.org/2004/08/xop/include\"><Data>AAEC</Data></Envelope>", string(data))
}

func TestRunProcess_PropertyOverride(t *testing.T) {
	var stdout, stderr bytes.Buffer
	opts := processOptions{
		Action:      "extract_soap",
		ContentType: testContentType,
		Properties:  map[string]string{"part2-ctypes": "image/png"},
	}

	err := runProcess(context.Background(), opts, strings.NewReader(testMessage), &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, "unexpected content-type for part #2 (application/octet-stream)", err.Error())
	assert.Empty(t, stdout.String())
}

func TestRunProcess_SourceOverride(t *testing.T) {
	var stdout, stderr bytes.Buffer
	opts := processOptions{
		Action:      "extract_soap",
		ContentType: testContentType,
		Properties:  map[string]string{"source": "inbound"},
	}

	err := runProcess(context.Background(), opts, strings.NewReader(testMessage), &stdout, &stderr)
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	assert.Equal(t, "extract_soap", out["xop_action"])
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "inbound", sourceName("message", map[string]string{"source": " inbound "}))
	assert.Equal(t, "request", sourceName("request", map[string]string{"debug": "true"}))
	assert.Equal(t, "message", sourceName("", nil))
}

func TestRunProcess_DebugPrintsStack(t *testing.T) {
	var stdout, stderr bytes.Buffer
	opts := processOptions{
		Action:      "edit_1",
		ContentType: testContentType,
		Debug:       true,
	}
	broken := strings.Replace(testMessage, "</Envelope>", "</Envelop>", 1)

	err := runProcess(context.Background(), opts, strings.NewReader(broken), &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "goroutine")
}

func TestRunProcess_MissingInputFile(t *testing.T) {
	opts := processOptions{Input: filepath.Join(t.TempDir(), "missing.mime")}
	err := runProcess(context.Background(), opts, nil, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "reading message file")
}

func TestRunProcess_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("handler:\n  action: EXTRACT_SOAP\n"), 0o600))

	var stdout bytes.Buffer
	opts := processOptions{ConfigPath: path, ContentType: testContentType}
	require.NoError(t, runProcess(context.Background(), opts, strings.NewReader(testMessage), &stdout, &bytes.Buffer{}))
	assert.Contains(t, stdout.String(), `"xop_action": "extract_soap"`)
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3")
	defer SetVersion("dev")

	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "xopd version 1.2.3\n", out.String())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "v", entry["k"])

	buf.Reset()
	newLogger(&buf, "bogus", "text").Debug("hidden")
	assert.Empty(t, buf.String())
}
