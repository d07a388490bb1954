package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mohitkumar/waterflow/config"
	"github.com/mohitkumar/waterflow/model"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const echoFlow = `{
	"id": "echo-flow",
	"nodes": [
		{"id": "start", "type": "START"},
		{"id": "task", "type": "STATE", "jober": {"name": "task", "type": "ECHO_JOBER", "properties": {"fields": {"seen": true}}}},
		{"id": "end", "type": "END"}
	],
	"edges": [
		{"from": "start", "to": "task"},
		{"from": "task", "to": "end"}
	]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testCli() *cli {
	c := &cli{}
	c.cfg.Config = config.Default()
	c.cfg.TickInterval = 5 * time.Millisecond
	return c
}

func TestCommands(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"validate reports every file": func(t *testing.T) {
			good := writeFile(t, "good.json", echoFlow)
			bad := writeFile(t, "bad.json", `{"id": "bad", "nodes": [{"id": "start", "type": "START"}]}`)
			cmd := validateCommand(testCli())
			var out bytes.Buffer
			cmd.SetOut(&out)
			err := cmd.RunE(cmd, []string{good, bad})
			require.Error(t, err)
			require.Contains(t, out.String(), "good.json: ok (echo-flow, 3 nodes)")
			require.Contains(t, out.String(), "bad.json: ")
		},
		"run prints the finished trace": func(t *testing.T) {
			def := writeFile(t, "flow.json", echoFlow)
			input := writeFile(t, "input.json", `{"order": "o-1"}`)
			cmd := &cobra.Command{}
			var out bytes.Buffer
			cmd.SetOut(&out)
			require.NoError(t, testCli().run(cmd, []string{def}, "", input, 5*time.Second))

			var res runResult
			require.NoError(t, json.Unmarshal(out.Bytes(), &res))
			require.Equal(t, model.TRACE_STATUS_ARCHIVED, res.Trace.Status)
			require.Len(t, res.Contexts, 3)
			last := res.Contexts[2]
			require.Equal(t, "end", last.Position)
			require.Equal(t, "o-1", last.BusinessData["order"])
			require.Equal(t, true, last.BusinessData["seen"])
		},
		"run starts the chosen definition": func(t *testing.T) {
			other := writeFile(t, "other.json", strings.Replace(echoFlow, "echo-flow", "other-flow", 1))
			def := writeFile(t, "flow.json", echoFlow)
			cmd := &cobra.Command{}
			var out bytes.Buffer
			cmd.SetOut(&out)
			require.NoError(t, testCli().run(cmd, []string{other, def}, "echo-flow", "", 5*time.Second))

			var res runResult
			require.NoError(t, json.Unmarshal(out.Bytes(), &res))
			require.Equal(t, "echo-flow", res.Trace.DefinitionId)
		},
		"run lists loaded definitions for an unknown start": func(t *testing.T) {
			def := writeFile(t, "flow.json", echoFlow)
			err := testCli().run(&cobra.Command{}, []string{def}, "missing", "", 5*time.Second)
			require.ErrorContains(t, err, "loaded: [echo-flow]")
		},
	} {
		t.Run(scenario, fn)
	}
}
