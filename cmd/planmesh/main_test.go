package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPlan = `{
  "plan_name": "brief",
  "activities": [
    {"id": "draft", "activity_type": "delegation_agent", "description": "draft the intro",
     "agent": {"skill_to_use": "write"}, "dependencies": []},
    {"id": "stamp", "activity_type": "direct_tool_use",
     "tools": [{"tool_to_use": "echo", "tool_parameters": {"text": "approved"}}],
     "dependencies": [{"source": "draft", "condition": "intro"}]}
  ]
}`

const testConfig = `
logging:
  level: error
model:
  provider: mock
agents:
  - id: helper
    default: true
    skills: [write]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "planmesh version "+Version)
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", writeFile(t, "plan.json", testPlan))
	require.NoError(t, err)
	assert.Contains(t, out, `plan "brief": 2 activities`)
	assert.Contains(t, out, "1. draft (delegation_agent)")
	assert.Contains(t, out, `2. stamp (direct_tool_use) <- [draft["intro"]]`)
}

func TestValidate_Invalid(t *testing.T) {
	cyclic := `{"plan_name": "loop", "activities": [
	  {"id": "a", "activity_type": "direct_tool_use", "dependencies": [{"source": "b"}]},
	  {"id": "b", "activity_type": "direct_tool_use", "dependencies": [{"source": "a"}]}]}`

	_, err := execute(t, "validate", writeFile(t, "plan.json", cyclic))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	cfg := writeFile(t, "planmesh.yaml", testConfig)
	planPath := writeFile(t, "plan.json", testPlan)

	out, err := execute(t, "run", planPath, "-c", cfg, "-q", "write a brief")
	require.NoError(t, err)
	assert.Equal(t, "approved\n", out)
}

func TestRun_JSON(t *testing.T) {
	cfg := writeFile(t, "planmesh.yaml", testConfig)
	planPath := writeFile(t, "plan.json", testPlan)

	out, err := execute(t, "run", planPath, "-c", cfg, "-o", "json", "--conversation", "conv-7")
	require.NoError(t, err)

	var res struct {
		ConversationID string `json:"conversation_id"`
		Success        bool   `json:"success"`
		Output         string `json:"output"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "conv-7", res.ConversationID)
	assert.Equal(t, "approved", res.Output)
}

func TestRun_Failure(t *testing.T) {
	failing := `{"plan_name": "broken", "activities": [
	  {"id": "a", "activity_type": "direct_tool_use",
	   "tools": [{"tool_to_use": "missing"}], "dependencies": []}]}`

	cfg := writeFile(t, "planmesh.yaml", "logging:\n  level: error\n")
	_, err := execute(t, "run", writeFile(t, "plan.json", failing), "-c", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "activity a failed (ToolExecutionError)")
}

func TestRun_BadOutput(t *testing.T) {
	_, err := execute(t, "run", "plan.json", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planmesh.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	_, err = execute(t, "validate", path)
	assert.Error(t, err, "a config file is not a plan")

	_, err = execute(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")
}
