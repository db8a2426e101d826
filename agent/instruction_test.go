package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/core"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(context.Context, TaskInput) (string, error) { return m.text, m.err }

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("Handle {{.description}} in {{.activity}}")
	assert.True(t, inst.IsStatic())

	got, err := inst.Resolve(context.Background(), TaskInput{
		Description: "the report",
		Activity:    core.ActivityInfo{ActivityID: "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Handle the report in A", got)
}

func TestInstruction_MissingField(t *testing.T) {
	got, err := NewInstructionFromText("[{{.unknown}}]").Resolve(context.Background(), TaskInput{})
	require.NoError(t, err)
	assert.Equal(t, "[]", got)
}

func TestInstruction_Provider(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{text: "dynamic"})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(context.Background(), TaskInput{})
	require.NoError(t, err)
	assert.Equal(t, "dynamic", got)

	boom := errors.New("boom")
	_, err = NewInstructionFromProvider(mockProvider{err: boom}).Resolve(context.Background(), TaskInput{})
	assert.ErrorIs(t, err, boom)
}

func TestInstruction_Func(t *testing.T) {
	inst := NewInstructionFromFunc(func(_ context.Context, in TaskInput) (string, error) {
		return "skill=" + in.Skill, nil
	})
	got, err := inst.Resolve(context.Background(), TaskInput{Skill: "code"})
	require.NoError(t, err)
	assert.Equal(t, "skill=code", got)
}
