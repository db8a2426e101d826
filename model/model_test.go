package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedModel struct {
	chunks []Response
	err    error
}

func (s scriptedModel) Generate(context.Context, Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, len(s.chunks))
	errCh := make(chan error, 1)
	for _, c := range s.chunks {
		respCh <- c
	}
	if s.err != nil {
		errCh <- s.err
	}
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (scriptedModel) Info() Info { return Info{Name: "scripted"} }

func TestCollect(t *testing.T) {
	t.Run("final chunk wins", func(t *testing.T) {
		m := scriptedModel{chunks: []Response{
			{Partial: true, Text: "he"},
			{Partial: true, Text: "llo"},
			{Text: "hello", FinishReason: "stop", Usage: &TokenUsage{TotalTokens: 7}},
		}}
		res, err := Collect(context.Background(), m, Request{})
		require.NoError(t, err)
		assert.Equal(t, "hello", res.Text)
		assert.Equal(t, "stop", res.FinishReason)
		assert.Equal(t, 7, res.Usage.TotalTokens)
	})

	t.Run("partials only", func(t *testing.T) {
		m := scriptedModel{chunks: []Response{{Partial: true, Text: "a"}, {Partial: true, Text: "b"}}}
		res, err := Collect(context.Background(), m, Request{})
		require.NoError(t, err)
		assert.Equal(t, "ab", res.Text)
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Collect(context.Background(), scriptedModel{err: boom}, Request{})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Collect(context.Background(), scriptedModel{chunks: []Response{{Text: "  "}}}, Request{})
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestMockModel(t *testing.T) {
	m := NewMockModel("mock-1")
	m.AddResponse("ping", "pong")

	res, err := Collect(context.Background(), m, Request{Messages: []Message{UserMessage("ping")}, Stream: true})
	require.NoError(t, err)
	assert.Equal(t, "pong", res.Text)

	res, err = Collect(context.Background(), m, Request{Messages: []Message{UserMessage("other")}})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", res.Text)

	_, err = Collect(context.Background(), m, Request{})
	assert.Error(t, err)

	assert.Len(t, m.Requests(), 3)
	assert.Equal(t, Info{Name: "mock-1", Provider: "mock"}, m.Info())
}
