package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/CartBot/internal/action"
	"github.com/Kerhoff/CartBot/internal/apperr"
	"github.com/Kerhoff/CartBot/internal/assistant"
	"github.com/Kerhoff/CartBot/internal/models"
)

type fakeStream struct {
	snapshots []assistant.Partial
	err       error
	pos       int
	closed    bool
}

func (s *fakeStream) Next() bool {
	if s.pos >= len(s.snapshots) {
		return false
	}
	s.pos++
	return true
}

func (s *fakeStream) Current() assistant.Partial { return s.snapshots[s.pos-1] }
func (s *fakeStream) Err() error                 { return s.err }
func (s *fakeStream) Close() error               { s.closed = true; return nil }

// fakeModel records the prompt and replays a scripted stream.
type fakeModel struct {
	stream *fakeStream
	err    error
	prompt string
}

func (m *fakeModel) Stream(_ context.Context, prompt string) (assistant.PartialStream, error) {
	m.prompt = prompt
	if m.err != nil {
		return nil, m.err
	}
	return m.stream, nil
}

// hangingStream never produces a snapshot and ends only when ctx does.
type hangingStream struct {
	ctx context.Context
}

func (s *hangingStream) Next() bool {
	<-s.ctx.Done()
	return false
}

func (s *hangingStream) Current() assistant.Partial { return assistant.Partial{} }
func (s *hangingStream) Err() error                 { return s.ctx.Err() }
func (s *hangingStream) Close() error               { return nil }

type hangingModel struct{}

func (hangingModel) Stream(ctx context.Context, _ string) (assistant.PartialStream, error) {
	return &hangingStream{ctx: ctx}, nil
}

func amountOf(n int) *int { return &n }

func TestAskResolvesReplyWithoutApplying(t *testing.T) {
	model := &fakeModel{stream: &fakeStream{snapshots: []assistant.Partial{
		{Actions: []assistant.PartialAction{{Action: "add", Name: "eggs", Amount: amountOf(6)}}},
		{Actions: []assistant.PartialAction{
			{Action: "add", Name: "eggs", Amount: amountOf(6)},
			{Action: "complete", Name: "milk"},
		}, Message: "Added eggs and checked off milk."},
	}}}
	f := newFixture(t, Config{Model: model, AssistantHistoryLimit: 1})
	ann := f.user(t, "ann")
	group := f.personal(t, ann)
	_, err := f.svc.ExecuteActions(f.ctx, ann, group.ID, []action.Raw{add("milk", 2)})
	require.NoError(t, err)

	var partials int
	reply, err := f.svc.Ask(f.ctx, ann, group.ID, AskInput{
		Prompt: "add eggs, I got the milk",
		RecentMessages: []models.Message{
			{Role: models.MessageRoleUser, Content: "old question"},
			{Role: models.MessageRoleAssistant, Content: "old answer"},
		},
	}, func(assistant.Partial) error {
		partials++
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, partials)
	assert.True(t, model.stream.closed)
	assert.Equal(t, []action.Action{
		action.Add{Name: "eggs", Amount: 6},
		action.Complete{Name: "milk"},
	}, reply.Actions)
	assert.Equal(t, "Added eggs and checked off milk.", reply.Message)

	assert.Contains(t, model.prompt, "- milk: 2\n")
	assert.Contains(t, model.prompt, "Assistant: old answer")
	assert.NotContains(t, model.prompt, "old question")

	items, err := f.svc.GetItems(f.ctx, ann, group.ID)
	require.NoError(t, err)
	assert.Equal(t, []itemState{{Name: "milk", Amount: 2}}, states(items))
}

func TestAskAndApply(t *testing.T) {
	model := &fakeModel{stream: &fakeStream{snapshots: []assistant.Partial{
		{Actions: []assistant.PartialAction{
			{Action: "add", Name: "Milk", Amount: amountOf(3)},
			{Action: "complete", Name: "milk"},
		}, Message: "Done."},
	}}}
	f := newFixture(t, Config{Model: model})
	ann := f.user(t, "ann")
	group := f.personal(t, ann)
	_, err := f.svc.ExecuteActions(f.ctx, ann, group.ID, []action.Raw{add("milk", 2)})
	require.NoError(t, err)

	reply, items, err := f.svc.AskAndApply(f.ctx, ann, group.ID, AskInput{Prompt: "more milk, then tick it"})
	require.NoError(t, err)
	assert.Equal(t, "Done.", reply.Message)
	assert.Equal(t, []itemState{{Name: "milk", Amount: 5, IsCompleted: true}}, states(items))
}

func TestAskFailures(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t, Config{})
		ann := f.user(t, "ann")

		_, err := f.svc.Ask(f.ctx, ann, f.personal(t, ann).ID, AskInput{Prompt: "hi"}, nil)
		requireCode(t, err, apperr.ErrAssistant)
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newFixture(t, Config{Model: &fakeModel{stream: &fakeStream{}}})
		guest := f.anonymous(t)

		_, err := f.svc.Ask(f.ctx, guest, f.personal(t, guest).ID, AskInput{Prompt: "hi"}, nil)
		requireCode(t, err, apperr.ErrAnonymousForbidden)
	})

	t.Run("anonymous allowed", func(t *testing.T) {
		f := newFixture(t, Config{Model: &fakeModel{stream: &fakeStream{}}, AssistantAllowAnonymous: true})
		guest := f.anonymous(t)

		_, err := f.svc.Ask(f.ctx, guest, f.personal(t, guest).ID, AskInput{Prompt: "hi"}, nil)
		require.NoError(t, err)
	})

	t.Run("empty prompt", func(t *testing.T) {
		f := newFixture(t, Config{Model: &fakeModel{stream: &fakeStream{}}})
		ann := f.user(t, "ann")

		_, err := f.svc.Ask(f.ctx, ann, f.personal(t, ann).ID, AskInput{Prompt: "   "}, nil)
		requireCode(t, err, apperr.ErrValidation)
	})

	t.Run("not a member", func(t *testing.T) {
		f := newFixture(t, Config{Model: &fakeModel{stream: &fakeStream{}}})
		ann := f.user(t, "ann")
		bob := f.user(t, "bob")

		_, err := f.svc.Ask(f.ctx, bob, f.personal(t, ann).ID, AskInput{Prompt: "hi"}, nil)
		requireCode(t, err, apperr.ErrNotMember)
	})

	t.Run("stream breaks", func(t *testing.T) {
		boom := errors.New("upstream closed")
		model := &fakeModel{stream: &fakeStream{
			snapshots: []assistant.Partial{{Message: "Add"}},
			err:       boom,
		}}
		f := newFixture(t, Config{Model: model})
		ann := f.user(t, "ann")

		var delivered []string
		_, err := f.svc.Ask(f.ctx, ann, f.personal(t, ann).ID, AskInput{Prompt: "hi"}, func(p assistant.Partial) error {
			delivered = append(delivered, p.Message)
			return nil
		})
		requireCode(t, err, apperr.ErrAssistant)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"Add"}, delivered)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.cfg.Metrics.AssistantRequests.WithLabelValues("failure")))
	})

	t.Run("model refuses", func(t *testing.T) {
		f := newFixture(t, Config{Model: &fakeModel{err: errors.New("401")}})
		ann := f.user(t, "ann")

		_, err := f.svc.Ask(f.ctx, ann, f.personal(t, ann).ID, AskInput{Prompt: "hi"}, nil)
		requireCode(t, err, apperr.ErrAssistant)
		assert.False(t, apperr.IsExpected(err))
	})
}

func TestAskAndApplyLeavesListOnFailedApply(t *testing.T) {
	model := &fakeModel{stream: &fakeStream{snapshots: []assistant.Partial{
		{Actions: []assistant.PartialAction{
			{Action: "add", Name: "bread", Amount: amountOf(1)},
			{Action: "delete", Name: "caviar"},
		}},
	}}}
	f := newFixture(t, Config{Model: model})
	ann := f.user(t, "ann")
	group := f.personal(t, ann)

	_, _, err := f.svc.AskAndApply(f.ctx, ann, group.ID, AskInput{Prompt: "swap caviar for bread"})
	requireCode(t, err, apperr.ErrItemNotFound)

	items, err := f.svc.GetItems(f.ctx, ann, group.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAskGivesUpWhenTheModelHangs(t *testing.T) {
	f := newFixture(t, Config{Model: hangingModel{}, AssistantTimeout: 20 * time.Millisecond})
	ann := f.user(t, "ann")
	group := f.personal(t, ann)

	done := make(chan error, 1)
	go func() {
		_, _, err := f.svc.AskAndApply(f.ctx, ann, group.ID, AskInput{Prompt: "add milk"})
		done <- err
	}()

	select {
	case err := <-done:
		requireCode(t, err, apperr.ErrAssistant)
		assert.Equal(t, "the assistant did not answer in time", apperr.MessageOf(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("assistant request did not time out")
	}
}

func TestAskStopsWhenTheCallerCancels(t *testing.T) {
	f := newFixture(t, Config{Model: hangingModel{}})
	ann := f.user(t, "ann")
	group := f.personal(t, ann)

	ctx, cancel := context.WithCancel(f.ctx)
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Ask(ctx, ann, group.ID, AskInput{Prompt: "add milk"}, nil)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		requireCode(t, err, apperr.ErrAssistant)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("assistant request ignored cancellation")
	}
}
