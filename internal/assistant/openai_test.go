package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/CartBot/internal/action"
)

func sseServer(t *testing.T, deltas []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])
		assert.Equal(t, true, body["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range deltas {
			content, _ := json.Marshal(delta)
			fmt.Fprintf(w, `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"test-model","choices":[{"index":0,"delta":{"content":%s},"finish_reason":null}]}`+"\n\n", content)
		}
		io.WriteString(w, "data: [DONE]\n\n")
	}))
}

func TestOpenAIModelStreamsSnapshots(t *testing.T) {
	srv := sseServer(t, []string{
		`{"actions":[{"action":"add","na`,
		`me":"milk","amount":2},{"action":"delete","name":"bre`,
		`ad","amount":null}],"message":"Added milk`,
		`, removed bread."}`,
	})
	defer srv.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	model := NewOpenAIModel("test-key", "test-model", logger,
		option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))

	stream, err := model.Stream(context.Background(), "add milk")
	require.NoError(t, err)
	defer stream.Close()

	var snapshots int
	reply, err := Collect(stream, func(Partial) error {
		snapshots++
		return nil
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, snapshots, 3)
	assert.Equal(t, []action.Action{
		action.Add{Name: "milk", Amount: 2},
		action.Delete{Name: "bread"},
	}, reply.Actions)
	assert.Equal(t, "Added milk, removed bread.", reply.Message)
}

func TestOpenAIModelRejectsTruncatedReply(t *testing.T) {
	srv := sseServer(t, []string{`{"actions":[],"message":"cut`})
	defer srv.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	model := NewOpenAIModel("test-key", "test-model", logger,
		option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))

	stream, err := model.Stream(context.Background(), "hi")
	require.NoError(t, err)
	defer stream.Close()

	_, err = Collect(stream, nil)
	assert.ErrorContains(t, err, "failed to decode assistant reply")
}
