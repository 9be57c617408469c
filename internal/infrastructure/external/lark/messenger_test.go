package lark

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMessage struct {
	ReceiveIDType string
	ReceiveID     string `json:"receive_id"`
	MsgType       string `json:"msg_type"`
	Content       string `json:"content"`
}

// fakeOpenAPI serves the token and message endpoints the messenger uses
func fakeOpenAPI(t *testing.T, code int) (*httptest.Server, func() []sentMessage) {
	t.Helper()
	var mu sync.Mutex
	var sent []sentMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/tenant_access_token/internal"):
			_, _ = io.WriteString(w, `{"code":0,"msg":"ok","tenant_access_token":"t-test","expire":7200}`)
		case strings.HasSuffix(r.URL.Path, "/im/v1/messages"):
			var msg sentMessage
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &msg)
			msg.ReceiveIDType = r.URL.Query().Get("receive_id_type")
			mu.Lock()
			sent = append(sent, msg)
			mu.Unlock()
			if code != 0 {
				_, _ = io.WriteString(w, `{"code":230001,"msg":"invalid receive_id"}`)
				return
			}
			_, _ = io.WriteString(w, `{"code":0,"msg":"success","data":{"message_id":"om_1"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	return srv, func() []sentMessage {
		mu.Lock()
		defer mu.Unlock()
		return append([]sentMessage(nil), sent...)
	}
}

func newTestMessenger(baseURL string) *Messenger {
	client := NewSDKClient(Config{AppID: "cli_test", AppSecret: "secret", BaseURL: baseURL}, zap.NewNop())
	return NewMessenger(client, zap.NewNop())
}

func TestMessenger_SendMessage(t *testing.T) {
	srv, sent := fakeOpenAPI(t, 0)
	m := newTestMessenger(srv.URL)

	text := `Liquidation "TDPTES-2024-00001" returned`
	require.NoError(t, m.SendMessage(context.Background(), "ou_rc", text))

	msgs := sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "open_id", msgs[0].ReceiveIDType)
	assert.Equal(t, "ou_rc", msgs[0].ReceiveID)
	assert.Equal(t, "text", msgs[0].MsgType)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Content), &content))
	assert.Equal(t, text, content["text"])
}

func TestMessenger_SendCardMessage(t *testing.T) {
	srv, sent := fakeOpenAPI(t, 0)
	m := newTestMessenger(srv.URL)

	card := map[string]interface{}{"header": map[string]string{"title": "Endorsed to COA"}}
	require.NoError(t, m.SendCardMessage(context.Background(), "ou_hei", card))

	msgs := sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "interactive", msgs[0].MsgType)
	assert.JSONEq(t, `{"header":{"title":"Endorsed to COA"}}`, msgs[0].Content)
}

func TestMessenger_APIFailure(t *testing.T) {
	srv, _ := fakeOpenAPI(t, 230001)
	m := newTestMessenger(srv.URL)

	err := m.SendMessage(context.Background(), "ou_gone", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "230001")
}

func TestMessenger_RejectsEmptyInput(t *testing.T) {
	m := newTestMessenger("http://127.0.0.1:1")
	ctx := context.Background()

	assert.Error(t, m.SendMessage(ctx, "", "hello"))
	assert.Error(t, m.SendMessage(ctx, "ou_1", ""))
	assert.Error(t, m.SendCardMessage(ctx, "", map[string]string{}))
	assert.Error(t, m.SendCardMessage(ctx, "ou_1", nil))
}
