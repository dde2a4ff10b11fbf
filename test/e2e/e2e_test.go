// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convocore/internal/catalog"
	"convocore/internal/common/logger"
	"convocore/internal/dispatch"
	"convocore/internal/flow"
	"convocore/internal/ingress"
	"convocore/internal/intent"
	"convocore/internal/models"
	"convocore/internal/provider"
	"convocore/internal/provider/ai"
	providerdata "convocore/internal/provider/data"
	"convocore/internal/provider/messaging"
	"convocore/internal/session"
	"convocore/pkg/registry"
)

// channelRecorder stands in for the chat channel's REST API and records
// every message body the orchestrator delivers.
type channelRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (c *channelRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			To   string `json:"to"`
			Text struct {
				Body string `json:"body"`
			} `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.texts = append(c.texts, payload.Text.Body)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (c *channelRecorder) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

type harness struct {
	apiURL  string
	channel *channelRecorder
	sqlMock sqlmock.Sqlmock
}

// newHarness boots the full pipeline in process: HTTP ingress, dispatcher,
// flow manager, intent engine, Redis-backed sessions and the shipped demo
// seed catalog. Only the chat channel, the AI service and the business
// database are test doubles.
func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.NewNoOpLogger()

	mr := miniredis.RunT(t)
	sessions := session.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	_, thisFile, _, ok := runtime.Caller(0)
	require.True(t, ok)
	seed, err := registry.LoadSeed(filepath.Join(filepath.Dir(thisFile), "..", "..", "configs", "seed.json"))
	require.NoError(t, err)
	catalogs := catalog.NewCache(registry.NewStore(seed), 5*time.Minute, log)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	channel := &channelRecorder{}
	channelServer := httptest.NewServer(channel.handler())
	t.Cleanup(channelServer.Close)

	aiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "Con gusto te cuento más."})
	}))
	t.Cleanup(aiServer.Close)

	providers := provider.NewRegistry()
	providers.RegisterData("postgres", providerdata.NewPostgresSource(db))
	providers.RegisterMessaging("http", messaging.NewHTTPProvider(&messaging.HTTPConfig{
		BaseURL: channelServer.URL,
		Timeout: 2 * time.Second,
	}))
	providers.RegisterAI("openai", ai.NewGenAIProvider(&ai.GenAIConfig{
		BaseURL: aiServer.URL,
		Timeout: 2 * time.Second,
	}))

	manager := flow.NewManager(catalogs, sessions, intent.NewEngine(nil, log), providers, nil, flow.Options{}, log)

	dispatcher := dispatch.NewDispatcher(4, 16, func(ctx context.Context, msg *models.InboundMessage) {
		_, _ = manager.HandleMessage(ctx, msg)
	}, log)
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.Start(ctx)
	t.Cleanup(func() {
		dispatcher.Stop()
		cancel()
	})

	mux := http.NewServeMux()
	ingress.NewServer(dispatcher, manager, log).Routes(mux)
	api := httptest.NewServer(mux)
	t.Cleanup(api.Close)

	return &harness{apiURL: api.URL, channel: channel, sqlMock: mock}
}

func (h *harness) post(t *testing.T, path string, body map[string]string) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(h.apiURL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func (h *harness) send(t *testing.T, user, text string) {
	t.Helper()
	resp := h.post(t, "/v1/messages", map[string]string{
		"tenantId":      "demo",
		"channelUserId": user,
		"text":          text,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func (h *harness) waitForReplies(t *testing.T, count int) []string {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(h.channel.sent()) >= count
	}, 3*time.Second, 10*time.Millisecond, "expected %d channel deliveries, got %d", count, len(h.channel.sent()))
	return h.channel.sent()
}

func TestGreetingTurn(t *testing.T) {
	h := newHarness(t)

	h.send(t, "u-greeting", "hola")

	replies := h.waitForReplies(t, 1)
	assert.Equal(t, "¡Hola! Soy el asistente de Demo Services. ¿En qué puedo ayudarte?", replies[0])
}

func TestBookingFlowEndToEnd(t *testing.T) {
	h := newHarness(t)

	h.sqlMock.ExpectQuery("SELECT count").
		WithArgs("demo", "el viernes", "4").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	h.send(t, "u-booking", "quiero reservar")
	replies := h.waitForReplies(t, 1)
	assert.Equal(t, "¿Para qué fecha lo necesitas?", replies[0])

	h.send(t, "u-booking", "el viernes")
	replies = h.waitForReplies(t, 2)
	assert.Equal(t, "¿Para cuántas personas?", replies[1])

	h.send(t, "u-booking", "somos 4")
	replies = h.waitForReplies(t, 3)
	assert.Contains(t, replies[2], "Esto es lo que encontré")
	assert.Contains(t, replies[2], "available")

	assert.NoError(t, h.sqlMock.ExpectationsWereMet())
}

func TestHandoffSilencesAutomation(t *testing.T) {
	h := newHarness(t)

	h.send(t, "u-handoff", "necesito hablar con un asesor")
	replies := h.waitForReplies(t, 1)
	assert.Equal(t, "Te comunico con una persona del equipo, en breve te atienden.", replies[0])

	// Once a human owns the conversation the bot must not answer again.
	h.send(t, "u-handoff", "sigo esperando")
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, h.channel.sent(), 1)
}

func TestCloseRestartsConversation(t *testing.T) {
	h := newHarness(t)

	h.send(t, "u-close", "quiero hablar con un agente")
	h.waitForReplies(t, 1)

	resp := h.post(t, "/v1/conversations/close", map[string]string{
		"tenantId":      "demo",
		"channelUserId": "u-close",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	replies := h.waitForReplies(t, 2)
	assert.Equal(t, "La conversación ha sido cerrada. ¡Gracias por escribirnos!", replies[1])

	h.send(t, "u-close", "hola")
	replies = h.waitForReplies(t, 3)
	assert.Equal(t, "¡Hola! Soy el asistente de Demo Services. ¿En qué puedo ayudarte?", replies[2])
}

func TestUnknownTenantRejectedOnClose(t *testing.T) {
	h := newHarness(t)

	resp := h.post(t, "/v1/conversations/close", map[string]string{
		"tenantId":      "ghost",
		"channelUserId": "u-any",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
