package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"eventhub/internal/auth"
	"eventhub/internal/credential"
	"eventhub/internal/dto"
	"eventhub/internal/model"
	"eventhub/internal/notifier"
	"eventhub/internal/payment"
	"eventhub/internal/repo"
	"eventhub/internal/service"
)

const (
	jwtSecret     = "api-test-secret"
	webhookSecret = "whsec_api_test"
)

type fakeIntents struct {
	last payment.IntentRequest
}

func (f *fakeIntents) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	f.last = req
	return &payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	msgs [][]byte
	err  error
}

func (q *fakeQueue) Publish(_ context.Context, msg []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

type testServer struct {
	handler http.Handler
	svc     service.Service
	intents *fakeIntents
	queue   *fakeQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zerolog.Nop()
	hub := notifier.NewHub(&log)
	svc := service.NewService(repo.NewMemoryRepository(), &log, hub, credential.NewIssuer("api-test-credential"))
	ts := &testServer{svc: svc, intents: &fakeIntents{}, queue: &fakeQueue{}}
	ts.handler = NewRouters(&Routers{
		Service:  svc,
		Realtime: hub,
		Auth:     auth.NewVerifier(auth.Config{Secret: jwtSecret}),
		Intents:  ts.intents,
		Webhooks: payment.NewVerifier(webhookSecret),
		Queue:    ts.queue,
		Log:      &log,
	})
	return ts
}

var (
	organizer = model.Principal{ID: "org-1", Name: "Olga", Email: "olga@example.com", Role: model.RoleOrganizer}
	alice     = model.Principal{ID: "alice", Name: "Alice", Email: "alice@example.com", Role: model.RoleAttendee}
	bob       = model.Principal{ID: "bob", Name: "Bob", Email: "bob@example.com", Role: model.RoleAttendee}
)

func token(t *testing.T, p model.Principal) string {
	t.Helper()
	tok, err := auth.Sign(jwtSecret, p, time.Hour)
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Status string          `json:"status"`
	Error  *dto.Error      `json:"error"`
	Data   json.RawMessage `json:"data"`
}

func (ts *testServer) do(t *testing.T, method, path string, p *model.Principal, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		req.Header.Set("Authorization", "Bearer "+token(t, *p))
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func eventBody(types ...dto.TicketTypeRequest) dto.CreateEventRequest {
	return dto.CreateEventRequest{
		Title:       "Go Conf",
		Description: "All things Go",
		Date:        time.Now().Add(30 * 24 * time.Hour).UTC(),
		Time:        "10:00",
		Location:    "Amsterdam",
		Agenda:      []dto.AgendaItemRequest{{Time: "10:00", Activity: "Keynote"}},
		TicketTypes: types,
	}
}

func (ts *testServer) createEvent(t *testing.T, types ...dto.TicketTypeRequest) model.Event {
	t.Helper()
	w, env := ts.do(t, http.MethodPost, "/api/events", &organizer, eventBody(types...))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var e model.Event
	require.NoError(t, json.Unmarshal(env.Data, &e))
	return e
}

func (ts *testServer) register(t *testing.T, eventID string, p model.Principal, ticketType string) (*httptest.ResponseRecorder, envelope) {
	return ts.do(t, http.MethodPost, "/api/events/"+eventID+"/register", &p, dto.RegisterRequest{TicketType: ticketType})
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Backend is running!", w.Body.String())

	w, _ = ts.do(t, http.MethodGet, "/api/test", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"API is working!"}`, w.Body.String())
}

func TestEventCRUD(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodPost, "/api/events", nil, eventBody(dto.TicketTypeRequest{Name: "GA", Price: 10, Quantity: 5}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	past := eventBody(dto.TicketTypeRequest{Name: "GA", Price: 10, Quantity: 5})
	past.Date = time.Now().Add(-time.Hour)
	w, env := ts.do(t, http.MethodPost, "/api/events", &organizer, past)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.FieldIncorrect, env.Error.Code)

	w, env = ts.do(t, http.MethodPost, "/api/events", &organizer, eventBody())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.FieldIncorrect, env.Error.Code)

	e := ts.createEvent(t, dto.TicketTypeRequest{Name: "GA", Price: 10, Quantity: 5})
	assert.Equal(t, organizer.ID, e.Organizer.ID)
	assert.Equal(t, organizer.Name, e.Organizer.Name)

	w, env = ts.do(t, http.MethodGet, "/api/events", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []model.Event
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, organizer.Email, list[0].Organizer.Email)

	w, _ = ts.do(t, http.MethodGet, "/api/events/"+e.ID, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = ts.do(t, http.MethodGet, "/api/events/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.EventNotFound, env.Error.Code)

	update := eventBody()
	update.Title = "Go Conf 2"
	w, env = ts.do(t, http.MethodPut, "/api/events/"+e.ID, &alice, update)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.NotAuthorized, env.Error.Code)

	w, env = ts.do(t, http.MethodPut, "/api/events/"+e.ID, &organizer, update)
	require.Equal(t, http.StatusOK, w.Code)
	var updated model.Event
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "Go Conf 2", updated.Title)
	assert.Len(t, updated.TicketTypes, 1)

	w, _ = ts.do(t, http.MethodDelete, "/api/events/"+e.ID, &alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = ts.do(t, http.MethodDelete, "/api/events/"+e.ID, &organizer, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = ts.do(t, http.MethodDelete, "/api/events/"+e.ID, &organizer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterEndpoint(t *testing.T) {
	ts := newTestServer(t)
	e := ts.createEvent(t, dto.TicketTypeRequest{Name: "GA", Price: 25, Quantity: 1})

	w, env := ts.register(t, e.ID, alice, "GA")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var reg dto.RegistrationResponse
	require.NoError(t, json.Unmarshal(env.Data, &reg))
	assert.Equal(t, e.Title, reg.Event)
	assert.Equal(t, "GA", reg.TicketType)
	assert.NotEmpty(t, reg.Credential)

	tests := []struct {
		name   string
		event  string
		p      model.Principal
		ticket string
		status int
		code   string
	}{
		{"duplicate", e.ID, alice, "GA", http.StatusBadRequest, dto.RegistrationDuplicate},
		{"sold out", e.ID, bob, "GA", http.StatusBadRequest, dto.TicketsSoldOut},
		{"unknown type", e.ID, bob, "VIP", http.StatusBadRequest, dto.InvalidTicketType},
		{"unknown event", "missing", bob, "GA", http.StatusNotFound, dto.EventNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := ts.register(t, tt.event, tt.p, tt.ticket)
			assert.Equal(t, tt.status, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}

	w, _ = ts.do(t, http.MethodPost, "/api/events/"+e.ID+"/register", &bob, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = ts.do(t, http.MethodGet, "/api/events/"+e.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var public model.Event
	require.NoError(t, json.Unmarshal(env.Data, &public))
	require.Len(t, public.Attendees, 1)
	assert.Empty(t, public.Attendees[0].QRCode)
	assert.Equal(t, 1, public.TicketTypes[0].Sold)
}

func TestCheckInEndpoints(t *testing.T) {
	ts := newTestServer(t)
	e := ts.createEvent(t,
		dto.TicketTypeRequest{Name: "GA", Price: 50, Quantity: 10},
		dto.TicketTypeRequest{Name: "VIP", Price: 100, Quantity: 2},
	)
	_, env := ts.register(t, e.ID, alice, "GA")
	var reg dto.RegistrationResponse
	require.NoError(t, json.Unmarshal(env.Data, &reg))
	w, _ := ts.register(t, e.ID, bob, "VIP")
	require.Equal(t, http.StatusOK, w.Code)

	path := "/api/checkin/" + e.ID + "/checkin"

	w, env = ts.do(t, http.MethodPost, path, &bob, dto.CheckInRequest{QRCode: reg.Credential})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.NotAuthorized, env.Error.Code)

	w, env = ts.do(t, http.MethodPost, path, &organizer, dto.CheckInRequest{QRCode: "QR.unknown"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.InvalidQRCode, env.Error.Code)

	w, env = ts.do(t, http.MethodPost, "/api/checkin/missing/checkin", &organizer, dto.CheckInRequest{QRCode: reg.Credential})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.EventNotFound, env.Error.Code)

	w, env = ts.do(t, http.MethodPost, path, &organizer, dto.CheckInRequest{QRCode: reg.Credential})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.CheckInResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "Alice", resp.Attendee.Name)
	assert.Equal(t, "GA", resp.Attendee.TicketType)

	w, env = ts.do(t, http.MethodPost, path, &organizer, dto.CheckInRequest{QRCode: reg.Credential})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.AlreadyCheckedIn, env.Error.Code)

	w, _ = ts.do(t, http.MethodGet, "/api/checkin/"+e.ID+"/stats", &alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = ts.do(t, http.MethodGet, "/api/checkin/"+e.ID+"/stats", &organizer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, model.Stats{TotalAttendees: 2, CheckedIn: 1, TicketSales: 2, Revenue: 150}, stats)

	w, _ = ts.do(t, http.MethodGet, "/api/checkin/"+e.ID+"/stats", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreatePaymentIntent(t *testing.T) {
	ts := newTestServer(t)
	e := ts.createEvent(t, dto.TicketTypeRequest{Name: "VIP", Price: 99.99, Quantity: 2})

	w, env := ts.do(t, http.MethodPost, "/api/payments/create-payment-intent", &alice, dto.PaymentIntentRequest{EventID: e.ID, TicketType: "VIP"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.PaymentIntentResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "pi_1_secret", resp.ClientSecret)
	assert.Equal(t, payment.IntentRequest{EventID: e.ID, UserID: alice.ID, TicketType: "VIP", Price: 99.99}, ts.intents.last)

	w, env = ts.do(t, http.MethodPost, "/api/payments/create-payment-intent", &alice, dto.PaymentIntentRequest{EventID: e.ID, TicketType: "GA"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.InvalidTicketType, env.Error.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/payments/create-payment-intent", nil, dto.PaymentIntentRequest{EventID: e.ID, TicketType: "VIP"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func (ts *testServer) webhook(t *testing.T, eventType string, header string) *httptest.ResponseRecorder {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"data":{"object":{"id":"pi_9","object":"payment_intent","metadata":{"eventId":"ev-1","userId":"alice","ticketType":"GA"}}}}`, eventType))
	if header == "" {
		header = webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   payload,
			Secret:    webhookSecret,
			Timestamp: time.Now(),
		}).Header
	}
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func TestPaymentWebhook(t *testing.T) {
	ts := newTestServer(t)

	w := ts.webhook(t, "payment_intent.succeeded", "t=1,v1=forged")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ts.queue.msgs)

	w = ts.webhook(t, "payment_intent.succeeded", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	require.Len(t, ts.queue.msgs, 1)
	var sig payment.Signal
	require.NoError(t, json.Unmarshal(ts.queue.msgs[0], &sig))
	assert.Equal(t, payment.Signal{Kind: payment.SignalSucceeded, IntentID: "pi_9", EventID: "ev-1", UserID: "alice", TicketType: "GA"}, sig)

	w = ts.webhook(t, "charge.refunded", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, ts.queue.msgs, 1)

	ts.queue.err = errors.New("broker down")
	w = ts.webhook(t, "payment_intent.payment_failed", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestConfirmedPaymentVisibleOnEvent(t *testing.T) {
	ts := newTestServer(t)
	e := ts.createEvent(t, dto.TicketTypeRequest{Name: "GA", Price: 10, Quantity: 5})
	w, _ := ts.register(t, e.ID, alice, "GA")
	require.Equal(t, http.StatusOK, w.Code)

	outcome, err := ts.svc.ConfirmPayment(context.Background(), e.ID, alice.ID, "GA")
	require.NoError(t, err)
	assert.Equal(t, service.PaymentApplied, outcome)

	got, err := ts.svc.GetEvent(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, got.Attendees[0].PaymentStatus)
}
