package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digital-Creators-Team/reward-roulette-module/auth"
	"github.com/Digital-Creators-Team/reward-roulette-module/config"
	"github.com/Digital-Creators-Team/reward-roulette-module/pkg/providers"
	"github.com/Digital-Creators-Team/reward-roulette-module/reward"
)

const testSecret = "test-secret"

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) GetJSON(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return providers.ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (m *memStore) SetJSON(_ context.Context, key string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type stubGameProvider struct {
	status string
	err    error
}

func (s *stubGameProvider) GetGame(_ context.Context, gameID string) (*providers.GameStatus, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &providers.GameStatus{ID: gameID, Status: s.status}, nil
}

type stubCatalogProvider struct {
	prizes []providers.PrizeRecord
	err    error
}

func (s *stubCatalogProvider) ListPrizes(context.Context) ([]providers.PrizeRecord, error) {
	return s.prizes, s.err
}

func (s *stubCatalogProvider) CreatePrize(_ context.Context, input *providers.PrizeInput) (*providers.PrizeRecord, error) {
	record := providers.PrizeRecord{ID: "new", Title: input.Title, Tier: input.Tier, IsActive: input.IsActive}
	s.prizes = append(s.prizes, record)
	return &record, nil
}

func (s *stubCatalogProvider) UpdatePrize(_ context.Context, id string, input *providers.PrizeInput) (*providers.PrizeRecord, error) {
	return &providers.PrizeRecord{ID: id, Title: input.Title, Tier: input.Tier, IsActive: input.IsActive}, nil
}

func (s *stubCatalogProvider) DeletePrize(context.Context, string) error { return nil }

func (s *stubCatalogProvider) Invalidate() {}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{Port: 8080},
		JWT:         config.JWTConfig{Secret: testSecret, Expiration: time.Hour},
		Roulette: config.RouletteConfig{
			DefaultOdds: map[string]float64{"large": 0.02, "medium": 0.05, "small": 0.10},
			TierValues:  map[string]float64{"large": 50, "medium": 10, "small": 2.5},
		},
	}
}

func newTestApp(t *testing.T) (*App, *memStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app := New(Options{Config: testConfig(), Logger: zerolog.Nop()})
	t.Cleanup(app.feedService.Stop)

	store := newMemStore()
	app.SetStore(store)
	app.SetGameProvider(&stubGameProvider{status: providers.GameStatusFinished})
	app.RegisterRewardRoutes()

	return app, store
}

func userToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, "user-1", "player", time.Hour)
	require.NoError(t, err)
	return token
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateAdminToken(testSecret, "admin-1", "operator", true, time.Hour)
	require.NoError(t, err)
	return token
}

func doRequest(app *App, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	app.Router().ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestSpinRequiresAuth(t *testing.T) {
	app, _ := newTestApp(t)

	w := doRequest(app, http.MethodPost, "/api/rewards/game-1/spin", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSpinWithoutRolls(t *testing.T) {
	app, _ := newTestApp(t)

	w := doRequest(app, http.MethodPost, "/api/rewards/game-1/spin", userToken(t), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSpinRefusedWhileGamePlaying(t *testing.T) {
	app, _ := newTestApp(t)
	app.SetGameProvider(&stubGameProvider{status: providers.GameStatusPlaying})

	token := userToken(t)
	w := doRequest(app, http.MethodPost, "/api/rewards/game-1/steps/register", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(app, http.MethodPost, "/api/rewards/game-1/spin", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStepThenSpinFlow(t *testing.T) {
	app, _ := newTestApp(t)
	token := userToken(t)

	w := doRequest(app, http.MethodPost, "/api/rewards/game-1/steps/register", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decodeData[reward.State](t, w)
	assert.Equal(t, 1, state.AvailableRolls)

	// Repeating the step does not add a roll
	w = doRequest(app, http.MethodPost, "/api/rewards/game-1/steps/register", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	state = decodeData[reward.State](t, w)
	assert.Equal(t, 1, state.AvailableRolls)

	w = doRequest(app, http.MethodPost, "/api/rewards/game-1/spin", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	spin := decodeData[SpinResponse](t, w)
	assert.Equal(t, 0, spin.State.AvailableRolls)
	assert.Len(t, spin.State.RollHistory, 1)
	assert.NotEmpty(t, spin.Roll.ID)
}

func TestUnknownStepRejected(t *testing.T) {
	app, _ := newTestApp(t)

	w := doRequest(app, http.MethodPost, "/api/rewards/game-1/steps/retweet", userToken(t), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStateLazyCreation(t *testing.T) {
	app, _ := newTestApp(t)

	w := doRequest(app, http.MethodGet, "/api/rewards/game-1/state", userToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decodeData[reward.State](t, w)
	assert.Equal(t, "game-1", state.GameID)
	assert.Equal(t, 0, state.AvailableRolls)
	assert.Empty(t, state.RollHistory)
}

func TestNonAdminGrantIsNoOp(t *testing.T) {
	app, _ := newTestApp(t)

	w := doRequest(app, http.MethodPost, "/api/rewards/game-1/grant", userToken(t), gin.H{"count": 5})
	require.Equal(t, http.StatusOK, w.Code)
	state := decodeData[reward.State](t, w)
	assert.Equal(t, 0, state.AvailableRolls, "non-admin grant must leave the state unchanged")
}

func TestAdminGrant(t *testing.T) {
	app, _ := newTestApp(t)

	w := doRequest(app, http.MethodPost, "/api/rewards/game-1/grant", adminToken(t), gin.H{"count": 5})
	require.Equal(t, http.StatusOK, w.Code)
	state := decodeData[reward.State](t, w)
	assert.Equal(t, 5, state.AvailableRolls)

	w = doRequest(app, http.MethodPost, "/api/rewards/game-1/grant", adminToken(t), gin.H{"count": -2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeliveryFlow(t *testing.T) {
	app, _ := newTestApp(t)
	admin := adminToken(t)

	// Guarantee a winning roll
	w := doRequest(app, http.MethodPut, "/api/rewards/config", admin, gin.H{"odds": gin.H{"large": 1.0}})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(app, http.MethodPost, "/api/rewards/game-1/grant", admin, gin.H{"count": 1})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(app, http.MethodPost, "/api/rewards/game-1/spin", userToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	spin := decodeData[SpinResponse](t, w)
	require.Equal(t, reward.TierLarge, spin.Roll.Tier)

	// Non-admin delivery is a no-op
	path := fmt.Sprintf("/api/rewards/game-1/rolls/%s/deliver", spin.Roll.ID)
	w = doRequest(app, http.MethodPost, path, userToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decodeData[reward.State](t, w)
	assert.False(t, state.RollHistory[0].Delivered)

	// Admin delivery marks the roll
	w = doRequest(app, http.MethodPost, path, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	state = decodeData[reward.State](t, w)
	require.True(t, state.RollHistory[0].Delivered)
	firstDeliveredAt := state.RollHistory[0].DeliveredAt

	// Second delivery does not refresh deliveredAt
	w = doRequest(app, http.MethodPost, path, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	state = decodeData[reward.State](t, w)
	assert.Equal(t, firstDeliveredAt.UnixNano(), state.RollHistory[0].DeliveredAt.UnixNano())

	// Delivered tally and value show up on the config endpoint
	w = doRequest(app, http.MethodGet, "/api/rewards/config", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cfg := decodeData[ConfigResponse](t, w)
	assert.Equal(t, 1, cfg.DeliveredCounts[reward.TierLarge])
	assert.Equal(t, "50", cfg.DeliveredValue.String())
}

func TestNonAdminOddsUpdateIsNoOp(t *testing.T) {
	app, _ := newTestApp(t)

	w := doRequest(app, http.MethodPut, "/api/rewards/config", userToken(t), gin.H{"odds": gin.H{"large": 1.0}})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(app, http.MethodGet, "/api/rewards/config", userToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	cfg := decodeData[ConfigResponse](t, w)
	assert.Equal(t, 0.02, cfg.Odds[reward.TierLarge], "odds must keep their defaults")
}

func TestAdminClearState(t *testing.T) {
	app, _ := newTestApp(t)
	admin := adminToken(t)

	w := doRequest(app, http.MethodPost, "/api/rewards/game-1/grant", admin, gin.H{"count": 3})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(app, http.MethodDelete, "/api/rewards/game-1", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(app, http.MethodGet, "/api/rewards/game-1/state", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decodeData[reward.State](t, w)
	assert.Equal(t, 0, state.AvailableRolls)
}

func TestGetPrizesWithCatalogFallback(t *testing.T) {
	app, _ := newTestApp(t)
	admin := adminToken(t)
	app.SetCatalogProvider(&stubCatalogProvider{prizes: []providers.PrizeRecord{
		{ID: "p1", Title: "Sticker pack", Description: "club stickers", Tier: "large", IsActive: true},
	}})

	w := doRequest(app, http.MethodPut, "/api/rewards/config", admin, gin.H{"odds": gin.H{"large": 1.0}})
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(app, http.MethodPost, "/api/rewards/game-1/grant", admin, gin.H{"count": 1})
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(app, http.MethodPost, "/api/rewards/game-1/spin", userToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(app, http.MethodGet, "/api/rewards/game-1/prizes", userToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decodeData[reward.PrizeSummary](t, w)
	require.Len(t, summary.Pending, 1)
	assert.Equal(t, "Sticker pack", summary.Pending[0].Title)
	assert.Empty(t, summary.Claimed)
}

func TestListCatalog(t *testing.T) {
	app, _ := newTestApp(t)
	app.SetCatalogProvider(&stubCatalogProvider{prizes: []providers.PrizeRecord{
		{ID: "p1", Title: "Sticker pack", Tier: "small", IsActive: true},
	}})

	w := doRequest(app, http.MethodGet, "/api/catalog", userToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	prizes := decodeData[[]providers.PrizeRecord](t, w)
	require.Len(t, prizes, 1)
	assert.Equal(t, "p1", prizes[0].ID)
}

func TestHealthCheckUnauthenticated(t *testing.T) {
	app, _ := newTestApp(t)
	app.RegisterHealthCheck()

	w := doRequest(app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
