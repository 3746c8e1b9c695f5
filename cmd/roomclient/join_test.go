package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DoyleJ11/minigame-sdk/internal/codec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("MINIGAME_ID", "from-env")
	t.Setenv("MINIGAME_TESTING_ACCESS_CODE", "env-code")
	t.Setenv("MINIGAME_PLAYERS_TO_START", "4")

	cmd := joinCmd()
	require.NoError(t, cmd.Flags().Set("minigame-id", "from-flag"))
	require.NoError(t, cmd.Flags().Set("encoding", "Json"))

	cfg, err := loadConfig(cmd, joinFlags{minigameID: "from-flag", encoding: "Json"})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.MinigameID)
	assert.Equal(t, "env-code", cfg.TestingAccessCode)
	assert.Equal(t, 4, cfg.PlayersToStart)
	assert.Equal(t, codec.EncodingJSON, cfg.EncodingValue())
}

func TestFlagsCanSupplyRequiredValues(t *testing.T) {
	t.Setenv("MINIGAME_ID", "")
	t.Setenv("MINIGAME_TESTING_ACCESS_CODE", "")

	cmd := joinCmd()
	require.NoError(t, cmd.Flags().Set("minigame-id", "m"))
	require.NoError(t, cmd.Flags().Set("access-code", "c"))

	cfg, err := loadConfig(cmd, joinFlags{minigameID: "m", accessCode: "c"})
	require.NoError(t, err)
	assert.Equal(t, "m", cfg.MinigameID)
	assert.Equal(t, "c", cfg.TestingAccessCode)

	cmd = joinCmd()
	_, err = loadConfig(cmd, joinFlags{})
	assert.Error(t, err)
}

func TestRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{Name: "roomclient_test_total", Help: "test"}).Inc()
	srv := httptest.NewServer(routes(reg))
	t.Cleanup(srv.Close)

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
