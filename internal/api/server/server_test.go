package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"authguard/internal/api/server"
	"authguard/internal/config"
	"authguard/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		port    string
		wantErr bool
	}{
		{name: "Valid Port", port: "5000"},
		{name: "Invalid Port", port: "http", wantErr: true},
		{name: "Empty Port", port: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t, func(cfg *config.Config) { cfg.API.Port = tt.port })

			srv, err := server.New(tc.Config, tc.App)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	tc := testutil.NewTestContext(t, func(cfg *config.Config) { cfg.API.Port = "0" })
	srv, err := server.New(tc.Config, tc.App)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	// a shut down server refuses to start and reports it as a clean exit
	assert.NoError(t, srv.Start())
}
