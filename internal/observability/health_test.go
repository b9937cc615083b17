// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthServer_Sync(t *testing.T) {
	var healthy atomic.Bool
	h := NewHealthServer("127.0.0.1:0", func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("db down")
	}, time.Hour)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, h.Sync(context.Background()))
	healthy.Store(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, h.Sync(context.Background()))
}

func TestHealthServer_ServesGRPCHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	h := NewHealthServer("127.0.0.1:0", func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("db down")
	}, 10*time.Millisecond)

	_, err := h.Start()
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Stop(ctx)
	}()

	_, err = h.Start()
	assert.Error(t, err, "double start should fail")

	conn, err := grpc.NewClient(h.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	healthy.Store(false)
	assert.Eventually(t, func() bool {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealthServer_StopWithoutStart(t *testing.T) {
	h := NewHealthServer("127.0.0.1:0", nil, 0)
	assert.NoError(t, h.Stop(context.Background()))
	assert.Empty(t, h.Addr())
}
