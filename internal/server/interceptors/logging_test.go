package interceptors

import (
	"context"
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func TestLoggingUnary(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	ic := LoggingUnary(log, map[string]bool{"/grpc.health.v1.Health/Check": true})

	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.7"), Port: 5555}})
	_, err := ic(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Ok"}, func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
	assert.Equal(t, "10.0.0.7", hook.LastEntry().Data["client_ip"])

	_, err = ic(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Bad"}, func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.InvalidArgument, "nope")
	})
	assert.Error(t, err)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)

	_, _ = ic(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Boom"}, func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.Unavailable, "down")
	})
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	hook.Reset()
	_, _ = ic(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, func(context.Context, interface{}) (interface{}, error) {
		return nil, nil
	})
	assert.Empty(t, hook.Entries)
}

func TestClientIP_NoPeer(t *testing.T) {
	assert.Equal(t, "", ClientIP(context.Background()))
}
