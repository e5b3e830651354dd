package interceptors

import (
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// LoggingUnary returns a unary server interceptor that logs each RPC with its status code and
// duration. skipMethods is the set of full method names not to log (e.g. health checks).
func LoggingUnary(log logrus.FieldLogger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		code := status.Code(err)
		entry := log.WithFields(logrus.Fields{
			"method":      info.FullMethod,
			"code":        code.String(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   ClientIP(ctx),
		})
		switch code {
		case codes.OK:
			entry.Debug("rpc")
		case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
			entry.WithError(err).Error("rpc failed")
		default:
			entry.WithError(err).Info("rpc rejected")
		}
		return resp, err
	}
}

// ClientIP returns the peer's IP address, or "" when unknown.
func ClientIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}
