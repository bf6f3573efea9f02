package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor writes one line per unary call. Client-caused failures
// log at Warn, everything else that fails at Error. A nil logger means
// slog.Default().
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			began := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"procedure", req.Spec().Procedure,
				"peer", req.Peer().Addr,
				"duration_ms", time.Since(began).Milliseconds(),
			}
			if userID := GetUserID(ctx); userID != "" { // empty if pre-auth
				attrs = append(attrs, "user_id", userID)
			}

			var cerr *connect.Error
			switch {
			case err == nil:
				logger.InfoContext(ctx, "RPC ok", attrs...)
			case errors.As(err, &cerr) && cerr.Code() != connect.CodeInternal && cerr.Code() != connect.CodeUnknown:
				logger.WarnContext(ctx, "RPC rejected", append(attrs, "code", cerr.Code(), "error", cerr.Message())...)
			default:
				logger.ErrorContext(ctx, "RPC failed", append(attrs, "error", err)...)
			}
			return resp, err
		}
	}
}
