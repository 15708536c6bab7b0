package api

import (
	"net/http"
	"strconv"

	"docuchat/m/v2/app/db/redis"
	"docuchat/m/v2/app/models"

	"github.com/valyala/fasthttp"
)

// RateLimited wraps a handler with a fixed-window per-IP ceiling.
func RateLimited(limiter *redis.RateLimiter, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		allowed, retryAfter := limiter.Allow(ctx, ctx.RemoteIP().String())
		if !allowed {
			ctx.Response.Header.Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeJSON(ctx, http.StatusTooManyRequests, models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
			return
		}
		next(ctx)
	}
}

// CORS allows the configured frontend origins for browser calls. The webhook
// endpoint is provider-to-server and unaffected by preflight handling.
func CORS(allowedOrigins []string, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return func(ctx *fasthttp.RequestCtx) {
		origin := string(ctx.Request.Header.Peek("Origin"))
		if origin != "" && allowed[origin] {
			ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
			ctx.Response.Header.Set("Access-Control-Allow-Credentials", "true")
			ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Stripe-Signature")
		}
		if string(ctx.Method()) == fasthttp.MethodOptions {
			ctx.Response.Header.SetStatusCode(http.StatusNoContent)
			return
		}
		next(ctx)
	}
}
