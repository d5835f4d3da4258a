package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/provex/proctor-backend/internal/model"
	"github.com/provex/proctor-backend/internal/ratelimit"
	"github.com/provex/proctor-backend/internal/response"
	"github.com/provex/proctor-backend/internal/service"
)

// RateLimit admits requests through the sliding-window limiter, keyed by
// (class, attempt, user, client IP). Denied requests get a 429 and a
// RATE_LIMIT_EXCEEDED violation recorded against the active attempt, so
// hammering an endpoint costs trust score instead of just latency.
func RateLimit(limiter *ratelimit.Limiter, class ratelimit.Class, attemptService *service.AttemptService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		key := ratelimit.Key{
			Class:     class,
			AttemptID: c.Param("examId"),
			UserID:    claims.UserID,
			OriginID:  c.ClientIP(),
		}

		if limiter.Allow(key, time.Now()) {
			c.Next()
			return
		}

		log.Warn().
			Str("class", string(class)).
			Int("user_id", claims.UserID).
			Str("origin", key.OriginID).
			Msg("rate limit exceeded")

		if examID, err := uuid.Parse(c.Param("examId")); err == nil {
			// Best effort: the attempt may be inactive or gone, and the
			// violation must not turn a throttle into a 500.
			if _, verr := attemptService.ReportViolation(c.Request.Context(), claims.UserID, examID, model.ViolationRateLimitExceeded, string(class)); verr != nil {
				log.Debug().Err(verr).Msg("could not record rate limit violation")
			}
		}

		response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
	}
}
