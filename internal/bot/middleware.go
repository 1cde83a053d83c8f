package bot

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/piraidev/sereno/internal/pkg/httputil"
	"github.com/piraidev/sereno/internal/slack"
)

// 1 MiB is far above any Slack payload; the limit only guards reads.
const maxBodySize = 1 << 20

// VerifySlackRequest rejects requests whose Slack signature does not match
// the signing secret. The body is consumed for verification and restored
// for the next handler. Rejected requests get a 401 with no side effects.
func VerifySlackRequest(signingSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
			if err != nil {
				httputil.Text(w, http.StatusBadRequest, "unreadable body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ok := slack.VerifySignature(
				signingSecret,
				r.Header.Get("X-Slack-Request-Timestamp"),
				r.Header.Get("X-Slack-Signature"),
				body,
				time.Now(),
			)
			if !ok {
				httputil.Text(w, http.StatusUnauthorized, "invalid signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
