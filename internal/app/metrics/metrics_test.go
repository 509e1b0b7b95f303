package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPath(t *testing.T) {
	tests := map[string]string{
		"":                            "/",
		"/":                           "/",
		"/healthz":                    "/healthz",
		"/ws":                         "/ws",
		"/v1/keys/0123456789/account": "/v1/keys/:key/account",
		"/v1/keys/0123456789/history": "/v1/keys/:key/history",
		"/v1/keys":                    "/v1",
	}
	for in, want := range tests {
		assert.Equal(t, want, canonicalPath(in), in)
	}
}

func scrape(t *testing.T) string {
	t.Helper()
	out := httptest.NewRecorder()
	Handler().ServeHTTP(out, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, out.Code)
	return out.Body.String()
}

func TestRecorders(t *testing.T) {
	RecordGameRound("twenty-one", "win")
	RecordLedgerOperation("credit", "")
	RecordCommand("", "")
	RecordPrompt("timed_out")
	RecordQuote(0, false)

	body := scrape(t)
	assert.Contains(t, body, `keyledger_wagering_rounds_total{game="twenty-one",outcome="win"}`)
	assert.Contains(t, body, `keyledger_ledger_operations_total{operation="credit",result="ok"}`)
	assert.Contains(t, body, `keyledger_commands_handled_total{command="unknown",result="ok"}`)
	assert.Contains(t, body, `keyledger_prompt_completed_total{result="timed_out"}`)
	assert.Contains(t, body, `keyledger_pricefeed_quotes_total{success="false"}`)
}

func TestInstrumentHandlerAndExposition(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/keys/0123456789/account", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	assert.Contains(t, scrape(t), `keyledger_http_requests_total{method="GET",path="/v1/keys/:key/account",status="418"}`)
}
