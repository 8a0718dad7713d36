package mockyard

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestYard(t *testing.T) (*Yard, *httptest.Server) {
	t.Helper()
	y := New(slog.New(slog.NewTextHandler(io.Discard, nil)), "1", "2")
	ts := httptest.NewServer(y.Handler())
	t.Cleanup(ts.Close)
	return y, ts
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestPending_LegacyAndCurrentLayouts(t *testing.T) {
	y, ts := newTestYard(t)
	y.Arrive("1")
	y.Arrive("2")
	y.Arrive("2")

	status, legacy := getJSON(t, ts.URL+"/api/porteria/1/pendientes")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, legacy["pendientes"], 1)
	assert.NotContains(t, legacy, "success")

	status, current := getJSON(t, ts.URL+"/api/porteria/2/pendientes")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, current["success"])
	data := current["data"].(map[string]any)
	assert.Len(t, data["pendientes"], 2)
	assert.EqualValues(t, 2, data["total"])
}

func TestAuthorize(t *testing.T) {
	y, ts := newTestYard(t)
	a := y.Arrive("1")
	b := y.Arrive("1")

	post := func(body string) map[string]any {
		resp, err := http.Post(ts.URL+"/api/porteria/autorizar", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	res := post(`{"ids":[999]}`)
	assert.Equal(t, false, res["success"])
	assert.Len(t, y.Pending("1"), 2, "unknown id must not remove anything")

	res = post(`{"ids":[]}`)
	assert.Equal(t, false, res["success"])

	idsJSON, _ := json.Marshal(map[string][]int64{"ids": {a.ID}})
	res = post(string(idsJSON))
	assert.Equal(t, true, res["success"])

	pending := y.Pending("1")
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)
}

func TestFailNext(t *testing.T) {
	y, ts := newTestYard(t)
	y.FailNext("2", 2)

	for range 2 {
		status, body := getJSON(t, ts.URL+"/api/porteria/2/pendientes")
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, false, body["success"])
	}
	status, _ := getJSON(t, ts.URL+"/api/porteria/2/pendientes")
	assert.Equal(t, http.StatusOK, status)

	status, _ = getJSON(t, ts.URL+"/api/porteria/1/pendientes")
	assert.Equal(t, http.StatusOK, status, "other gates are unaffected")
}

func TestBoard(t *testing.T) {
	y, ts := newTestYard(t)
	truck := y.Arrive("1")

	resp, err := http.Get(ts.URL + "/patio/tablero")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	html := string(body)

	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	assert.Contains(t, html, `id="tabla-camiones"`)
	assert.Contains(t, html, truck.Plate)
	assert.Contains(t, html, "1 en cola")
}

func TestParseGate(t *testing.T) {
	got, err := ParseGate("03")
	require.NoError(t, err)
	assert.Equal(t, "3", got)

	for _, bad := range []string{"", "0", "x", "-1"} {
		_, err := ParseGate(bad)
		assert.Error(t, err, bad)
	}
}
