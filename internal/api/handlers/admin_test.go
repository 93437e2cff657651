package handlers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantrank/internal/contracts"
)

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

func postJSON(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", jsonBody(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

const validFactorBody = `{
	"key": "momentum_120d",
	"name": "Momentum 120d",
	"factor_type": "technical",
	"calculator": "momentum_120d",
	"weight": 1.0,
	"higher_is_better": true,
	"normalize": "percentile",
	"enabled": true
}`

func TestFactorCRUD(t *testing.T) {
	srv := newTestServer(t, rankedSnapshots(), nil, nil, nil)
	base := srv.URL + "/api/admin/factors"

	// create
	resp, data := postJSON(t, base, validFactorBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created contracts.Factor
	require.NoError(t, json.Unmarshal(data, &created))
	assert.NotZero(t, created.ID)

	// duplicate key
	resp, _ = postJSON(t, base, validFactorBody)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// list
	var listed struct {
		Count   int                `json:"count"`
		Factors []contracts.Factor `json:"factors"`
	}
	status := getJSON(t, base, &listed)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, listed.Count)

	// delete
	req, err := http.NewRequest(http.MethodDelete, base+"/1", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	status = getJSON(t, base, &listed)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, listed.Count)
}

func TestCreateFactorNegativeWeight(t *testing.T) {
	srv := newTestServer(t, rankedSnapshots(), nil, nil, nil)

	resp, _ := postJSON(t, srv.URL+"/api/admin/factors",
		`{"key":"x","name":"x","factor_type":"technical","calculator":"x","weight":-1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateFactorNotFound(t *testing.T) {
	srv := newTestServer(t, rankedSnapshots(), nil, nil, nil)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/admin/factors/999", jsonBody(validFactorBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApplyPresetNotFound(t *testing.T) {
	srv := newTestServer(t, rankedSnapshots(), nil, nil, nil)

	resp, _ := postJSON(t, srv.URL+"/api/admin/presets/nope/apply", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
