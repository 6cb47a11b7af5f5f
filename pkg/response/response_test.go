package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

func TestErrorCarriesCodeAndDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.WithDetails(appErrors.ErrInvalidWeights, "", map[string]float64{"total": 95}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Error struct {
			Code    string             `json:"code"`
			Details map[string]float64 `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_WEIGHTS", body.Error.Code)
	assert.Equal(t, 95.0, body.Error.Details["total"])
}

func TestErrorHidesUnknownErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Len(t, c.Errors, 1)
}
