package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/medflow/backend/internal/domain/shared"
)

func errorRoute(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := &BaseHandler{}
	r.GET("/fail", func(c *gin.Context) {
		h.HandleError(c, err)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	return w
}

func TestHandleError_NotFound(t *testing.T) {
	w := errorRoute(shared.ErrNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_NOT_FOUND")
}

func TestHandleError_Forbidden(t *testing.T) {
	w := errorRoute(shared.ErrForbidden)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_FORBIDDEN")
}

func TestHandleError_Overpayment(t *testing.T) {
	w := errorRoute(shared.ErrOverPayment)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_OVERPAYMENT")
}

func TestHandleError_ConcurrencyConflict(t *testing.T) {
	w := errorRoute(shared.ErrConcurrencyConflict)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_CONCURRENCY_CONFLICT")
}

func TestHandleError_DomainValidation(t *testing.T) {
	w := errorRoute(shared.NewDomainError("INVALID_QUANTITY", "quantity must be positive"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_VALIDATION")
	assert.Contains(t, w.Body.String(), "quantity must be positive")
}

func TestHandleError_UnknownErrorHidesMessage(t *testing.T) {
	w := errorRoute(assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_INTERNAL")
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}
