package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"attendance/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestActionSigner_RoundTrip(t *testing.T) {
	signer := NewActionSigner(testSecret, time.Hour)

	token, err := signer.SignAction("approve", "req-1", "user-1")
	require.NoError(t, err)

	claims, err := signer.VerifyAction(token, "approve", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", claims.Value)
}

func TestActionSigner_RejectsOtherUserAndAction(t *testing.T) {
	signer := NewActionSigner(testSecret, time.Hour)
	token, err := signer.SignAction("approve", "req-1", "user-1")
	require.NoError(t, err)

	_, err = signer.VerifyAction(token, "approve", "user-2")
	assert.ErrorIs(t, err, ErrActionUser)

	_, err = signer.VerifyAction(token, "reject", "user-1")
	assert.Error(t, err)
}

func TestActionSigner_RejectsForeignSignature(t *testing.T) {
	token, err := NewActionSigner([]byte("other"), time.Hour).SignAction("approve", "x", "")
	require.NoError(t, err)

	_, err = NewActionSigner(testSecret, time.Hour).VerifyAction(token, "approve", "anyone")
	assert.Error(t, err)
}

func TestActionSigner_Unbound(t *testing.T) {
	signer := NewActionSigner(testSecret, 0)
	token, err := signer.SignAction("queue", "2", "")
	require.NoError(t, err)

	claims, err := signer.VerifyAction(token, "queue", "whoever")
	require.NoError(t, err)
	assert.Equal(t, "2", claims.Value)
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	admin := &model.Employee{ID: uuid.New(), Role: model.RoleAdmin}
	member := &model.Employee{ID: uuid.New(), Role: model.RoleMember}

	router := gin.New()
	router.GET("/x", RequireRole(testSecret, model.RoleAdmin, model.RoleSuperuser), func(c *gin.Context) {
		id, ok := CurrentEmployeeID(c)
		require.True(t, ok)
		c.String(http.StatusOK, id.String())
	})

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	adminToken, err := IssueToken(testSecret, admin, time.Hour)
	require.NoError(t, err)
	rec := call("Bearer " + adminToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, admin.ID.String(), rec.Body.String())

	memberToken, err := IssueToken(testSecret, member, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, call("Bearer "+memberToken).Code)

	assert.Equal(t, http.StatusUnauthorized, call("").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Token abc").Code)

	expired, err := IssueToken(testSecret, admin, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+expired).Code)
}
