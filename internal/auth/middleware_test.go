package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", DeviceAuth(testKey, testIssuer), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "claims missing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"device": claims.Subject})
	})
	return r
}

func doGet(t *testing.T, r *gin.Engine, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDeviceAuth_ValidToken(t *testing.T) {
	pair, err := Issue("kiosk-1", RoleDevice, testIssuer, testKey, time.Minute, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	w := doGet(t, authRouter(), pair.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body := w.Body.String(); body != `{"device":"kiosk-1"}` {
		t.Errorf("claims should carry the device subject, got %s", body)
	}
}

func TestDeviceAuth_MissingHeader(t *testing.T) {
	w := doGet(t, authRouter(), "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestDeviceAuth_BadToken(t *testing.T) {
	w := doGet(t, authRouter(), "not-a-jwt")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestDeviceAuth_WrongRoleForbidden(t *testing.T) {
	pair, err := Issue("admin-1", "admin", testIssuer, testKey, time.Minute, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	w := doGet(t, authRouter(), pair.AccessToken)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-device role, got %d", w.Code)
	}
}

func TestClaimsFrom_Unset(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if _, ok := ClaimsFrom(c); ok {
		t.Error("ClaimsFrom should report missing claims")
	}
}
