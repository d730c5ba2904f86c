package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleseva/teleseva-platform/internal/directory"
	httpmiddleware "github.com/teleseva/teleseva-platform/internal/http/middleware"
	"github.com/teleseva/teleseva-platform/internal/notify"
	"github.com/teleseva/teleseva-platform/internal/profiles"
)

// stubDynamo accepts every write so routing tests can exercise handlers that
// sit behind a DynamoDB-backed service.
type stubDynamo struct{}

func (stubDynamo) PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return &dynamodb.PutItemOutput{}, nil
}

func (stubDynamo) GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{}, nil
}

func (stubDynamo) UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return &dynamodb.UpdateItemOutput{}, nil
}

func (stubDynamo) Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return &dynamodb.ScanOutput{}, nil
}

func newTestRouter(t *testing.T, jwtSecret string) *httptest.Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	availability := directory.NewStore(stubDynamo{}, "doctor-availability", nil)
	directoryService := directory.NewService(availability, profiles.NewInMemoryRepository(), nil, nil)
	cfg := &Config{
		ProfilesHandler:  profiles.NewHandler(profiles.NewInMemoryRepository(), nil),
		DirectoryHandler: directory.NewHandler(directoryService, nil),
		NotifyHandler:    notify.NewHandler(notify.NewService(notify.NewMemoryStore(), nil, nil), nil),
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		JWTSecret:        jwtSecret,
	}

	server := httptest.NewServer(New(cfg))
	t.Cleanup(server.Close)
	return server
}

func TestRouterHealth(t *testing.T) {
	server := newTestRouter(t, "")

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestRouterMetrics(t *testing.T) {
	server := newTestRouter(t, "")

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouterProfilesRoutes(t *testing.T) {
	server := newTestRouter(t, "")

	resp, err := http.Post(server.URL+"/patients", "application/json",
		strings.NewReader(`{"name":"Asha Rao","email":"asha@example.com"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	doctors, err := http.Get(server.URL + "/doctors")
	require.NoError(t, err)
	defer doctors.Body.Close()
	assert.Equal(t, http.StatusOK, doctors.StatusCode)
}

func TestRouterJWTGatesNotifications(t *testing.T) {
	server := newTestRouter(t, "test-secret")

	resp, err := http.Get(server.URL + "/notifications/user-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/notifications/user-1", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", "patient"))
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)
}

func TestRouterOpenWithoutSecret(t *testing.T) {
	server := newTestRouter(t, "")

	resp, err := http.Get(server.URL + "/notifications/user-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouterDoctorRoutesRequireDoctorRole(t *testing.T) {
	server := newTestRouter(t, "test-secret")

	req, err := http.NewRequest(http.MethodPost, server.URL+"/doctors/doc-1/heartbeat", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", "patient"))
	asPatient, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer asPatient.Body.Close()
	assert.Equal(t, http.StatusForbidden, asPatient.StatusCode)

	req, err = http.NewRequest(http.MethodPost, server.URL+"/doctors/doc-1/heartbeat", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", "doctor"))
	asDoctor, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer asDoctor.Body.Close()
	assert.Equal(t, http.StatusNoContent, asDoctor.StatusCode)
}

func signToken(t *testing.T, secret, role string) string {
	t.Helper()
	claims := httpmiddleware.UserClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
