package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	githubsqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/reelforge/studio/backend/internal/assets"
	"github.com/reelforge/studio/backend/internal/auth"
	"github.com/reelforge/studio/backend/internal/billing"
	"github.com/reelforge/studio/backend/internal/pricing"
)

var serverTestDatabaseCounter int64

type stubIdentityVerifier struct {
	claims auth.IdentityClaims
	err    error
}

func (s stubIdentityVerifier) Verify(context.Context, string) (auth.IdentityClaims, error) {
	return s.claims, s.err
}

type stubUserResolver struct{}

func (stubUserResolver) ResolveCanonicalUserID(claims auth.IdentityClaims) (string, error) {
	return claims.Subject, nil
}

type stubTokenManager struct {
	validateErr error
	subject     string
}

func (s stubTokenManager) IssueSessionToken(context.Context, string) (string, int64, error) {
	return "stub-token", 60, nil
}

func (s stubTokenManager) ValidateToken(string) (string, error) {
	if s.validateErr != nil {
		return "", s.validateErr
	}
	return s.subject, nil
}

type testEnv struct {
	server     *httptest.Server
	issuer     *auth.TokenIssuer
	dispatcher *RealtimeDispatcher
	billing    *billing.Service
	assets     *assets.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared", atomic.AddInt64(&serverTestDatabaseCounter, 1))
	db, err := gorm.Open(githubsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(
		&assets.AssetVersion{},
		&assets.VersionAction{},
		&billing.TierRecord{},
		&billing.RateConfig{},
		&billing.CreditBalance{},
		&billing.CreditTransaction{},
		&billing.PaymentOrder{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	assetsService, err := assets.NewService(assets.ServiceConfig{
		Database:   db,
		IDProvider: assets.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct assets service: %v", err)
	}
	billingService, err := billing.NewService(billing.ServiceConfig{
		Database:   db,
		IDProvider: billing.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct billing service: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-signing-secret"),
		Issuer:        "studio-auth",
		Audience:      "studio-api",
		TokenTTL:      time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to construct token issuer: %v", err)
	}

	dispatcher := NewRealtimeDispatcher()
	handler, err := NewHTTPHandler(Dependencies{
		IdentityVerifier: stubIdentityVerifier{claims: auth.IdentityClaims{Subject: "user-123", Issuer: "https://auth.example.com"}},
		TokenManager:     issuer,
		UserResolver:     stubUserResolver{},
		AssetsService:    assetsService,
		BillingService:   billingService,
		Realtime:         dispatcher,
		Logger:           zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &testEnv{
		server:     server,
		issuer:     issuer,
		dispatcher: dispatcher,
		billing:    billingService,
		assets:     assetsService,
	}
}

func (env *testEnv) sessionToken(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := env.issuer.IssueSessionToken(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to issue session token: %v", err)
	}
	return token
}

func (env *testEnv) doJSON(t *testing.T, method, path, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewBuffer(encoded)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	request, err := http.NewRequest(method, env.server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to construct request: %v", err)
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	payload := new(bytes.Buffer)
	if _, err := payload.ReadFrom(response.Body); err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = response.Body.Close()
	return response, payload.Bytes()
}

func (env *testEnv) seedTiers(t *testing.T) {
	t.Helper()
	err := env.billing.ReplaceTierTable(context.Background(), pricing.TierTable{
		BasePricePerCredit: 0.09,
		Tiers: []pricing.Tier{
			{MinCredits: 1, MaxCredits: 9999, DiscountPercent: 0, Name: "Starter"},
			{MinCredits: 10000, MaxCredits: 49999, DiscountPercent: 5, Name: "Creator"},
			{MinCredits: 50000, MaxCredits: 100000, DiscountPercent: 10, Name: "Bulk"},
		},
	}, "INR")
	if err != nil {
		t.Fatalf("failed to seed tier table: %v", err)
	}
}
