package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository/memory"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

func rolePtr(r domain.TechnicianRole) *domain.TechnicianRole { return &r }

func TestIssueAndParseToken(t *testing.T) {
	tm := NewTokenManager("secret", 5)

	signed, meta, err := tm.Issue("tech-1", domain.SubjectTypeTechnician, rolePtr(domain.TechnicianRoleSPOC))
	require.NoError(t, err)
	assert.Equal(t, "tech-1", meta.SubjectID)
	assert.Equal(t, 5*time.Minute, meta.ExpiresAt.Sub(meta.IssuedAt))

	claims, err := tm.ParseToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "tech-1", claims.SubjectID())
	assert.Equal(t, domain.SubjectTypeTechnician, claims.Subject)
	require.NotNil(t, claims.Role)
	assert.Equal(t, domain.TechnicianRoleSPOC, *claims.Role)
	assert.Equal(t, meta.ID, claims.ID)
}

func TestParseTokenRejectsExpiredAndForeign(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	signed, _, err := tm.Issue("rep-1", domain.SubjectTypeReporter, nil)
	require.NoError(t, err)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tm.ParseToken(signed)
	assert.Error(t, err)

	other := NewTokenManager("other-secret", 1)
	_, err = other.ParseToken(signed)
	assert.Error(t, err)
}

type authHarness struct {
	app    *fiber.App
	tokens *TokenManager
}

func newAuthHarness(t *testing.T, technicians ...domain.Technician) *authHarness {
	t.Helper()
	store := memory.NewStore()
	for i := range technicians {
		require.NoError(t, store.Repositories().Technicians.Create(context.Background(), &technicians[i]))
	}

	tokens := NewTokenManager("secret", 5)
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	mw := NewAuthMiddleware(tokens, store.Repositories().Technicians)
	ok := func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) }
	app.Get("/any", mw.Handle, RequireAnyRole(), ok)
	app.Get("/tech", mw.Handle, RequireTechnician(), ok)
	app.Get("/spoc", mw.Handle, RequireSPOC(), ok)
	return &authHarness{app: app, tokens: tokens}
}

func (h *authHarness) status(t *testing.T, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := h.app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func (h *authHarness) token(t *testing.T, id string, subject domain.SubjectType) string {
	t.Helper()
	signed, _, err := h.tokens.Issue(id, subject, nil)
	require.NoError(t, err)
	return signed
}

func TestMiddlewareRoles(t *testing.T) {
	h := newAuthHarness(t,
		domain.Technician{ID: "spoc", Role: domain.TechnicianRoleSPOC, SupportLevel: 1, Active: true},
		domain.Technician{ID: "tech", Role: domain.TechnicianRoleTechnician, SupportLevel: 1, Active: true},
		domain.Technician{ID: "gone", Role: domain.TechnicianRoleSPOC, SupportLevel: 1, Active: false},
	)
	reporter := h.token(t, "rep-1", domain.SubjectTypeReporter)
	tech := h.token(t, "tech", domain.SubjectTypeTechnician)
	spoc := h.token(t, "spoc", domain.SubjectTypeTechnician)

	assert.Equal(t, http.StatusUnauthorized, h.status(t, "/any", ""))
	assert.Equal(t, http.StatusUnauthorized, h.status(t, "/any", "garbage"))
	assert.Equal(t, http.StatusNoContent, h.status(t, "/any", reporter))

	assert.Equal(t, http.StatusForbidden, h.status(t, "/tech", reporter))
	assert.Equal(t, http.StatusNoContent, h.status(t, "/tech", tech))

	assert.Equal(t, http.StatusForbidden, h.status(t, "/spoc", tech))
	assert.Equal(t, http.StatusNoContent, h.status(t, "/spoc", spoc))

	assert.Equal(t, http.StatusUnauthorized, h.status(t, "/any", h.token(t, "gone", domain.SubjectTypeTechnician)))
	assert.Equal(t, http.StatusUnauthorized, h.status(t, "/any", h.token(t, "missing", domain.SubjectTypeTechnician)))
}
