//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnershipIsolation(t *testing.T) {
	env := SetupTestEnv(t)

	// Create two users
	RegisterUser(t, env, "owner-a@example.com", "password123")
	RegisterUser(t, env, "owner-b@example.com", "password123")

	tokenA := LoginUser(t, env, "owner-a@example.com", "password123")
	tokenB := LoginUser(t, env, "owner-b@example.com", "password123")

	// User A creates a project
	body := map[string]any{
		"name":        "User A Project",
		"description": "belongs to user A",
	}
	resp := DoRequest(t, env, "POST", "/api/v1/projects", body, tokenA)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	projectAID := data["id"].(string)

	t.Run("owner can access own project", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/projects/"+projectAID, nil, tokenA)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("other user cannot GET project", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/projects/"+projectAID, nil, tokenB)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("other user cannot UPDATE project", func(t *testing.T) {
		updateBody := map[string]any{"name": "Hacked Name"}
		resp := DoRequest(t, env, "PUT", "/api/v1/projects/"+projectAID, updateBody, tokenB)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("other user cannot DELETE project", func(t *testing.T) {
		resp := DoRequest(t, env, "DELETE", "/api/v1/projects/"+projectAID, nil, tokenB)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("other user cannot write files", func(t *testing.T) {
		fileBody := map[string]any{"filename": "evil.js", "content": "// injected"}
		resp := DoRequest(t, env, "PUT", "/api/v1/projects/"+projectAID+"/files", fileBody, tokenB)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("listing only returns own projects", func(t *testing.T) {
		// User B creates their own project
		bodyB := map[string]any{"name": "User B Project"}
		DoRequest(t, env, "POST", "/api/v1/projects", bodyB, tokenB)

		listResp := DoRequest(t, env, "GET", "/api/v1/projects", nil, tokenA)
		require.Equal(t, http.StatusOK, listResp.StatusCode)

		listResult := ParseResponse(t, listResp)
		projectList := listResult["data"].([]any)
		for _, p := range projectList {
			project := p.(map[string]any)
			assert.NotEqual(t, "User B Project", project["name"],
				"User A should not see User B's projects")
		}
	})

	t.Run("unauthenticated access denied", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/projects/"+projectAID, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid token access denied", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/projects/"+projectAID, nil, "invalid-jwt-token")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
