package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the auth service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRoutes) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>cropadvisor-auth Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: 'doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// OpenAPI document for the auth endpoints. Protected routes accept either the
// token cookie, an Authorization bearer header or the OAuth session cookie.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "cropadvisor-auth", "version": "v1.0.0" },
  "components": {
    "securitySchemes": {
      "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" },
      "tokenCookie": { "type": "apiKey", "in": "cookie", "name": "token" },
      "sessionCookie": { "type": "apiKey", "in": "cookie", "name": "cropadvisor.sid" }
    },
    "schemas": {
      "Result": { "type": "object", "properties": { "success": {"type":"boolean"}, "message": {"type":"string"} } }
    }
  },
  "paths": {
    "/signup": {
      "post": {
        "summary": "Create a password account",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["name","email","city","region","password"],"properties":{"name":{"type":"string"},"email":{"type":"string"},"city":{"type":"string"},"region":{"type":"string"},"state":{"type":"string","description":"alias of region"},"password":{"type":"string","maxLength":72}}}}}},
        "responses": { "200": { "description": "created, token cookie set" }, "400": { "description": "missing fields or user already exists" } }
      }
    },
    "/login": {
      "post": {
        "summary": "Log in with email and password",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "user summary and token, token cookie set" }, "400": { "description": "user does not exist or invalid credentials" } }
      }
    },
    "/logout": {
      "post": { "summary": "Clear auth cookies, delete the session and revoke the token", "responses": { "200": { "description": "logged out" } } }
    },
    "/profile": {
      "get": { "summary": "Full record of the authenticated user", "security": [{"bearer":[]},{"tokenCookie":[]},{"sessionCookie":[]}], "responses": { "200": { "description": "user" }, "401": { "description": "unauthorized" }, "404": { "description": "user not found" } } }
    },
    "/dashboard": {
      "get": { "summary": "Authenticated principal", "security": [{"bearer":[]},{"tokenCookie":[]},{"sessionCookie":[]}], "responses": { "200": { "description": "principal" }, "401": { "description": "unauthorized" } } }
    },
    "/auth/google": {
      "get": { "summary": "Start Google sign-in", "responses": { "302": { "description": "redirect to provider" } } }
    },
    "/auth/google/callback": {
      "get": { "summary": "Google sign-in callback", "responses": { "302": { "description": "redirect to profile on success, home on failure" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition" } } } }
  }
}`
