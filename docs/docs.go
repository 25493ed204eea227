// Package docs registers the OpenAPI document served at /swagger. Regenerate
// with `swag init -g internal/api/server/server.go` after changing handler
// annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {"get": {"tags": ["health"], "summary": "Health check", "responses": {"200": {"description": "OK"}, "503": {"description": "Database unreachable"}}}},
        "/auth/register": {"post": {"tags": ["auth"], "summary": "Register a new account", "responses": {"201": {"description": "Created"}, "409": {"description": "User already exists"}}}},
        "/auth/login": {"post": {"tags": ["auth"], "summary": "User login", "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials"}, "429": {"description": "Account locked or rate limit exceeded"}}}},
        "/auth/verify-email": {"post": {"tags": ["auth"], "summary": "Verify email address", "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid or expired token"}}}},
        "/auth/resend-verification": {"post": {"tags": ["auth"], "summary": "Resend the verification email", "responses": {"200": {"description": "OK"}, "404": {"description": "User not found"}}}},
        "/auth/forgot-password": {"post": {"tags": ["auth"], "summary": "Request a password reset", "responses": {"200": {"description": "OK"}}}},
        "/auth/reset-password": {"post": {"tags": ["auth"], "summary": "Complete a password reset", "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid or expired token"}}}},
        "/auth/verify-2fa": {"post": {"tags": ["auth"], "summary": "Verify a TOTP code", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid code or token"}}}},
        "/auth/refresh-token": {"post": {"tags": ["auth"], "summary": "Refresh the token pair", "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid refresh token"}}}},
        "/auth/me": {"get": {"tags": ["auth"], "summary": "Current user", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/auth/update-profile": {"patch": {"tags": ["auth"], "summary": "Update name and profile fields", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/auth/update-preferences": {"patch": {"tags": ["auth"], "summary": "Update preferences", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/auth/change-password": {"patch": {"tags": ["auth"], "summary": "Change password", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "401": {"description": "Current password is incorrect"}}}},
        "/auth/setup-2fa": {"post": {"tags": ["auth"], "summary": "Start two-factor setup", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "403": {"description": "Email not verified"}}}},
        "/auth/disable-2fa": {"post": {"tags": ["auth"], "summary": "Disable two-factor authentication", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/auth/logout": {"post": {"tags": ["auth"], "summary": "Log out the current session", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/auth/logout-all": {"post": {"tags": ["auth"], "summary": "Log out every other session", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/auth/sessions": {"get": {"tags": ["auth"], "summary": "List the caller's active sessions", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/auth/account": {"delete": {"tags": ["auth"], "summary": "Delete the caller's account", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/admin/dashboard": {"get": {"tags": ["admin"], "summary": "Security dashboard", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/admin/audit-logs": {"get": {"tags": ["admin"], "summary": "List audit logs", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/admin/security-events": {"get": {"tags": ["admin"], "summary": "List security events", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/admin/security-events/{id}/resolve": {"patch": {"tags": ["admin"], "summary": "Resolve a security event", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "400": {"description": "Already resolved"}, "404": {"description": "Security event not found"}}}},
        "/admin/user-sessions": {"get": {"tags": ["admin"], "summary": "List user sessions", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/admin/user-sessions/{id}": {"delete": {"tags": ["admin"], "summary": "Invalidate one session", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Session not found"}}}},
        "/admin/users": {"get": {"tags": ["admin"], "summary": "List users", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/admin/users/{userId}/sessions": {"delete": {"tags": ["admin"], "summary": "Invalidate every session of a user", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "userId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "User not found"}}}},
        "/admin/users/{userId}/activity": {"get": {"tags": ["admin"], "summary": "Recent activity of a user", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "userId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "User not found"}}}},
        "/admin/users/{userId}/unlock": {"patch": {"tags": ["admin"], "summary": "Clear a user's lockout", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "userId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "User not found"}}}},
        "/admin/users/{userId}/role": {"patch": {"tags": ["admin"], "summary": "Change a user's role", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "userId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid role"}}}}
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Bearer token authentication",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:5000",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "authguard API",
	Description:      "Authentication, session and security audit API.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
