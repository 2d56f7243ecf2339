package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Planner API",
        "description": "Course catalog, personal plan with conflict detection, and rotating refresh sessions.",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login, refresh rotation and logout"},
        {"name": "Catalog", "description": "Courses and sections"},
        {"name": "Planner", "description": "The caller's plan"},
        {"name": "Operations", "description": "Probes"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "EMAIL_TAKEN", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "description": "Returns an access token and sets the refresh_token cookie.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SessionEnvelope"}},
                    "401": {"description": "INVALID_CREDENTIALS", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "TOO_MANY_REQUESTS", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate refresh token",
                "description": "Reads the refresh_token cookie. Any failure clears the cookie. Replaying a rotated token revokes every session of the user.",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SessionEnvelope"}},
                    "401": {"description": "REFRESH_MISSING or REFRESH_INVALID", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "responses": {
                    "204": {"description": "Cookie cleared"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "ACCESS_INVALID", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List courses",
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"},
                    {"name": "include", "in": "query", "type": "string", "enum": ["sections"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/search": {
            "get": {
                "tags": ["Catalog"],
                "summary": "Search courses by name or teacher",
                "parameters": [
                    {"name": "q", "in": "query", "type": "string", "required": true},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "BAD_REQUEST", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}": {
            "get": {
                "tags": ["Catalog"],
                "summary": "Get a course with sections",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}/schedules": {
            "get": {
                "tags": ["Catalog"],
                "summary": "Every schedule of a course",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sections/{id}": {
            "get": {
                "tags": ["Catalog"],
                "summary": "Get a section",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sections/cards": {
            "get": {
                "tags": ["Catalog"],
                "summary": "Section cards",
                "description": "With a bearer token each card reports isSelected, isConflict, conflictWith and canAdd.",
                "parameters": [
                    {"name": "q", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plan-add": {
            "post": {
                "tags": ["Planner"],
                "summary": "Add a course to the plan",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddCourseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/PlannerItemEnvelope"}},
                    "400": {"description": "BAD_REQUEST", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "UNAUTHORIZED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "DUPLICATE or TIME_CONFLICT", "schema": {"$ref": "#/definitions/ConflictEnvelope"}}
                }
            }
        },
        "/planner": {
            "get": {
                "tags": ["Planner"],
                "summary": "List the plan",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Planner"],
                "summary": "Add a course to the plan (alias of /plan-add)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddCourseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "DUPLICATE or TIME_CONFLICT", "schema": {"$ref": "#/definitions/ConflictEnvelope"}}
                }
            }
        },
        "/planner/{id}": {
            "delete": {
                "tags": ["Planner"],
                "summary": "Remove a plan item",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "204": {"description": "Removed"},
                    "404": {"description": "NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/planner/export": {
            "get": {
                "tags": ["Planner"],
                "summary": "Export the plan as a timetable",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [{"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]}],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "400": {"description": "BAD_REQUEST", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 6},
                "username": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "Session": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "tokenType": {"type": "string"},
                "expiresIn": {"type": "integer"}
            }
        },
        "SessionEnvelope": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "accessToken": {"type": "string"},
                "data": {"$ref": "#/definitions/Session"}
            }
        },
        "PlannerItem": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "userId": {"type": "string"},
                "courseId": {"type": "string"},
                "sectionId": {"type": "string"},
                "createdAt": {"type": "string", "format": "date-time"}
            }
        },
        "PlannerItemEnvelope": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "item": {"$ref": "#/definitions/PlannerItem"}
            }
        },
        "AddCourseRequest": {
            "type": "object",
            "required": ["courseId"],
            "properties": {
                "courseId": {"type": "string"},
                "sectionId": {"type": "string"}
            }
        },
        "Span": {
            "type": "object",
            "properties": {
                "startMin": {"type": "integer"},
                "endMin": {"type": "integer"},
                "minutes": {"type": "integer"}
            }
        },
        "Conflict": {
            "type": "object",
            "properties": {
                "day": {"type": "integer"},
                "dayText": {"type": "string"},
                "overlap": {"$ref": "#/definitions/Span"},
                "newRef": {"type": "object"},
                "oldRef": {"type": "object"}
            }
        },
        "ConflictDetails": {
            "type": "object",
            "properties": {
                "target": {"type": "object"},
                "conflicts": {"type": "array", "items": {"$ref": "#/definitions/Conflict"}},
                "suggestions": {
                    "type": "object",
                    "properties": {
                        "count": {"type": "integer"},
                        "sections": {"type": "array", "items": {"type": "object"}},
                        "reason": {"type": "string"}
                    }
                }
            }
        },
        "ConflictEnvelope": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "code": {"type": "string"},
                "message": {"type": "string"},
                "error": {"$ref": "#/definitions/APIError"},
                "data": {"$ref": "#/definitions/ConflictDetails"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "code": {"type": "string"},
                "message": {"type": "string"},
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
