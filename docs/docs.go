// Package docs registers the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "tags": ["system"],
                "summary": "Health check",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Service is healthy"}
                }
            }
        },
        "/api/users": {
            "get": {
                "tags": ["users"],
                "summary": "List users",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "All users with document meta", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "post": {
                "tags": ["users"],
                "summary": "Create a user",
                "description": "Requires name, email, age, city, occupation and hobbies",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "user", "required": true, "schema": {"$ref": "#/definitions/UserInput"}}
                ],
                "responses": {
                    "201": {"description": "User created", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Missing required field", "schema": {"$ref": "#/definitions/Envelope"}},
                    "500": {"description": "Malformed body or persistence failure", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/api/users/{id}": {
            "get": {
                "tags": ["users"],
                "summary": "Get a user by ID",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "User", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "put": {
                "tags": ["users"],
                "summary": "Update a user",
                "description": "Merges the given fields into the user; id can not be changed",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true},
                    {"in": "body", "name": "patch", "required": true, "schema": {"$ref": "#/definitions/UserInput"}}
                ],
                "responses": {
                    "200": {"description": "Updated user", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/Envelope"}},
                    "500": {"description": "Malformed body or persistence failure", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "delete": {
                "tags": ["users"],
                "summary": "Delete a user",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "Deleted user", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/Envelope"}},
                    "500": {"description": "Persistence failure", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/api/users/city/{city}": {
            "get": {
                "tags": ["users"],
                "summary": "List users by city",
                "description": "Case-insensitive exact match",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "city", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Matching users and count", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/api/users/job/{job}": {
            "get": {
                "tags": ["users"],
                "summary": "List users by occupation",
                "description": "Case-insensitive substring match",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "job", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Matching users and count", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        }
    },
    "definitions": {
        "Envelope": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["success", "error"]},
                "message": {"type": "string"},
                "data": {},
                "count": {"type": "integer"},
                "meta": {"$ref": "#/definitions/Meta"},
                "code": {"type": "integer"}
            }
        },
        "Meta": {
            "type": "object",
            "properties": {
                "total_users": {"type": "integer"},
                "last_updated": {"type": "string"},
                "data_source": {"type": "string"}
            }
        },
        "UserInput": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "age": {"type": "integer"},
                "city": {"type": "string"},
                "occupation": {"type": "string"},
                "hobbies": {"description": "A string or a list of strings"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Users Directory API",
	Description:      "CRUD API over a JSON-file backed users directory",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
