// Package docs holds the OpenAPI document served at /swagger. Regenerate with
// `swag init -g cmd/server/main.go` after changing handler annotations.
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
        "/.well-known/webfinger": {
            "get": {
                "produces": ["application/jrd+json"],
                "tags": ["activitypub"],
                "summary": "webfinger",
                "parameters": [
                    {"type": "string", "description": "acct: URI or actor URL", "name": "resource", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/activitypub.Webfinger"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/activitypub/actor": {
            "get": {
                "produces": ["application/activity+json"],
                "tags": ["activitypub"],
                "summary": "actor document",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/activitypub/outbox": {
            "get": {
                "produces": ["application/activity+json"],
                "tags": ["activitypub"],
                "summary": "outbox",
                "parameters": [
                    {"type": "string", "description": "true or a page number", "name": "page", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/activitypub/followers": {
            "get": {
                "produces": ["application/activity+json"],
                "tags": ["activitypub"],
                "summary": "followers",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/activitypub/event/{id}": {
            "get": {
                "produces": ["application/activity+json"],
                "tags": ["activitypub"],
                "summary": "event object",
                "parameters": [
                    {"type": "integer", "description": "event id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/activitypub/inbox": {
            "post": {
                "consumes": ["application/activity+json"],
                "tags": ["activitypub"],
                "summary": "inbox",
                "responses": {
                    "202": {"description": "Accepted"},
                    "400": {"description": "Bad Request"},
                    "500": {"description": "Internal Server Error"}
                }
            }
        },
        "/upload/key": {
            "get": {
                "produces": ["application/json"],
                "tags": ["upload"],
                "summary": "new idempotency key",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/upload": {
            "post": {
                "consumes": ["multipart/form-data"],
                "tags": ["upload"],
                "summary": "upload flyer",
                "parameters": [
                    {"type": "file", "description": "flyer image (jpeg, png, gif, webp)", "name": "image", "in": "formData", "required": true},
                    {"type": "string", "description": "UUID from /upload/key", "name": "idempotency_key", "in": "formData", "required": true}
                ],
                "responses": {
                    "303": {"description": "See Other"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.Response"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/response.Response"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/response.Response"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/api/events/{id}/activitypub": {
            "get": {
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "event interactions",
                "parameters": [
                    {"type": "integer", "description": "event id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/api/events/{id}": {
            "delete": {
                "tags": ["events"],
                "summary": "delete event",
                "parameters": [
                    {"type": "integer", "description": "event id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "liveness",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        }
    },
    "definitions": {
        "response.Response": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "data": {},
                "message": {"type": "string"}
            }
        },
        "activitypub.Webfinger": {
            "type": "object",
            "properties": {
                "subject": {"type": "string"},
                "aliases": {"type": "array", "items": {"type": "string"}},
                "links": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "rel": {"type": "string"},
                            "type": {"type": "string"},
                            "href": {"type": "string"}
                        }
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Somerville Events API",
	Description:      "Flyer intake and ActivityPub federation for local events.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
