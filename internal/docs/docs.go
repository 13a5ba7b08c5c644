// Package docs registers the OpenAPI description of the inferd API with swag.
// Regenerate with `swag init -g cmd/inferd/docs.go -o internal/docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "inferd maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/open_inference_session": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Open an inference session",
                "parameters": [
                    {"type": "string", "description": "Model key or alias", "name": "model", "in": "query"},
                    {"type": "integer", "description": "Maximum context length", "name": "max_length", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SessionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/v1/close_inference_session": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Close an inference session",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "session_id", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SessionResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/v1/generate": {
            "post": {
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["generate"],
                "summary": "Generate text in a temporary session",
                "parameters": [
                    {"type": "string", "description": "Model key or alias", "name": "model", "in": "formData"},
                    {"type": "string", "description": "Prompt", "name": "inputs", "in": "formData"},
                    {"type": "integer", "description": "1 to sample, 0 for greedy", "name": "do_sample", "in": "formData"},
                    {"type": "number", "description": "Sampling temperature", "name": "temperature", "in": "formData"},
                    {"type": "integer", "description": "Top-k", "name": "top_k", "in": "formData"},
                    {"type": "number", "description": "Top-p", "name": "top_p", "in": "formData"},
                    {"type": "integer", "description": "Total length bound", "name": "max_length", "in": "formData"},
                    {"type": "integer", "description": "Tokens to generate", "name": "max_new_tokens", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.GenerateResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/v1/models": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List models",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}
                }
            }
        },
        "/api/v2/generate": {
            "get": {
                "description": "Send open_inference_session, then any number of generate messages; each yields chunks until one has stop=true.",
                "tags": ["generate"],
                "summary": "Streaming generation over WebSocket",
                "parameters": [
                    {"description": "Client message (sent as a WebSocket text frame)", "name": "message", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.ClientMessage"}}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols", "schema": {"$ref": "#/definitions/types.ChunkResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ClientMessage": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "example": "generate"},
                "model": {"type": "string", "example": "bigscience/bloom"},
                "max_length": {"type": "integer", "example": 512},
                "session_id": {"type": "string", "example": "3f1c0b5a8e6d4f2a9b7c1d0e2f3a4b5c"},
                "inputs": {"type": "string", "example": "A cat sat on"},
                "do_sample": {"type": "boolean"},
                "temperature": {"type": "number", "example": 0.7},
                "top_k": {"type": "integer", "example": 40},
                "top_p": {"type": "number", "example": 0.9},
                "max_new_tokens": {"type": "integer", "example": 16},
                "stop_sequence": {"type": "string"},
                "extra_stop_sequences": {"type": "array", "items": {"type": "string"}}
            }
        },
        "types.SessionResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean", "example": true},
                "session_id": {"type": "string", "example": "3f1c0b5a8e6d4f2a9b7c1d0e2f3a4b5c"}
            }
        },
        "types.ChunkResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean", "example": true},
                "outputs": {"type": "string", "example": " the mat"},
                "stop": {"type": "boolean", "example": false},
                "token_count": {"type": "integer", "example": 2}
            }
        },
        "types.GenerateResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean", "example": true},
                "outputs": {"type": "string", "example": " the mat and purred."}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean", "example": false},
                "traceback": {"type": "string", "example": "session not found: 3f1c0b5a8e6d4f2a9b7c1d0e2f3a4b5c"}
            }
        },
        "types.ModelInfo": {
            "type": "object",
            "properties": {
                "key": {"type": "string"},
                "name": {"type": "string"},
                "aliases": {"type": "array", "items": {"type": "string"}},
                "model_card": {"type": "string"},
                "license": {"type": "string"},
                "max_session_length": {"type": "integer"},
                "stop_token": {"type": "string"},
                "sep_token": {"type": "string"},
                "extra_stop_sequences": {"type": "array", "items": {"type": "string"}}
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean", "example": true},
                "models": {"type": "array", "items": {"$ref": "#/definitions/types.ModelInfo"}}
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
	Title:            "inferd API",
	Description:      "Stateful text generation sessions over WebSocket and HTTP.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
