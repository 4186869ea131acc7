// Package docs holds the Swagger document served under /swagger when the
// server is built with -tags=swagger. Regenerate with `make swagger-gen`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "clover maintainers"
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
        "/load": {
            "post": {
                "description": "Loads a GGUF model by registry id or path, replacing the current one.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Load a model",
                "parameters": [
                    {
                        "description": "Model selection",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.LoadRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.LoadResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/generate": {
            "post": {
                "description": "Streams generated fragments as NDJSON lines, then a final line with stats.",
                "consumes": ["application/json"],
                "produces": ["application/x-ndjson"],
                "tags": ["session"],
                "summary": "Generate text (streaming)",
                "parameters": [
                    {
                        "description": "Generation request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.GenerateRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.FinalLine"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/generate/raw": {
            "post": {
                "description": "Returns the generated text followed by the [CLOVER_STATS|ingest|generate] marker.",
                "consumes": ["application/json"],
                "produces": ["application/octet-stream"],
                "tags": ["session"],
                "summary": "Generate text (raw)",
                "parameters": [
                    {
                        "description": "Generation request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.GenerateRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "string"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/stop": {
            "post": {
                "description": "Requests the running generation to stop after the current token. Always succeeds.",
                "tags": ["session"],
                "summary": "Stop generation",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/models": {
            "get": {
                "description": "Lists GGUF files found in the models directory.",
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List models",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Session status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 400},
                "error": {"type": "string", "example": "invalid JSON body"}
            }
        },
        "types.LoadRequest": {
            "type": "object",
            "properties": {
                "model": {"type": "string", "example": "qwen2.5-0.5b-instruct-q4_k_m.gguf"},
                "path": {"type": "string", "example": "/home/user/models/qwen2.5-0.5b-instruct-q4_k_m.gguf"}
            }
        },
        "types.LoadResponse": {
            "type": "object",
            "properties": {
                "architecture": {"type": "string", "example": "qwen2"},
                "path": {"type": "string"},
                "status": {"type": "string", "example": "Success|qwen2"}
            }
        },
        "types.GenerateRequest": {
            "type": "object",
            "properties": {
                "context_size": {"type": "integer", "example": 2048},
                "max_tokens": {"type": "integer", "example": 128},
                "prompt": {"type": "string", "example": "Write a haiku about the ocean."},
                "system_prompt": {"type": "string", "example": "You are a helpful assistant."},
                "threads": {"type": "integer", "example": 4}
            }
        },
        "types.GenerationStats": {
            "type": "object",
            "properties": {
                "chunks": {"type": "integer", "example": 1},
                "context_adjusted": {"type": "boolean"},
                "context_size": {"type": "integer", "example": 1024},
                "generate_tokens_per_second": {"type": "number", "example": 8.32},
                "generated_tokens": {"type": "integer", "example": 128},
                "ingest_tokens_per_second": {"type": "number", "example": 24.5},
                "prompt_tokens": {"type": "integer", "example": 12}
            }
        },
        "types.FinalLine": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "done": {"type": "boolean"},
                "id": {"type": "string"},
                "stats": {"$ref": "#/definitions/types.GenerationStats"},
                "stop_reason": {"type": "string", "example": "eos"}
            }
        },
        "types.Model": {
            "type": "object",
            "properties": {
                "context_length": {"type": "integer", "example": 32768},
                "family": {"type": "string", "example": "qwen2"},
                "id": {"type": "string", "example": "qwen2.5-0.5b-instruct-q4_k_m.gguf"},
                "name": {"type": "string"},
                "path": {"type": "string"},
                "quant": {"type": "string", "example": "Q4_K_M"},
                "size_bytes": {"type": "integer"}
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {
                "models": {"type": "array", "items": {"$ref": "#/definitions/types.Model"}}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "architecture": {"type": "string", "example": "qwen2"},
                "generating": {"type": "boolean"},
                "generations_total": {"type": "integer", "example": 12},
                "last_error": {"type": "string"},
                "last_stats": {"$ref": "#/definitions/types.GenerationStats"},
                "last_stop_reason": {"type": "string", "example": "eos"},
                "loaded": {"type": "boolean"},
                "loads_total": {"type": "integer", "example": 2},
                "model_path": {"type": "string"},
                "server_time_unix": {"type": "integer", "example": 1700000000},
                "tokens_total": {"type": "integer", "example": 1536},
                "uptime_seconds": {"type": "integer", "example": 3600}
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
	Title:            "clover API",
	Description:      "HTTP API for a single-session local text generator.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
