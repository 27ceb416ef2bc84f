// Package docs registers the autoconnect OpenAPI document with swag so the
// Swagger UI at /swagger/ can serve it. Regenerate with
// `swag init -g cmd/autoconnect/main.go -o internal/docs` after changing the
// handler annotations.
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
        "/api": {
            "post": {
                "description": "Accepts a multipart form with an \"input\" field (text, or an audio file) and zero or more \"message\" fields, each a JSON-encoded prior turn {role, content}. audioBuffer is null when synthesis failed.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["chat"],
                "summary": "Chat with the voice assistant",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Text input, or an audio file (e.g. audio.wav)",
                        "name": "input",
                        "in": "formData",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "JSON-encoded prior turn; repeatable",
                        "name": "message",
                        "in": "formData"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Reply text and optional base64 audio",
                        "schema": {"$ref": "#/definitions/message.Response"}
                    },
                    "400": {"description": "Invalid request or invalid audio", "schema": {"type": "string"}},
                    "429": {"description": "Too many requests", "schema": {"type": "string"}},
                    "500": {"description": "Internal processing error", "schema": {"type": "string"}}
                }
            }
        },
        "/api/audio": {
            "post": {
                "description": "Converts text to speech with the configured voice and returns the raw audio bytes.",
                "consumes": ["application/json"],
                "produces": ["audio/wav"],
                "tags": ["audio"],
                "summary": "Synthesize speech",
                "parameters": [
                    {
                        "description": "Text to speak",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/http.speakRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Audio bytes", "schema": {"type": "file"}},
                    "400": {"description": "Invalid request", "schema": {"type": "string"}},
                    "500": {"description": "Synthesis failed", "schema": {"type": "string"}}
                }
            }
        }
    },
    "definitions": {
        "http.speakRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string"}
            }
        },
        "message.Response": {
            "type": "object",
            "properties": {
                "audioBuffer": {"type": "string"},
                "text": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Auto Connect AI",
	Description:      "Voice chat API: speech or text in, assistant reply text and speech out.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
