// Package docs registers the order API's OpenAPI document with swag so gin-swagger can serve it.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/orders": {
            "post": {
                "tags": ["orders"],
                "summary": "Create an order awaiting payment",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "order", "required": true, "schema": {"$ref": "#/definitions/CreateOrderRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/orders/{id}": {
            "get": {
                "tags": ["orders"],
                "summary": "Get an order by id",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/orders/by-ref/{txRef}": {
            "get": {
                "tags": ["orders"],
                "summary": "Get an order by its payment reference",
                "parameters": [{"in": "path", "name": "txRef", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/payments/verify": {
            "post": {
                "tags": ["payments"],
                "summary": "Verify a payment and settle its order",
                "parameters": [{"in": "body", "name": "payment", "required": true, "schema": {"$ref": "#/definitions/VerifyPaymentRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ReconcileResponse"}},
                    "400": {"description": "Rejected", "schema": {"$ref": "#/definitions/ReconcileResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "500": {"description": "Not recorded", "schema": {"$ref": "#/definitions/ReconcileResponse"}},
                    "502": {"description": "Provider unavailable", "schema": {"$ref": "#/definitions/ReconcileResponse"}}
                }
            }
        },
        "/payments/webhook": {
            "post": {
                "tags": ["payments"],
                "summary": "Flutterwave webhook receiver",
                "parameters": [{"in": "header", "name": "verif-hash", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ReconcileResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "502": {"description": "Provider unavailable", "schema": {"$ref": "#/definitions/ReconcileResponse"}}
                }
            }
        },
        "/admin/orders": {
            "get": {
                "tags": ["admin"],
                "summary": "List orders",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "status", "type": "string", "enum": ["PENDING_PAYMENT", "PAID"]},
                    {"in": "query", "name": "search", "type": "string"},
                    {"in": "query", "name": "dateFrom", "type": "string", "format": "date"},
                    {"in": "query", "name": "dateTo", "type": "string", "format": "date"},
                    {"in": "query", "name": "sortBy", "type": "string", "enum": ["amount", "createdAt"]},
                    {"in": "query", "name": "sortOrder", "type": "string", "enum": ["asc", "desc"]},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "pageSize", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/admin/orders/{id}": {
            "get": {
                "tags": ["admin"],
                "summary": "Order detail with its verification history",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}}}
            }
        },
        "/admin/orders/{id}/reverify": {
            "post": {
                "tags": ["admin"],
                "summary": "Ask the provider again about an order's payment",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ReconcileResponse"}}}
            }
        }
    },
    "definitions": {
        "APIResponse": {
            "type": "object",
            "properties": {"traceId": {"type": "string"}, "data": {"type": "object"}}
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "traceId": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "OrderItemRequest": {
            "type": "object",
            "required": ["isbn", "quantity", "unitPrice"],
            "properties": {
                "isbn": {"type": "string"},
                "title": {"type": "string"},
                "quantity": {"type": "integer"},
                "unitPrice": {"type": "integer"},
                "studentId": {"type": "string"}
            }
        },
        "CreateOrderRequest": {
            "type": "object",
            "required": ["parentName", "parentEmail", "totalAmount", "items"],
            "properties": {
                "parentId": {"type": "string"},
                "parentName": {"type": "string"},
                "parentEmail": {"type": "string"},
                "totalAmount": {"type": "integer"},
                "paymentMethod": {"type": "string"},
                "txRef": {"type": "string"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/OrderItemRequest"}}
            }
        },
        "VerifyPaymentRequest": {
            "type": "object",
            "required": ["transactionId", "orderReference"],
            "properties": {"transactionId": {"type": "string"}, "orderReference": {"type": "string"}}
        },
        "ReconcileResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "retryable": {"type": "boolean"},
                "alreadyPaid": {"type": "boolean"},
                "needsReview": {"type": "boolean"},
                "reason": {"type": "string"},
                "code": {"type": "string"},
                "orderId": {"type": "string"},
                "status": {"type": "string"},
                "traceId": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Book order payments API",
	Description:      "Orders, Flutterwave payment reconciliation and the admin back office.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
