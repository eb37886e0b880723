package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Perpus API",
        "description": "School library management backend",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Books", "description": "Catalog and exemplar stock"},
        {"name": "Students", "description": "Student roster"},
        {"name": "Transactions", "description": "Borrow, return and fine resolution"},
        {"name": "Found Books", "description": "Found exemplar records"},
        {"name": "Inventory", "description": "Consumable stock ledger"},
        {"name": "Users", "description": "Account management"},
        {"name": "Dashboard", "description": "Summary counters"}
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Log in with username and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/profile": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current account profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/books": {
            "get": {
                "tags": ["Books"],
                "summary": "List books",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "category", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Books"],
                "summary": "Create a book, minting exemplar copies",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBookRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/books/{id}": {
            "get": {
                "tags": ["Books"],
                "summary": "Get a book",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Books"],
                "summary": "Update book metadata",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateBookRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Books"],
                "summary": "Delete a book and its exemplars",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/books/{id}/stock": {
            "post": {
                "tags": ["Books"],
                "summary": "Add exemplar copies",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddStockRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/books/{id}/reduce": {
            "post": {
                "tags": ["Books"],
                "summary": "Withdraw available exemplar copies",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReduceStockRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not enough available copies"}
                }
            }
        },
        "/transactions": {
            "get": {
                "tags": ["Transactions"],
                "summary": "List transactions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Transactions"],
                "summary": "Borrow exemplars for a student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BorrowRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Exemplar unavailable"}
                }
            }
        },
        "/transactions/{id}/return": {
            "post": {
                "tags": ["Transactions"],
                "summary": "Return borrowed exemplars",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReturnRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Transaction already closed"}
                }
            }
        },
        "/transactions/{id}/resolve": {
            "post": {
                "tags": ["Transactions"],
                "summary": "Resolve pending fines",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolvePendingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/found-books": {
            "post": {
                "tags": ["Found Books"],
                "summary": "Record a found exemplar",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FoundBookRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["Found Books"],
                "summary": "List found book records",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/inventory/{id}/movements": {
            "post": {
                "tags": ["Inventory"],
                "summary": "Record a stock movement",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MovementRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Insufficient stock"}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Library summary counters",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["username", "password"]
        },
        "CreateBookRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "author": {"type": "string"},
                "category": {"type": "string"},
                "year": {"type": "integer"},
                "publisher": {"type": "string"},
                "location": {"type": "string"},
                "copies": {"type": "integer"}
            },
            "required": ["title"]
        },
        "UpdateBookRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "author": {"type": "string"},
                "category": {"type": "string"},
                "year": {"type": "integer"},
                "publisher": {"type": "string"},
                "location": {"type": "string"}
            },
            "required": ["title"]
        },
        "AddStockRequest": {
            "type": "object",
            "properties": {
                "quantity": {"type": "integer"}
            },
            "required": ["quantity"]
        },
        "ReduceStockRequest": {
            "type": "object",
            "properties": {
                "quantity": {"type": "integer"},
                "reason": {"type": "string", "enum": ["lost", "damaged", "withdrawn"]}
            },
            "required": ["quantity", "reason"]
        },
        "BorrowRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "items": {"type": "array", "items": {"type": "string"}},
                "due_date": {"type": "string", "format": "date-time"},
                "notes": {"type": "string"}
            },
            "required": ["student_id", "items"]
        },
        "ReturnRequest": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/ReturnItemRequest"}},
                "payment_status": {"type": "string", "enum": ["paid", "pending"]},
                "notes": {"type": "string"}
            },
            "required": ["items"]
        },
        "ReturnItemRequest": {
            "type": "object",
            "properties": {
                "unique_code": {"type": "string"},
                "condition": {"type": "string", "enum": ["good", "damaged", "lost"]},
                "fine": {"type": "number"},
                "notes": {"type": "string"}
            },
            "required": ["unique_code", "condition"]
        },
        "ResolvePendingRequest": {
            "type": "object",
            "properties": {
                "action": {"type": "string", "enum": ["paid", "replaced"]},
                "notes": {"type": "string"}
            },
            "required": ["action"]
        },
        "FoundBookRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "location": {"type": "string"},
                "notes": {"type": "string"}
            },
            "required": ["code"]
        },
        "MovementRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["in", "out"]},
                "quantity": {"type": "integer"},
                "notes": {"type": "string"}
            },
            "required": ["type", "quantity"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
