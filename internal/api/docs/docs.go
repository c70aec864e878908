// Package docs регистрирует описание HTTP API для /swagger/doc.json
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
    "security": [{"BearerAuth": []}],
    "paths": {
        "/sync/check": {
            "post": {
                "tags": ["sync"],
                "summary": "Проверка статуса товара на маркетплейсе",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/checkRequest"}}],
                "responses": {
                    "200": {"description": "Результат проверки", "schema": {"$ref": "#/definitions/response"}},
                    "400": {"description": "Некорректный запрос", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "422": {"description": "Проверка не выполнена", "schema": {"$ref": "#/definitions/response"}}
                }
            }
        },
        "/sync/check-bulk": {
            "post": {
                "tags": ["sync"],
                "summary": "Пакетная проверка статуса",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/bulkRequest"}}],
                "responses": {
                    "200": {"description": "Сводка и результаты по каждому товару", "schema": {"$ref": "#/definitions/response"}},
                    "400": {"description": "Пустой список товаров", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/sync/push": {
            "post": {
                "tags": ["sync"],
                "summary": "Отправка товара на маркетплейс",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/pushRequest"}}],
                "responses": {
                    "200": {"description": "Товар отправлен", "schema": {"$ref": "#/definitions/response"}},
                    "409": {"description": "Синхронизация уже выполняется", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "422": {"description": "Отправка не выполнена", "schema": {"$ref": "#/definitions/response"}}
                }
            }
        },
        "/sync/push-bulk": {
            "post": {
                "tags": ["sync"],
                "summary": "Пакетная отправка",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/bulkRequest"}}],
                "responses": {"200": {"description": "Сводка", "schema": {"$ref": "#/definitions/response"}}}
            }
        },
        "/sync/run": {
            "post": {
                "tags": ["sync"],
                "summary": "Запуск конфигурации синхронизации",
                "responses": {"200": {"description": "Сводка", "schema": {"$ref": "#/definitions/response"}}}
            }
        },
        "/sync/preview": {
            "post": {
                "tags": ["sync"],
                "summary": "Предпросмотр конфигурации синхронизации",
                "responses": {"200": {"description": "Оценка запуска", "schema": {"$ref": "#/definitions/response"}}}
            }
        },
        "/sync/commands": {
            "post": {
                "tags": ["sync"],
                "summary": "Постановка команды в очередь воркера",
                "responses": {
                    "202": {"description": "Команда принята"},
                    "503": {"description": "Очередь недоступна", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/records": {
            "get": {
                "tags": ["dashboard"],
                "summary": "Список записей синхронизации",
                "parameters": [
                    {"type": "string", "name": "account_id", "in": "query"},
                    {"type": "string", "name": "product_id", "in": "query"},
                    {"type": "string", "name": "status", "in": "query", "description": "Список статусов через запятую"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"},
                    {"type": "string", "name": "sort_by", "in": "query"},
                    {"type": "boolean", "name": "sort_desc", "in": "query"}
                ],
                "responses": {"200": {"description": "Страница записей", "schema": {"$ref": "#/definitions/response"}}}
            }
        },
        "/records/history": {
            "get": {
                "tags": ["dashboard"],
                "summary": "История переходов записи",
                "parameters": [
                    {"type": "string", "name": "product_id", "in": "query", "required": true},
                    {"type": "string", "name": "account_id", "in": "query", "required": true},
                    {"type": "string", "name": "group_key", "in": "query"}
                ],
                "responses": {"200": {"description": "События", "schema": {"$ref": "#/definitions/response"}}}
            }
        },
        "/dashboard/summary": {
            "get": {"tags": ["dashboard"], "summary": "Сводка по статусам и оценкам", "responses": {"200": {"description": "Сводка", "schema": {"$ref": "#/definitions/response"}}}}
        },
        "/dashboard/needs-attention": {
            "get": {"tags": ["dashboard"], "summary": "Записи, требующие внимания", "responses": {"200": {"description": "Записи", "schema": {"$ref": "#/definitions/response"}}}}
        },
        "/dashboard/healthy": {
            "get": {"tags": ["dashboard"], "summary": "Здоровые записи", "responses": {"200": {"description": "Записи", "schema": {"$ref": "#/definitions/response"}}}}
        },
        "/webhooks": {
            "get": {
                "tags": ["webhooks"],
                "summary": "Журнал входящих вебхуков",
                "responses": {"200": {"description": "Записи журнала", "schema": {"$ref": "#/definitions/response"}}}
            },
            "post": {
                "tags": ["webhooks"],
                "summary": "Прием вебхука маркетплейса",
                "security": [],
                "parameters": [
                    {"type": "string", "name": "X-Marketplace-Topic", "in": "header", "required": true},
                    {"type": "string", "name": "X-Marketplace-Signature", "in": "header"}
                ],
                "responses": {
                    "202": {"description": "Вебхук сохранен"},
                    "401": {"description": "Неверная подпись", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/webhooks/subscriptions/preview": {
            "post": {"tags": ["webhooks"], "summary": "Предпросмотр подписки на вебхуки", "responses": {"200": {"description": "Конфигурация подписки", "schema": {"$ref": "#/definitions/response"}}}}
        }
    },
    "definitions": {
        "response": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {"type": "object"},
                "meta": {"type": "object"}
            }
        },
        "errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "integer"},
                "message": {"type": "string"}
            }
        },
        "checkRequest": {
            "type": "object",
            "required": ["product_id", "account_id"],
            "properties": {
                "product_id": {"type": "string"},
                "account_id": {"type": "string"},
                "method": {"type": "string", "enum": ["manual", "scheduled", "webhook-triggered"]}
            }
        },
        "pushRequest": {
            "type": "object",
            "required": ["product_id", "account_id"],
            "properties": {
                "product_id": {"type": "string"},
                "account_id": {"type": "string"},
                "group_key": {"type": "string"},
                "method": {"type": "string", "enum": ["manual", "scheduled", "webhook-triggered"]}
            }
        },
        "bulkRequest": {
            "type": "object",
            "required": ["account_id", "product_ids"],
            "properties": {
                "account_id": {"type": "string"},
                "product_ids": {"type": "array", "items": {"type": "string"}},
                "method": {"type": "string"},
                "batch_size": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo метаданные описания API
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "gomarket-sync API",
	Description:      "Синхронизация товаров с маркетплейсом и контроль расхождений",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
