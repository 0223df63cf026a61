package store

// collectionSchema guards the collection document shape before decoding:
// a misspelled method or auth type fails loudly here instead of sending
// a broken request later.
const collectionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name"],
  "properties": {
    "id": {"type": "string"},
    "name": {"type": "string", "minLength": 1},
    "auth": {"$ref": "#/definitions/auth"},
    "variables": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["key"],
        "properties": {
          "key": {"type": "string", "minLength": 1},
          "value": {"type": "string"},
          "currentValue": {"type": "string"},
          "initialValue": {"type": "string"},
          "enabled": {"type": "boolean"},
          "secret": {"type": "boolean"}
        }
      }
    },
    "requests": {"type": "array", "items": {"$ref": "#/definitions/request"}},
    "folders": {"type": "array", "items": {"$ref": "#/definitions/folder"}}
  },
  "definitions": {
    "auth": {
      "type": "object",
      "properties": {
        "type": {"enum": ["none", "bearer", "basic", "apikey", "inherit"]},
        "token": {"type": "string"},
        "username": {"type": "string"},
        "password": {"type": "string"},
        "key": {"type": "string"},
        "value": {"type": "string"},
        "addTo": {"enum": ["header", "query"]}
      }
    },
    "keyValue": {
      "type": "object",
      "required": ["key"],
      "properties": {
        "key": {"type": "string"},
        "value": {"type": "string"},
        "enabled": {"type": "boolean"}
      }
    },
    "request": {
      "type": "object",
      "required": ["name", "method", "url"],
      "properties": {
        "id": {"type": "string"},
        "name": {"type": "string", "minLength": 1},
        "method": {"enum": ["GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"]},
        "url": {"type": "string", "minLength": 1},
        "headers": {"type": "array", "items": {"$ref": "#/definitions/keyValue"}},
        "params": {"type": "array", "items": {"$ref": "#/definitions/keyValue"}},
        "body": {
          "type": "object",
          "properties": {
            "type": {"enum": ["json", "raw", "urlencoded", "multipart"]},
            "raw": {"type": "string"},
            "form": {"type": "array", "items": {"$ref": "#/definitions/keyValue"}}
          }
        },
        "auth": {"$ref": "#/definitions/auth"},
        "preScript": {"type": "string"},
        "script": {"type": "string"}
      }
    },
    "folder": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "id": {"type": "string"},
        "name": {"type": "string", "minLength": 1},
        "auth": {"$ref": "#/definitions/auth"},
        "requests": {"type": "array", "items": {"$ref": "#/definitions/request"}},
        "folders": {"type": "array", "items": {"$ref": "#/definitions/folder"}}
      }
    }
  }
}`
