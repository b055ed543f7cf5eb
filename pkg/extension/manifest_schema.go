package extension

// manifestSchema is the JSON Schema for extension manifest validation.
const manifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "name", "version", "author"],
  "properties": {
    "id": {
      "type": "string",
      "pattern": "^[a-z0-9-]+$",
      "minLength": 1,
      "description": "Unique extension identifier"
    },
    "name": {
      "type": "string",
      "minLength": 1,
      "description": "Human-readable extension name"
    },
    "version": {
      "type": "string",
      "pattern": "^\\d+\\.\\d+\\.\\d+$",
      "description": "Semver version"
    },
    "author": {
      "type": "string",
      "minLength": 1,
      "description": "Extension author"
    },
    "description": {
      "type": "string"
    },
    "homepage": {
      "type": "string"
    },
    "main": {
      "type": "string",
      "description": "Entry executable, relative to the extension directory"
    },
    "dependencies": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {
            "type": "string",
            "minLength": 1
          },
          "version": {
            "type": "string",
            "description": "Semver constraint (e.g. ^1.0.0)"
          }
        }
      }
    },
    "permissions": {
      "type": "array",
      "items": {
        "type": "string"
      }
    },
    "configSchema": {
      "type": "object",
      "description": "JSON Schema applied to the extension's config map"
    }
  }
}`
