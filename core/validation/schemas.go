package validation

// payloadSchema describes a file-event payload. Only filename is required;
// the known keys are type-checked when present and other keys pass through.
const payloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "file event payload",
  "type": "object",
  "required": ["filename"],
  "properties": {
    "filename":    {"type": "string", "minLength": 1},
    "file_hash":   {"type": "string", "pattern": "^[0-9a-f]{64}$"},
    "file_size":   {"type": "integer", "minimum": 0},
    "uploader_id": {"type": "string"},
    "action":      {"type": "string", "minLength": 1},
    "timestamp":   {"type": "string"}
  }
}`

// storeSchema describes the persisted chain document.
const storeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "chain store",
  "type": "object",
  "required": ["difficulty", "blocks"],
  "properties": {
    "difficulty": {"type": "integer", "minimum": 0},
    "blocks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["index", "timestamp", "data", "previous_hash", "nonce", "hash"],
        "properties": {
          "index":         {"type": "integer", "minimum": 0},
          "timestamp":     {"type": "number"},
          "data":          {"type": "object"},
          "previous_hash": {"type": "string"},
          "nonce":         {"type": "integer", "minimum": 0},
          "difficulty":    {"type": "integer", "minimum": 0},
          "hash":          {"type": "string"}
        }
      }
    }
  }
}`
