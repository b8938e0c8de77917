package outbox

const trailRelocatedSchema = `{
  "type": "object",
  "title": "TrailRelocated",
  "properties": {
    "trail_id": {"type": "string"},
    "name": {"type": "string"},
    "from_tier": {"type": "string"},
    "to_tier": {"type": "string"},
    "lat": {"type": "string"},
    "lon": {"type": "string"},
    "appended": {"type": "boolean"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["trail_id", "name", "to_tier", "lat", "lon", "occurred_at"],
  "additionalProperties": false
}`

const trailUnclassifiedSchema = `{
  "type": "object",
  "title": "TrailUnclassified",
  "properties": {
    "trail_id": {"type": "string"},
    "difficulty": {"type": "string"},
    "removed_from": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["trail_id", "difficulty", "occurred_at"],
  "additionalProperties": false
}`
