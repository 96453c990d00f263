package session

import "encoding/json"

// Unknown is the default for absent categorical fields.
const Unknown = "Unknown"

// Normalize flattens one document into a Row. It is total: any absent
// sub-object or key yields the documented default (Unknown for
// categorical columns, 0 for numeric ones), never an error.
func Normalize(doc Document) Row {
	r := Row{
		ID:           doc.ID,
		StartTime:    doc.StartTime,
		LastActivity: doc.LastActivity,
	}
	r.Device = stringField(doc.DeviceInfo, "device")
	r.Browser = stringField(doc.DeviceInfo, "browser")
	r.Source = stringField(doc.SessionMetadata, "source")
	r.Sales = numberField(doc.SessionMetadata, "sales")
	r.PageViews = int(numberField(doc.SessionMetadata, "pageViews"))
	r.Duration = numberField(doc.SessionMetadata, "duration")
	r.SessionType = stringField(doc.SessionTags, "type")
	r.Segment = stringField(doc.SessionTags, "segment")
	r.Category = stringField(doc.SessionTags, "category")
	return r
}

// NormalizeAll normalizes every document, preserving input order.
func NormalizeAll(docs []Document) Table {
	t := make(Table, len(docs))
	for i, doc := range docs {
		t[i] = Normalize(doc)
	}
	return t
}

func stringField(m map[string]any, key string) string {
	s, ok := m[key].(string)
	if !ok || s == "" {
		return Unknown
	}
	return s
}

// numberField coerces the numeric types the BSON and JSON decoders
// produce for untyped maps.
func numberField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}
