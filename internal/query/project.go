package query

import "encoding/json"

// Project applies the Spec's field projection to a response value.  With no
// explicit field list the value passes through untouched (hidden columns
// are already stripped by the models' json tags).  Otherwise the value is
// reduced to the requested fields, keeping "id" so list entries stay
// addressable.  Works on a single document or a slice of them.
func (s Spec) Project(v any) any {
    if len(s.Fields) == 0 {
        return v
    }
    keep := map[string]bool{"id": true}
    for _, f := range s.Fields {
        keep[f] = true
    }

    raw, err := json.Marshal(v)
    if err != nil {
        return v
    }

    var list []map[string]any
    if err := json.Unmarshal(raw, &list); err == nil {
        out := make([]map[string]any, len(list))
        for i, doc := range list {
            out[i] = pick(doc, keep)
        }
        return out
    }

    var doc map[string]any
    if err := json.Unmarshal(raw, &doc); err == nil {
        return pick(doc, keep)
    }
    return v
}

func pick(doc map[string]any, keep map[string]bool) map[string]any {
    out := make(map[string]any, len(keep))
    for k, v := range doc {
        if keep[k] {
            out[k] = v
        }
    }
    return out
}
