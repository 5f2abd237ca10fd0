package storetest

import (
	"reflect"
	"sort"
	"time"

	"go.docstore.dev/client/docstore"
)

// evalQuery evaluates |query| over |docs|, applying filters, orderings
// and the result limit.
func evalQuery(query docstore.Query, docs map[docstore.Ref]*record, now time.Time) []*docstore.DocumentSnapshot {
	var out []*docstore.DocumentSnapshot

	for ref, rec := range docs {
		if ref.Collection() != query.Collection {
			continue
		}
		var matched = true
		for _, filter := range query.Filters {
			if !matchFilter(filter, rec.data) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, &docstore.DocumentSnapshot{
				Ref:        ref,
				Exists:     true,
				Data:       rec.data.Copy(),
				CreateTime: rec.createTime,
				UpdateTime: rec.updateTime,
				ReadTime:   now,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		for _, term := range query.Order {
			var cmp, ok = compareValues(out[i].Data[term.Field], out[j].Data[term.Field])
			if !ok || cmp == 0 {
				continue
			}
			if term.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return out[i].Ref < out[j].Ref // Stable fallback ordering.
	})

	if query.Limit != 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out
}

func matchFilter(filter docstore.Filter, data docstore.Doc) bool {
	var value = data[filter.Field]

	switch filter.Op {
	case docstore.Eq:
		return equalValues(value, filter.Value)
	case docstore.Lt, docstore.LtEq, docstore.Gt, docstore.GtEq:
		var cmp, ok = compareValues(value, filter.Value)
		if !ok {
			return false
		}
		switch filter.Op {
		case docstore.Lt:
			return cmp < 0
		case docstore.LtEq:
			return cmp <= 0
		case docstore.Gt:
			return cmp > 0
		default:
			return cmp >= 0
		}
	case docstore.In:
		var set, ok = filter.Value.([]interface{})
		if !ok {
			return false
		}
		for _, member := range set {
			if equalValues(value, member) {
				return true
			}
		}
		return false
	case docstore.ArrayContain:
		var array, ok = value.([]interface{})
		if !ok {
			return false
		}
		for _, member := range array {
			if equalValues(member, filter.Value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func equalValues(a, b interface{}) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two field values of the same comparable family:
// numbers (int kinds and floats compare across types), strings, or times.
func compareValues(a, b interface{}) (int, bool) {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			switch {
			case as < bs:
				return -1, true
			case as > bs:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			switch {
			case at.Before(bt):
				return -1, true
			case at.After(bt):
				return 1, true
			default:
				return 0, true
			}
		}
	}
	return 0, false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
