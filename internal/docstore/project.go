// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package docstore

import "fmt"

// Project applies a projection such as {name: 1} or {secret: 0} to top-level fields.
// _id is kept unless excluded explicitly.
func Project(doc D, projection D) (D, error) {
	if len(projection) == 0 {
		return doc, nil
	}
	include := map[string]bool{}
	inclusive := false
	keepID := true
	for _, e := range projection {
		on, err := truthy(e.Value)
		if err != nil {
			return nil, fmt.Errorf("projection %s: %w", e.Key, err)
		}
		if e.Key == "_id" {
			keepID = on
			continue
		}
		if on {
			inclusive = true
		}
		include[e.Key] = on
	}

	out := D{}
	for _, e := range doc {
		if e.Key == "_id" {
			if keepID {
				out = append(out, e)
			}
			continue
		}
		on, listed := include[e.Key]
		if inclusive && on || !inclusive && !listed {
			out = append(out, e)
		}
	}
	return out, nil
}

func truthy(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case float64:
		return t != 0, nil
	}
	return false, fmt.Errorf("expected 0, 1, true or false")
}
