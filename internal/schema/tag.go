package schema

import (
	"fmt"
	"strings"
)

// TagName is the struct tag carrying mapping metadata.
const TagName = "orm"

type tagOptions struct {
	skip   bool
	key    bool
	fk     string
	column string
	via    string
}

// parseTag reads `orm:"key,fk=Department,column=DeptId"` style tags.
func parseTag(raw string) (tagOptions, error) {
	var opts tagOptions
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return opts, nil
	}
	if raw == "-" {
		opts.skip = true
		return opts, nil
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, hasValue := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if hasValue && value == "" {
			return opts, fmt.Errorf("empty value for %q", name)
		}
		switch name {
		case "key":
			if hasValue {
				return opts, fmt.Errorf("key takes no value")
			}
			opts.key = true
		case "fk":
			if !hasValue {
				return opts, fmt.Errorf("fk requires a navigation field name")
			}
			opts.fk = value
		case "column":
			if !hasValue {
				return opts, fmt.Errorf("column requires a name")
			}
			opts.column = value
		case "via":
			if !hasValue {
				return opts, fmt.Errorf("via requires a link type name")
			}
			opts.via = value
		default:
			return opts, fmt.Errorf("unknown option %q", name)
		}
	}
	return opts, nil
}
