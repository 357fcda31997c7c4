package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// ErrorCode records a stable error code under the key "error_code".
func ErrorCode(code string) slog.Attr {
	if code == "" {
		return slog.Attr{}
	}
	return slog.String("error_code", code)
}

// BusinessID records the billed business under the key "business_id".
// If id is nil, it returns an empty Attr.
func BusinessID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("business_id", id)
}

// Provider records the payment processor under the key "provider".
func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// ReferenceID records a processor object id under the key "reference_id".
func ReferenceID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("reference_id", id)
}

// EventID records a processor delivery id under the key "event_id".
func EventID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("event_id", id)
}

// EventType records the event type under the key "event_type".
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

// Plan records a plan tier under the key "plan".
func Plan(plan string) slog.Attr {
	return slog.String("plan", plan)
}

// Resource records a resource kind under the key "resource".
func Resource(kind string) slog.Attr {
	return slog.String("resource", kind)
}

// Action records a lifecycle action under the key "action".
func Action(action string) slog.Attr {
	return slog.String("action", action)
}

// StatusChange records a status transition as a "status" group with from and to.
func StatusChange(from, to string) slog.Attr {
	return Group("status", slog.String("from", from), slog.String("to", to))
}

// DiscountCode records a discount code under the key "discount_code".
func DiscountCode(code string) slog.Attr {
	return slog.String("discount_code", code)
}

// RequestID records the request identifier under the key "request_id".
// If id is nil, it returns an empty Attr.
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
