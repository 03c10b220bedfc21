package logger

import (
	"time"

	"go.uber.org/zap"
)

// Standard fields - HTTP

// RequestID field for the request correlation id.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method field for the HTTP method.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path field for the request path.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status field for the HTTP status code.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration field for elapsed time.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Standard fields - domain

// UserID field for the owning user id.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// Platform field for the social platform name.
func Platform(v string) zap.Field {
	return zap.String("platform", v)
}

// AccountID field for a linked account id.
func AccountID(v string) zap.Field {
	return zap.String("account_id", v)
}

// Source field for the metrics source tag ("database" | "api").
func Source(v string) zap.Field {
	return zap.String("source", v)
}

// Standard fields - system

// Component field for the component/module name.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op field for the current operation.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Err field for an error value.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// String is a passthrough for ad hoc fields.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int is a passthrough for ad hoc fields.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}
