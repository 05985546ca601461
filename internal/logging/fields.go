package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Level adds a level_id field.
func Level(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("level_id", id)
	}
}

// Session adds a session_id field.
func Session(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("session_id", id)
	}
}

// Purpose adds the LLM call purpose (reply, judge).
func Purpose(p string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("purpose", p)
	}
}

// Model adds a model field.
func Model(m string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("model", m)
	}
}

// Turns adds the transcript length.
func Turns(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("turns", n)
	}
}

// Goals adds a goal count field under the given key.
func Goals(key string, n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, n)
	}
}

// Tokens adds input and output token counts.
func Tokens(in, out int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("input_tokens", in).Int("output_tokens", out)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// Success adds a success flag.
func Success(ok bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("success", ok)
	}
}

// Str adds an arbitrary string field.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Int adds an arbitrary integer field.
func Int(key string, n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, n)
	}
}
