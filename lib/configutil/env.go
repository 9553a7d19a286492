package configutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Env overlays environment variables onto an already loaded config, a variable
// that is unset or blank leaves the destination untouched.
//
// Parse failures do not stop the overlay, they are collected and returned by Err.
type Env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func NewEnv(lookup func(string) (string, bool)) *Env {
	return &Env{lookup: lookup}
}

func (e *Env) get(key string) (string, bool) {
	value, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (e *Env) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("env %s=%q: %w", key, value, err))
}

func (e *Env) String(key string, dst *string) {
	if value, ok := e.get(key); ok {
		*dst = value
	}
}

func (e *Env) Int(key string, dst *int) {
	value, ok := e.get(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, value, err)
		return
	}
	*dst = parsed
}

func (e *Env) Float(key string, dst *float64) {
	value, ok := e.get(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.fail(key, value, err)
		return
	}
	*dst = parsed
}

// Seconds reads a float amount of seconds ("0.8") or a go duration ("800ms").
func (e *Env) Seconds(key string, dst *Duration) {
	value, ok := e.get(key)
	if !ok {
		return
	}
	parsed, err := parseDuration(value)
	if err != nil {
		e.fail(key, value, err)
		return
	}
	*dst = Duration(parsed)
}

func (e *Env) Err() error {
	return errors.Join(e.errs...)
}

// Duration is a time.Duration that unmarshals from "30m" style strings or from a
// number of seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func parseDuration(value string) (time.Duration, error) {
	seconds, err := strconv.ParseFloat(value, 64)
	if err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	return time.ParseDuration(value)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	parsed, err := parseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Duration(d).String())), nil
}
